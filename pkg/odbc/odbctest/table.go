package odbctest

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unicode/utf16"

	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// Table is an insert target. It implements odbc.Preparer; every execution of
// a prepared statement decodes the bound parameter arrays into Rows.
type Table struct {
	// ExecuteErr is returned by execution number FailExecuteAt (1-based).
	ExecuteErr    error
	FailExecuteAt int

	mu         sync.Mutex
	statements []string
	rows       [][]interface{}
	executions []int
	specs      []odbc.BindSpec
	elements   []int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Prepare implements odbc.Preparer.
func (t *Table) Prepare(statement string) (odbc.Inserter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statements = append(t.statements, statement)
	return &statementHandle{table: t}, nil
}

// Statements returns the prepared statement texts.
func (t *Table) Statements() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.statements...)
}

// Rows returns the inserted rows.
func (t *Table) Rows() [][]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]interface{}(nil), t.rows...)
}

// Executions returns the parameter set size of every execution.
func (t *Table) Executions() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.executions...)
}

// Specs returns the bind specifications of the last execution.
func (t *Table) Specs() []odbc.BindSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]odbc.BindSpec(nil), t.specs...)
}

// ElementSizes returns the parameter element sizes of the last execution.
func (t *Table) ElementSizes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.elements...)
}

// Column returns the values of one column across all rows.
func (t *Table) Column(index int) []interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]interface{}, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[index]
	}
	return out
}

type statementHandle struct {
	table  *Table
	params []odbc.ColumnBuffer
	size   int
}

func (s *statementHandle) BindParameters(params []odbc.ColumnBuffer, paramSetSize int) error {
	for i, p := range params {
		if len(p.Data) < p.ElementSize*paramSetSize || len(p.Indicators) < paramSetSize {
			return fmt.Errorf("odbctest: parameter %d is smaller than %d rows", i, paramSetSize)
		}
	}
	s.params = params
	s.size = paramSetSize
	return nil
}

func (s *statementHandle) Execute(paramSetSize int) error {
	t := s.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailExecuteAt > 0 && len(t.executions)+1 == t.FailExecuteAt {
		t.executions = append(t.executions, paramSetSize)
		return t.ExecuteErr
	}
	if paramSetSize > s.size {
		return fmt.Errorf("odbctest: executing %d rows with %d bound", paramSetSize, s.size)
	}
	rows := make([][]interface{}, paramSetSize)
	for r := range rows {
		row := make([]interface{}, len(s.params))
		for c, p := range s.params {
			v, err := decodeParam(p, r)
			if err != nil {
				return fmt.Errorf("odbctest: parameter %d row %d: %w", c, r, err)
			}
			row[c] = v
		}
		rows[r] = row
	}
	t.rows = append(t.rows, rows...)
	t.executions = append(t.executions, paramSetSize)
	t.specs = t.specs[:0]
	t.elements = t.elements[:0]
	for _, p := range s.params {
		t.specs = append(t.specs, p.Spec)
		t.elements = append(t.elements, p.ElementSize)
	}
	return nil
}

// decodeParam turns one parameter cell back into the Go value a Cursor
// column accepts.
func decodeParam(p odbc.ColumnBuffer, row int) (interface{}, error) {
	ind := p.Indicators[row]
	if ind == odbc.NullData {
		return nil, nil
	}
	elem := p.Element(row)
	switch p.Spec.CType {
	case odbc.CChar, odbc.CWChar, odbc.CBinary:
		if ind < 0 || ind > int64(len(elem)) {
			return nil, fmt.Errorf("indicator %d outside element of %d bytes", ind, len(elem))
		}
		payload := elem[:ind]
		switch p.Spec.CType {
		case odbc.CChar:
			return string(payload), nil
		case odbc.CWChar:
			if len(payload)%2 != 0 {
				return nil, fmt.Errorf("odd UTF-16 length %d", len(payload))
			}
			units := make([]uint16, len(payload)/2)
			for i := range units {
				units[i] = binary.LittleEndian.Uint16(payload[2*i:])
			}
			return string(utf16.Decode(units)), nil
		default:
			return append([]byte{}, payload...), nil
		}
	case odbc.CBit:
		return elem[0] != 0, nil
	case odbc.CSTinyInt:
		return int64(int8(elem[0])), nil
	case odbc.CUTinyInt:
		return uint64(elem[0]), nil
	case odbc.CSShort:
		return int64(int16(ne.Uint16(elem))), nil
	case odbc.CUShort:
		return uint64(ne.Uint16(elem)), nil
	case odbc.CSLong:
		return int64(int32(ne.Uint32(elem))), nil
	case odbc.CULong:
		return uint64(ne.Uint32(elem)), nil
	case odbc.CSBigInt:
		return int64(ne.Uint64(elem)), nil
	case odbc.CUBigInt:
		return ne.Uint64(elem), nil
	case odbc.CFloat:
		return math.Float32frombits(ne.Uint32(elem)), nil
	case odbc.CDouble:
		return math.Float64frombits(ne.Uint64(elem)), nil
	case odbc.CTypeDate:
		return odbc.DecodeDate(elem), nil
	case odbc.CTypeTime:
		return odbc.DecodeTime(elem), nil
	case odbc.CTypeTimestamp:
		return odbc.DecodeTimestamp(elem), nil
	}
	return nil, fmt.Errorf("unsupported C type %s", p.Spec.CType)
}
