// Package odbctest provides an in-memory driver for tests. Cursor serves a
// fixed result set through bound column buffers the way a driver does for a
// column-wise bulk fetch, and Table captures bulk parameter executions.
package odbctest

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

var ne = binary.NativeEndian

// garbageIndicator is reported for narrow text when GarbageIndicators is set.
const garbageIndicator = math.MaxInt32 + 17

// Column is one result column: its description and one value per row.
//
// Values are Go values matching the bound C type: nil for NULL,
// string or []byte for text and binary, bool, int64 or int, uint64, float32
// or float64, and odbc.Date, odbc.Time or odbc.Timestamp.
type Column struct {
	Desc   odbc.ColumnDescription
	Values []interface{}
}

// Col describes a nullable column.
func Col(name string, sqlType odbc.SQLType, size uint64, digits int16, values ...interface{}) Column {
	return Column{
		Desc: odbc.ColumnDescription{
			Name:          []byte(name),
			DataType:      sqlType,
			ColumnSize:    size,
			DecimalDigits: digits,
			Nullability:   odbc.Nullable,
		},
		Values: values,
	}
}

// NotNull marks the column as not nullable.
func (c Column) NotNull() Column {
	c.Desc.Nullability = odbc.NoNulls
	return c
}

// Unsigned sets the unsigned attribute.
func (c Column) Unsigned() Column {
	c.Desc.Unsigned = true
	return c
}

// WideName reports the column name as UTF-16LE.
func (c Column) WideName() Column {
	units := utf16.Encode([]rune(string(c.Desc.Name)))
	name := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(name[2*i:], u)
	}
	c.Desc.Name = name
	c.Desc.NameWide = true
	return c
}

// WithDisplaySize sets the display size hint.
func (c Column) WithDisplaySize(n int64) Column {
	c.Desc.DisplaySize = n
	return c
}

// Cursor is a result set served from memory. It implements odbc.Cursor,
// odbc.CellReader and odbc.RowArrayLimiter.
type Cursor struct {
	// MaxRows is reported through MaxRowArraySize. Zero means no limit.
	MaxRows int
	// NoTotal reports truncated values with the NoTotal indicator instead of
	// their full length.
	NoTotal bool
	// GarbageIndicators reports nonsense lengths for non-null narrow text.
	GarbageIndicators bool
	// FetchDelay is slept inside every Fetch.
	FetchDelay time.Duration
	// FetchErr is returned by fetch number FailFetchAt (1-based).
	FetchErr    error
	FailFetchAt int

	columns   []Column
	rows      int
	next      int
	current   int
	currentN  int
	bound     []odbc.ColumnBuffer
	arraySize int

	busy     atomic.Int32
	overlaps atomic.Int32
	fetches  atomic.Int32
	binds    atomic.Int32
	reads    atomic.Int32
}

// NewCursor returns a cursor over columns. All columns must hold the same
// number of values.
func NewCursor(columns ...Column) *Cursor {
	rows := 0
	for i, c := range columns {
		if i == 0 {
			rows = len(c.Values)
		} else if len(c.Values) != rows {
			panic(fmt.Sprintf("odbctest: column %d has %d values, want %d", i, len(c.Values), rows))
		}
	}
	return &Cursor{columns: columns, rows: rows}
}

// NumResultCols implements odbc.Cursor.
func (c *Cursor) NumResultCols() (int, error) { return len(c.columns), nil }

// DescribeCol implements odbc.Cursor.
func (c *Cursor) DescribeCol(column int) (odbc.ColumnDescription, error) {
	if column < 0 || column >= len(c.columns) {
		return odbc.ColumnDescription{}, fmt.Errorf("odbctest: invalid column index %d", column)
	}
	return c.columns[column].Desc, nil
}

// BindColumns implements odbc.Cursor.
func (c *Cursor) BindColumns(columns []odbc.ColumnBuffer, rowArraySize int) error {
	if len(columns) != len(c.columns) {
		return fmt.Errorf("odbctest: %d buffers bound to %d columns", len(columns), len(c.columns))
	}
	if c.MaxRows > 0 && rowArraySize > c.MaxRows {
		return fmt.Errorf("odbctest: row array size %d exceeds driver limit %d", rowArraySize, c.MaxRows)
	}
	for i, b := range columns {
		if len(b.Data) < b.ElementSize*rowArraySize || len(b.Indicators) < rowArraySize {
			return fmt.Errorf("odbctest: buffer of column %d is smaller than %d rows", i, rowArraySize)
		}
	}
	c.bound = columns
	c.arraySize = rowArraySize
	c.binds.Add(1)
	return nil
}

// Fetch implements odbc.Cursor.
func (c *Cursor) Fetch() (int, error) {
	if c.busy.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	defer c.busy.Add(-1)

	n := int(c.fetches.Add(1))
	if c.FetchDelay > 0 {
		time.Sleep(c.FetchDelay)
	}
	if c.FailFetchAt > 0 && n == c.FailFetchAt {
		return 0, c.FetchErr
	}
	if c.bound == nil {
		return 0, fmt.Errorf("odbctest: fetch without bound columns")
	}

	rows := c.rows - c.next
	if rows > c.arraySize {
		rows = c.arraySize
	}
	c.current, c.currentN = c.next, rows
	for col, buf := range c.bound {
		for r := 0; r < rows; r++ {
			ind, err := c.put(buf.Spec.CType, buf.Element(r), c.columns[col].Values[c.next+r])
			if err != nil {
				return 0, fmt.Errorf("odbctest: column %d row %d: %w", col, c.next+r, err)
			}
			buf.Indicators[r] = ind
		}
	}
	c.next += rows
	return rows, nil
}

// ReadCell implements odbc.CellReader for the current rowset.
func (c *Cursor) ReadCell(column, row int, dst []byte) (int64, error) {
	if row < 0 || row >= c.currentN || column < 0 || column >= len(c.bound) {
		return 0, fmt.Errorf("odbctest: cell (%d,%d) outside current rowset", column, row)
	}
	c.reads.Add(1)
	return c.put(c.bound[column].Spec.CType, dst, c.columns[column].Values[c.current+row])
}

// MaxRowArraySize implements odbc.RowArrayLimiter.
func (c *Cursor) MaxRowArraySize() int { return c.MaxRows }

// Overlaps is the number of Fetch calls that started while another was
// still running.
func (c *Cursor) Overlaps() int { return int(c.overlaps.Load()) }

// Fetches is the number of Fetch calls.
func (c *Cursor) Fetches() int { return int(c.fetches.Load()) }

// Binds is the number of BindColumns calls.
func (c *Cursor) Binds() int { return int(c.binds.Load()) }

// CellReads is the number of ReadCell calls.
func (c *Cursor) CellReads() int { return int(c.reads.Load()) }

// put writes v into dst as ctype and returns the indicator.
func (c *Cursor) put(ctype odbc.CType, dst []byte, v interface{}) (int64, error) {
	if v == nil {
		return odbc.NullData, nil
	}
	switch ctype {
	case odbc.CChar:
		ind := c.putVariable(dst, textOf(v), 1)
		if c.GarbageIndicators {
			return garbageIndicator, nil
		}
		return ind, nil
	case odbc.CWChar:
		return c.putVariable(dst, utf16LE(textOf(v)), 2), nil
	case odbc.CBinary:
		b, ok := v.([]byte)
		if !ok {
			b = textOf(v)
		}
		return c.putVariable(dst, b, 0), nil
	case odbc.CBit:
		b, ok := v.(bool)
		if !ok {
			return 0, fmt.Errorf("want bool, got %T", v)
		}
		dst[0] = 0
		if b {
			dst[0] = 1
		}
		return 1, nil
	case odbc.CSTinyInt, odbc.CUTinyInt, odbc.CSShort, odbc.CUShort,
		odbc.CSLong, odbc.CULong, odbc.CSBigInt, odbc.CUBigInt:
		bits, err := integerBits(v)
		if err != nil {
			return 0, err
		}
		size := ctype.FixedSize()
		switch size {
		case 1:
			dst[0] = byte(bits)
		case 2:
			ne.PutUint16(dst, uint16(bits))
		case 4:
			ne.PutUint32(dst, uint32(bits))
		default:
			ne.PutUint64(dst, bits)
		}
		return int64(size), nil
	case odbc.CFloat:
		f, err := floatOf(v)
		if err != nil {
			return 0, err
		}
		ne.PutUint32(dst, math.Float32bits(float32(f)))
		return 4, nil
	case odbc.CDouble:
		f, err := floatOf(v)
		if err != nil {
			return 0, err
		}
		ne.PutUint64(dst, math.Float64bits(f))
		return 8, nil
	case odbc.CTypeDate:
		d, ok := v.(odbc.Date)
		if !ok {
			return 0, fmt.Errorf("want odbc.Date, got %T", v)
		}
		d.Encode(dst)
		return odbc.DateSize, nil
	case odbc.CTypeTime:
		t, ok := v.(odbc.Time)
		if !ok {
			return 0, fmt.Errorf("want odbc.Time, got %T", v)
		}
		t.Encode(dst)
		return odbc.TimeSize, nil
	case odbc.CTypeTimestamp:
		ts, ok := v.(odbc.Timestamp)
		if !ok {
			return 0, fmt.Errorf("want odbc.Timestamp, got %T", v)
		}
		ts.Encode(dst)
		return odbc.TimestampSize, nil
	}
	return 0, fmt.Errorf("unsupported C type %s", ctype)
}

// putVariable copies as much of src as fits ahead of a terminator of width
// term and reports the full length, or NoTotal when configured.
func (c *Cursor) putVariable(dst, src []byte, term int) int64 {
	room := len(dst) - term
	if room < 0 {
		room = 0
	}
	if term > 0 && room%term != 0 {
		room -= room % term
	}
	n := copy(dst[:room], src)
	clear(dst[n:])
	if len(src) > room && c.NoTotal {
		return odbc.NoTotal
	}
	return int64(len(src))
}

func textOf(v interface{}) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	case int:
		return strconv.AppendInt(nil, int64(t), 10)
	case int64:
		return strconv.AppendInt(nil, t, 10)
	case uint64:
		return strconv.AppendUint(nil, t, 10)
	case float64:
		return strconv.AppendFloat(nil, t, 'g', -1, 64)
	}
	return []byte(fmt.Sprint(v))
}

func utf16LE(text []byte) []byte {
	units := utf16.Encode([]rune(string(text)))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}

func integerBits(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case uint64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}

func floatOf(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("want float, got %T", v)
}

// WithoutCellReader hides the ReadCell method of a cursor.
func WithoutCellReader(c odbc.Cursor) odbc.Cursor {
	return plainCursor{c}
}

type plainCursor struct {
	odbc.Cursor
}
