package odbc

import "fmt"

// ColumnDescription is the metadata a driver reports for one result column.
type ColumnDescription struct {
	// Name is the raw column name. It is UTF-16LE when NameWide is set and
	// UTF-8 otherwise.
	Name     []byte
	NameWide bool

	DataType SQLType
	// ColumnSize is the declared length (characters for text, bytes for
	// binary, digits for numerics). Zero when unknown.
	ColumnSize    uint64
	DecimalDigits int16
	Nullability   Nullability
	// DisplaySize is the maximum number of characters needed to render the
	// value as text. Zero or negative when unknown.
	DisplaySize int64
	// OctetLength is the transfer octet length when the driver reports it.
	OctetLength int64
	// Unsigned is the SQL_DESC_UNSIGNED attribute.
	Unsigned bool
}

// BindSpec identifies how a buffer is presented to the driver.
type BindSpec struct {
	CType         CType
	SQLType       SQLType
	ColumnSize    uint64
	DecimalDigits int16
}

func (s BindSpec) String() string {
	return fmt.Sprintf("%s as %s(%d,%d)", s.CType, s.SQLType, s.ColumnSize, s.DecimalDigits)
}

// ColumnBuffer is the bind view of one column-wise buffer: Data holds
// len(Indicators) elements of ElementSize bytes each.
type ColumnBuffer struct {
	Spec        BindSpec
	ElementSize int
	Data        []byte
	Indicators  []int64
}

// Element returns the slot of row.
func (b ColumnBuffer) Element(row int) []byte {
	start := row * b.ElementSize
	return b.Data[start : start+b.ElementSize : start+b.ElementSize]
}

// Cursor is an open result set. Column indices are zero-based.
//
// Implementations need not be safe for concurrent use, but must tolerate being
// driven from a goroutine other than the one that created them.
type Cursor interface {
	NumResultCols() (int, error)
	DescribeCol(column int) (ColumnDescription, error)
	// BindColumns binds the buffers for column-wise bulk fetch with the given
	// row array size. Calling it again replaces the previous binding.
	BindColumns(columns []ColumnBuffer, rowArraySize int) error
	// Fetch fills the bound buffers with the next rowset and returns the
	// number of rows written. Zero means the result set is exhausted.
	Fetch() (int, error)
}

// CellReader is implemented by cursors that can re-read one cell of the
// current rowset (SQLSetPos followed by SQLGetData). dst is filled with the
// column's bound C type and the returned indicator follows the same rules as
// a bulk fetch indicator.
type CellReader interface {
	ReadCell(column, row int, dst []byte) (int64, error)
}

// RowArrayLimiter is implemented by drivers that cap the row array size.
type RowArrayLimiter interface {
	MaxRowArraySize() int
}

// Inserter is a prepared statement with parameter markers.
type Inserter interface {
	// BindParameters binds the buffers as parameter arrays. Calling it again
	// replaces the previous binding.
	BindParameters(params []ColumnBuffer, paramSetSize int) error
	// Execute runs the statement for the first paramSetSize rows of the
	// bound arrays.
	Execute(paramSetSize int) error
}

// Preparer prepares statements on a connection.
type Preparer interface {
	Prepare(statement string) (Inserter, error)
}
