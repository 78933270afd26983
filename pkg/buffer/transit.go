package buffer

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

type transitColumn struct {
	layout     ColumnLayout
	data       []byte
	indicators []int64
}

// TransitSet owns one column-major region and one indicator array per column.
// Rows are addressed by index, so growing a column only swaps its base region.
//
// A TransitSet is not safe for concurrent use.
type TransitSet struct {
	mem      memory.Allocator
	columns  []*transitColumn
	capacity int
	released bool
}

// NewTransitSet allocates zeroed buffers for layout from mem.
func NewTransitSet(mem memory.Allocator, layout Layout) *TransitSet {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	s := &TransitSet{
		mem:      mem,
		columns:  make([]*transitColumn, len(layout.Columns)),
		capacity: layout.RowCapacity,
	}
	for i, cl := range layout.Columns {
		s.columns[i] = &transitColumn{
			layout:     cl,
			data:       s.allocate(cl.ElementSize * layout.RowCapacity),
			indicators: make([]int64, layout.RowCapacity),
		}
	}
	return s
}

func (s *TransitSet) allocate(n int) []byte {
	b := s.mem.Allocate(n)
	clear(b)
	return b
}

// Capacity is the number of rows every column can hold.
func (s *TransitSet) Capacity() int { return s.capacity }

// NumColumns returns the number of column buffers.
func (s *TransitSet) NumColumns() int { return len(s.columns) }

// Column returns the current layout of column col.
func (s *TransitSet) Column(col int) ColumnLayout { return s.columns[col].layout }

// Bindings returns the bind view of every column. The view is invalidated by
// Grow and Release.
func (s *TransitSet) Bindings() []odbc.ColumnBuffer {
	out := make([]odbc.ColumnBuffer, len(s.columns))
	for i, c := range s.columns {
		out[i] = odbc.ColumnBuffer{
			Spec:        c.layout.Spec,
			ElementSize: c.layout.ElementSize,
			Data:        c.data,
			Indicators:  c.indicators,
		}
	}
	return out
}

// Element returns the full slot of a cell.
func (s *TransitSet) Element(col, row int) []byte {
	c := s.columns[col]
	start := row * c.layout.ElementSize
	return c.data[start : start+c.layout.ElementSize : start+c.layout.ElementSize]
}

// Indicator returns the indicator of a cell.
func (s *TransitSet) Indicator(col, row int) int64 {
	return s.columns[col].indicators[row]
}

// SetIndicator overwrites the indicator of a cell.
func (s *TransitSet) SetIndicator(col, row int, v int64) {
	s.columns[col].indicators[row] = v
}

// IsNull reports whether the cell holds NULL.
func (s *TransitSet) IsNull(col, row int) bool {
	return s.columns[col].indicators[row] == odbc.NullData
}

// Truncated reports whether a variable cell was cut short by the driver.
func (s *TransitSet) Truncated(col, row int) bool {
	c := s.columns[col]
	if !c.layout.Variable {
		return false
	}
	ind := c.indicators[row]
	return ind == odbc.NoTotal || ind > int64(c.layout.PayloadCapacity())
}

// Value returns the payload of a cell and whether it is non-null. Variable
// cells are cut at their indicator, fixed cells span the element.
func (s *TransitSet) Value(col, row int) ([]byte, bool) {
	c := s.columns[col]
	ind := c.indicators[row]
	if ind == odbc.NullData {
		return nil, false
	}
	elem := s.Element(col, row)
	if !c.layout.Variable {
		return elem, true
	}
	n := int(ind)
	if n < 0 || n > c.layout.PayloadCapacity() {
		n = c.layout.PayloadCapacity()
	}
	return elem[:n], true
}

// SetNull marks a cell NULL.
func (s *TransitSet) SetNull(col, row int) {
	s.columns[col].indicators[row] = odbc.NullData
}

// Set copies value into a cell, terminates text and records the length.
func (s *TransitSet) Set(col, row int, value []byte) error {
	c := s.columns[col]
	if len(value) > c.layout.PayloadCapacity() {
		return errors.Newf(errors.ErrorTypeBufferTooSmall,
			"value of %d bytes does not fit element of %d bytes", len(value), c.layout.PayloadCapacity()).
			WithDetail(errors.DetailColumn, c.layout.Name).
			WithDetail(errors.DetailRow, row)
	}
	elem := s.Element(col, row)
	n := copy(elem, value)
	clear(elem[n:])
	if c.layout.Variable {
		c.indicators[row] = int64(n)
	} else {
		c.indicators[row] = int64(c.layout.ElementSize)
	}
	return nil
}

// Grow reallocates column col so elements hold payload bytes, keeping the
// first preserve rows. Indicators are left untouched.
func (s *TransitSet) Grow(col, payload, preserve int) {
	c := s.columns[col]
	if payload <= c.layout.PayloadCapacity() {
		return
	}
	if w := c.layout.CharWidth; w > 1 && payload%w != 0 {
		payload += w - payload%w
	}
	old := c.layout
	next := old
	next.ElementSize = payload + old.TerminatorSize()
	next.Spec.ColumnSize = uint64(payload / old.CharWidth)

	data := s.allocate(next.ElementSize * s.capacity)
	if preserve > s.capacity {
		preserve = s.capacity
	}
	for row := 0; row < preserve; row++ {
		copy(data[row*next.ElementSize:], c.data[row*old.ElementSize:(row+1)*old.ElementSize])
	}
	s.mem.Free(c.data)
	c.data = data
	c.layout = next
}

// TotalBytes is the size of all column regions and indicators.
func (s *TransitSet) TotalBytes() int {
	total := 0
	for _, c := range s.columns {
		total += len(c.data) + IndicatorSize*len(c.indicators)
	}
	return total
}

// Release frees the column regions. It is safe to call more than once.
func (s *TransitSet) Release() {
	if s.released {
		return
	}
	s.released = true
	for _, c := range s.columns {
		s.mem.Free(c.data)
		c.data = nil
		c.indicators = nil
	}
}
