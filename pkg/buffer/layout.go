// Package buffer plans and owns the native transit buffers that column values
// pass through on their way between the driver and arrow arrays.
package buffer

import (
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// IndicatorSize is the per-row cost of a length indicator.
const IndicatorSize = 8

// UnboundedLength is the declared length from which a column counts as
// unbounded (VARCHAR(max), TEXT and friends often report 2^31-1).
const UnboundedLength = 1 << 28

// ColumnRequest describes what one column needs from the planner.
type ColumnRequest struct {
	Name string
	Spec odbc.BindSpec
	// FixedSize is the element size of fixed-width columns, including text
	// renderings of known length. Zero marks a variable-length column.
	FixedSize int
	// MaxLength is the declared maximum of a variable column in code units.
	// Zero or negative means unknown.
	MaxLength int
	// Limit caps MaxLength. Zero means no limit.
	Limit int
	// CharWidth is the byte width of one code unit (1 or 2).
	CharWidth int
	// Terminated reserves one code unit per element for a terminating zero.
	Terminated bool
}

// ColumnLayout is the planned shape of one column buffer.
type ColumnLayout struct {
	Name        string
	Spec        odbc.BindSpec
	ElementSize int
	Variable    bool
	CharWidth   int
	Terminated  bool
}

// TerminatorSize is the number of bytes reserved after the payload.
func (c ColumnLayout) TerminatorSize() int {
	if c.Terminated {
		return c.CharWidth
	}
	return 0
}

// PayloadCapacity is the number of value bytes an element can hold.
func (c ColumnLayout) PayloadCapacity() int {
	return c.ElementSize - c.TerminatorSize()
}

// Layout is the planned shape of a transit buffer set.
type Layout struct {
	Columns     []ColumnLayout
	RowCapacity int
	BytesPerRow int
}

// TotalBytes is the memory a transit buffer set with this layout occupies.
func (l Layout) TotalBytes() int {
	return l.BytesPerRow * l.RowCapacity
}

// Limits bound the row capacity.
type Limits struct {
	MaxBytes int
	MaxRows  int
	// DriverMaxRows is the driver imposed row array ceiling, zero if none.
	DriverMaxRows int
}

// Plan sizes every column and derives the row capacity shared by all of them:
// min(MaxBytes / bytes per row, MaxRows, DriverMaxRows). A capacity below one
// row is an error, as is a variable column with neither a usable declared
// length nor a limit.
func Plan(requests []ColumnRequest, limits Limits) (Layout, error) {
	layout := Layout{Columns: make([]ColumnLayout, len(requests))}
	for i, req := range requests {
		col, err := planColumn(i, req)
		if err != nil {
			return Layout{}, err
		}
		layout.Columns[i] = col
		layout.BytesPerRow += col.ElementSize + IndicatorSize
	}

	rows := limits.MaxRows
	if rows <= 0 {
		rows = int(^uint(0) >> 1)
	}
	if layout.BytesPerRow > 0 {
		if byBudget := limits.MaxBytes / layout.BytesPerRow; byBudget < rows {
			rows = byBudget
		}
	}
	if limits.DriverMaxRows > 0 && limits.DriverMaxRows < rows {
		rows = limits.DriverMaxRows
	}
	if rows < 1 {
		return Layout{}, errors.Newf(errors.ErrorTypeBufferTooSmall,
			"a single row needs %d bytes, exceeding the budget of %d bytes", layout.BytesPerRow, limits.MaxBytes).
			WithDetail("bytes_per_row", layout.BytesPerRow).
			WithDetail("max_bytes", limits.MaxBytes)
	}
	layout.RowCapacity = rows
	return layout, nil
}

func planColumn(index int, req ColumnRequest) (ColumnLayout, error) {
	width := req.CharWidth
	if width <= 0 {
		width = 1
	}
	col := ColumnLayout{
		Name:       req.Name,
		Spec:       req.Spec,
		Variable:   req.Spec.CType.IsVariable(),
		CharWidth:  width,
		Terminated: req.Terminated,
	}
	if req.FixedSize > 0 {
		col.ElementSize = req.FixedSize
		return col, nil
	}

	length := req.MaxLength
	if length <= 0 || length >= UnboundedLength {
		if req.Limit <= 0 {
			return ColumnLayout{}, errors.Newf(errors.ErrorTypeZeroSizedColumn,
				"could not determine the maximum element size of column %q; set a size limit for it", req.Name).
				WithDetail(errors.DetailColumn, req.Name).
				WithDetail(errors.DetailColumnIndex, index).
				WithDetail(errors.DetailSQLType, req.Spec.SQLType.String())
		}
		length = req.Limit
	} else if req.Limit > 0 && length > req.Limit {
		length = req.Limit
	}

	if col.Spec.ColumnSize == 0 {
		col.Spec.ColumnSize = uint64(length)
	}
	col.ElementSize = length * width
	if req.Terminated {
		col.ElementSize += width
	}
	col.Variable = true
	return col, nil
}
