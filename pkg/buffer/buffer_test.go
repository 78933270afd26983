package buffer

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

func int32Request(name string) ColumnRequest {
	return ColumnRequest{Name: name, Spec: odbc.BindSpec{CType: odbc.CSLong, SQLType: odbc.SQLInteger}, FixedSize: 4}
}

func textRequest(name string, maxLen, limit int) ColumnRequest {
	return ColumnRequest{
		Name:       name,
		Spec:       odbc.BindSpec{CType: odbc.CChar, SQLType: odbc.SQLVarchar},
		MaxLength:  maxLen,
		Limit:      limit,
		CharWidth:  1,
		Terminated: true,
	}
}

func TestPlanRowCapacity(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		want   int
	}{
		{"budget bound", Limits{MaxBytes: 10 * 24, MaxRows: 1000}, 10},
		{"row ceiling", Limits{MaxBytes: 1 << 20, MaxRows: 7}, 7},
		{"driver ceiling", Limits{MaxBytes: 1 << 20, MaxRows: 1000, DriverMaxRows: 3}, 3},
		{"exactly one row", Limits{MaxBytes: 24, MaxRows: 1000}, 1},
	}
	requests := []ColumnRequest{int32Request("a"), textRequest("b", 3, 0)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := Plan(requests, tt.limits)
			require.NoError(t, err)
			// int32: 4 + 8, varchar(3): 3 + 1 + 8
			assert.Equal(t, 24, layout.BytesPerRow)
			assert.Equal(t, tt.want, layout.RowCapacity)
		})
	}
}

func TestPlanBudgetBelowOneRow(t *testing.T) {
	_, err := Plan([]ColumnRequest{int32Request("a"), textRequest("b", 100, 0)}, Limits{MaxBytes: 50, MaxRows: 10})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBufferTooSmall))
}

func TestPlanUnboundedColumn(t *testing.T) {
	for _, declared := range []int{0, -1, 1<<31 - 1} {
		_, err := Plan([]ColumnRequest{int32Request("id"), textRequest("notes", declared, 0)}, Limits{MaxBytes: 1 << 20, MaxRows: 10})
		require.Error(t, err)
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errors.ErrorTypeZeroSizedColumn, e.Type)
		assert.Equal(t, "notes", e.Details[errors.DetailColumn])
		assert.Equal(t, 1, e.Details[errors.DetailColumnIndex])
	}

	layout, err := Plan([]ColumnRequest{textRequest("notes", 0, 4096)}, Limits{MaxBytes: 1 << 20, MaxRows: 10})
	require.NoError(t, err)
	assert.Equal(t, 4097, layout.Columns[0].ElementSize)
	assert.Equal(t, uint64(4096), layout.Columns[0].Spec.ColumnSize)
}

func TestPlanClampsToLimit(t *testing.T) {
	layout, err := Plan([]ColumnRequest{textRequest("s", 1000, 10)}, Limits{MaxBytes: 1 << 20, MaxRows: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, layout.Columns[0].ElementSize)
	assert.Equal(t, 10, layout.Columns[0].PayloadCapacity())

	layout, err = Plan([]ColumnRequest{textRequest("s", 5, 10)}, Limits{MaxBytes: 1 << 20, MaxRows: 10})
	require.NoError(t, err)
	assert.Equal(t, 6, layout.Columns[0].ElementSize)
}

func TestPlanWideText(t *testing.T) {
	req := textRequest("w", 4, 0)
	req.Spec.CType = odbc.CWChar
	req.CharWidth = 2
	layout, err := Plan([]ColumnRequest{req}, Limits{MaxBytes: 1 << 20, MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, layout.Columns[0].ElementSize)
	assert.Equal(t, 2, layout.Columns[0].TerminatorSize())
	assert.Equal(t, 8, layout.Columns[0].PayloadCapacity())
}

func newSet(t *testing.T, mem memory.Allocator, requests ...ColumnRequest) *TransitSet {
	t.Helper()
	layout, err := Plan(requests, Limits{MaxBytes: 1 << 20, MaxRows: 4})
	require.NoError(t, err)
	return NewTransitSet(mem, layout)
}

func TestTransitSetZeroedAndReleased(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := newSet(t, mem, int32Request("a"), textRequest("b", 5, 0))
	defer s.Release()

	assert.Equal(t, 4, s.Capacity())
	assert.Equal(t, 2, s.NumColumns())
	for _, b := range s.Bindings() {
		for _, v := range b.Data {
			require.Zero(t, v)
		}
		assert.Len(t, b.Indicators, 4)
	}
	assert.Equal(t, 4*(4+6+16), s.TotalBytes())
}

func TestTransitSetValues(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	s := newSet(t, mem, textRequest("b", 5, 0))
	defer s.Release()

	require.NoError(t, s.Set(0, 0, []byte("hello")))
	v, ok := s.Value(0, 0)
	require.True(t, ok)
	assert.Equal(t, "hello", string(v))
	assert.Equal(t, byte(0), s.Element(0, 0)[5])

	s.SetNull(0, 1)
	_, ok = s.Value(0, 1)
	assert.False(t, ok)
	assert.True(t, s.IsNull(0, 1))

	err := s.Set(0, 2, []byte("too long"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBufferTooSmall))

	s.SetIndicator(0, 3, odbc.NoTotal)
	assert.True(t, s.Truncated(0, 3))
	s.SetIndicator(0, 3, 6)
	assert.True(t, s.Truncated(0, 3))
	s.SetIndicator(0, 3, 5)
	assert.False(t, s.Truncated(0, 3))
}

func TestTransitSetFixedValue(t *testing.T) {
	s := newSet(t, nil, int32Request("a"))
	defer s.Release()

	require.NoError(t, s.Set(0, 0, []byte{1, 2, 3, 4}))
	v, ok := s.Value(0, 0)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, v)
	assert.Equal(t, int64(4), s.Indicator(0, 0))
	assert.False(t, s.Truncated(0, 0))
}

func TestTransitSetGrowPreservesRows(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	s := newSet(t, mem, int32Request("a"), textRequest("b", 2, 0))
	defer s.Release()

	require.NoError(t, s.Set(1, 0, []byte("ab")))
	require.NoError(t, s.Set(1, 1, []byte("cd")))
	s.Grow(1, 10, 2)

	col := s.Column(1)
	assert.Equal(t, 11, col.ElementSize)
	assert.Equal(t, uint64(10), col.Spec.ColumnSize)
	v, _ := s.Value(1, 0)
	assert.Equal(t, "ab", string(v))
	v, _ = s.Value(1, 1)
	assert.Equal(t, "cd", string(v))
	require.NoError(t, s.Set(1, 2, []byte("0123456789")))
	assert.Equal(t, 11, s.Bindings()[1].ElementSize)

	// shrinking is a no-op
	s.Grow(1, 3, 3)
	assert.Equal(t, 11, s.Column(1).ElementSize)
}

func TestTransitSetGrowWideRoundsToCodeUnits(t *testing.T) {
	req := textRequest("w", 1, 0)
	req.Spec.CType = odbc.CWChar
	req.CharWidth = 2
	s := newSet(t, nil, req)
	defer s.Release()

	s.Grow(0, 7, 0)
	assert.Equal(t, 8, s.Column(0).PayloadCapacity())
	assert.Equal(t, uint64(4), s.Column(0).Spec.ColumnSize)
}

func TestReleaseTwice(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	s := newSet(t, mem, int32Request("a"))
	s.Release()
	s.Release()
	mem.AssertSize(t, 0)
}
