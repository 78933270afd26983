package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc/odbctest"
)

func testOptions() *config.Options {
	opts := config.NewOptions()
	opts.TextEncoding = config.EncodingUTF8
	opts.MaxBytesPerBatch = 1 << 20
	return opts
}

func newTestReader(t *testing.T, cursor odbc.Cursor, opts *config.Options, extra ...Option) (*Reader, *memory.CheckedAllocator) {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	options := append([]Option{WithOptions(opts), WithAllocator(mem), WithLogger(zaptest.NewLogger(t))}, extra...)
	r, err := NewReader(cursor, options...)
	require.NoError(t, err)
	return r, mem
}

// drain reads every batch and renders each row as strings for comparison.
func drain(t *testing.T, r *Reader) ([]int64, [][]string) {
	t.Helper()
	var (
		sizes []int64
		rows  [][]string
	)
	for {
		rec, err := r.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, rec.NumRows())
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]string, rec.NumCols())
			for c, col := range rec.Columns() {
				require.Equal(t, rec.NumRows(), int64(col.Len()))
				if col.IsNull(i) {
					row[c] = "<null>"
				} else {
					row[c] = col.ValueStr(i)
				}
			}
			rows = append(rows, row)
		}
		rec.Release()
	}
	return sizes, rows
}

func sampleColumns(n int) []odbctest.Column {
	ids := make([]interface{}, n)
	names := make([]interface{}, n)
	flags := make([]interface{}, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i)
		if i%3 == 2 {
			names[i] = nil
		} else {
			names[i] = fmt.Sprintf("name-%d", i)
		}
		flags[i] = i%2 == 0
	}
	return []odbctest.Column{
		odbctest.Col("id", odbc.SQLInteger, 10, 0, ids...).NotNull(),
		odbctest.Col("name", odbc.SQLVarchar, 16, 0, names...),
		odbctest.Col("flag", odbc.SQLBit, 1, 0, flags...),
	}
}

func TestReaderExhaustsCursor(t *testing.T) {
	cursor := odbctest.NewCursor(sampleColumns(5)...)
	opts := testOptions()
	opts.MaxRowsPerBatch = 2
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	sizes, rows := drain(t, r)
	assert.Equal(t, []int64{2, 2, 1}, sizes)
	assert.Equal(t, int64(5), r.RowsRead())
	assert.Equal(t, 4, cursor.Fetches())
	assert.Equal(t, []string{"2", "<null>", "true"}, rows[2])
	assert.Equal(t, []string{"4", "name-4", "true"}, rows[4])

	_, err := r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 4, cursor.Fetches())
}

func TestReaderSchemaInference(t *testing.T) {
	cursor := odbctest.NewCursor(
		odbctest.Col("id", odbc.SQLBigInt, 19, 0).NotNull(),
		odbctest.Col("price", odbc.SQLDecimal, 10, 2),
		odbctest.Col("ratio", odbc.SQLDouble, 15, 0),
		odbctest.Col("day", odbc.SQLTypeDate, 10, 0),
		odbctest.Col("at", odbc.SQLTypeTimestamp, 23, 3),
		odbctest.Col("raw", odbc.SQLVarbinary, 8, 0),
		odbctest.Col("small", odbc.SQLTinyInt, 3, 0),
	)
	r, mem := newTestReader(t, cursor, testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	want := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "price", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}, Nullable: true},
		{Name: "ratio", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond}, Nullable: true},
		{Name: "raw", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "small", Type: arrow.PrimitiveTypes.Uint8, Nullable: true},
	}, nil)
	assert.True(t, want.Equal(r.Schema()), "got %s", r.Schema())

	_, err := r.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestReaderDecimalText(t *testing.T) {
	cursor := odbctest.NewCursor(
		odbctest.Col("d", odbc.SQLDecimal, 10, 5, "10", "-000.001", "3,5", nil),
	)
	r, mem := newTestReader(t, cursor, testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	defer rec.Release()

	arr := rec.Column(0).(*array.Decimal128)
	assert.Equal(t, decimal128.FromI64(1000000), arr.Value(0))
	assert.Equal(t, decimal128.FromI64(-100), arr.Value(1))
	assert.Equal(t, decimal128.FromI64(350000), arr.Value(2))
	assert.True(t, arr.IsNull(3))
}

func TestReaderTemporal(t *testing.T) {
	cursor := odbctest.NewCursor(
		odbctest.Col("ts", odbc.SQLTypeTimestamp, 23, 3,
			odbc.Timestamp{Year: 1600, Month: 6, Day: 18, Hour: 23, Minute: 12, Second: 44, Fraction: 123_000_000}),
		odbctest.Col("day", odbc.SQLTypeDate, 10, 0, odbc.Date{Year: 1970, Month: 1, Day: 2}),
		odbctest.Col("clock", odbc.SQLTypeTime, 8, 0, odbc.Time{Hour: 12, Minute: 34, Second: 56}),
		odbctest.Col("precise", odbc.SQLTypeTime, 12, 3, "12:34:56.789"),
		odbctest.Col("micro", odbc.SQLTypeTime, 15, 6, "00:00:01.5"),
	)
	r, mem := newTestReader(t, cursor, testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, arrow.Timestamp(-11661410835877), rec.Column(0).(*array.Timestamp).Value(0))
	assert.Equal(t, arrow.Date32(1), rec.Column(1).(*array.Date32).Value(0))
	assert.Equal(t, arrow.Time32(45296), rec.Column(2).(*array.Time32).Value(0))
	assert.Equal(t, arrow.Time32(45296789), rec.Column(3).(*array.Time32).Value(0))
	assert.Equal(t, arrow.Time64(1500000), rec.Column(4).(*array.Time64).Value(0))
}

func TestReaderWideText(t *testing.T) {
	cursor := odbctest.NewCursor(
		odbctest.Col("名前", odbc.SQLWVarchar, 5, 0, "héllo", "😀", nil).WideName(),
	)
	opts := testOptions()
	opts.TextEncoding = config.EncodingUTF16
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	assert.Equal(t, "名前", r.Schema().Field(0).Name)
	assert.Equal(t, 12, r.Layout().Columns[0].ElementSize)
	_, rows := drain(t, r)
	assert.Equal(t, [][]string{{"héllo"}, {"😀"}, {"<null>"}}, rows)
}

func TestReaderInvalidColumnName(t *testing.T) {
	col := odbctest.Col("x", odbc.SQLInteger, 10, 0)
	col.Desc.Name = []byte{0xff, 0xfe}
	_, err := NewReader(odbctest.NewCursor(col), WithOptions(testOptions()))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncoding))
}

func TestReaderInvalidUTF8Data(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("s", odbc.SQLVarchar, 4, 0, "ok", string([]byte{0xc3, 0x28})))
	r, mem := newTestReader(t, cursor, testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, err := r.Next(context.Background())
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeConversion, e.Type)
	assert.Equal(t, int64(1), e.Details[errors.DetailRow])
	assert.Equal(t, "s", e.Details[errors.DetailColumn])
}

func TestReaderTrimFixedChar(t *testing.T) {
	for _, trim := range []bool{false, true} {
		t.Run(fmt.Sprint(trim), func(t *testing.T) {
			cursor := odbctest.NewCursor(
				odbctest.Col("fixed", odbc.SQLChar, 5, 0, "ab   "),
				odbctest.Col("var", odbc.SQLVarchar, 5, 0, "ab   "),
			)
			opts := testOptions()
			opts.TrimFixedSizedCharacters = trim
			r, mem := newTestReader(t, cursor, opts)
			defer mem.AssertSize(t, 0)
			defer r.Close()

			_, rows := drain(t, r)
			if trim {
				assert.Equal(t, []string{"ab", "ab   "}, rows[0])
			} else {
				assert.Equal(t, []string{"ab   ", "ab   "}, rows[0])
			}
		})
	}
}

func TestReaderGarbageIndicators(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("s", odbc.SQLVarchar, 8, 0, "abc", nil, "defgh"))
	cursor.GarbageIndicators = true
	opts := testOptions()
	opts.Quirks.IndicatorsReturnedFromBulkFetchAreMemoryGarbage = true
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, rows := drain(t, r)
	assert.Equal(t, [][]string{{"abc"}, {"<null>"}, {"defgh"}}, rows)
}

func TestReaderZeroSizedColumn(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("notes", odbc.SQLLongVarchar, 0, 0, "a"))
	_, err := NewReader(cursor, WithOptions(testOptions()))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeZeroSizedColumn))

	opts := testOptions()
	opts.MaxTextSize = 100
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()
	assert.Equal(t, 101, r.Layout().Columns[0].ElementSize)
}

func TestReaderBudgetBelowOneRow(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("id", odbc.SQLInteger, 10, 0, int64(1)))
	opts := testOptions()
	opts.MaxBytesPerBatch = 11
	_, err := NewReader(cursor, WithOptions(opts))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBufferTooSmall))
}

func TestReaderDriverRowLimit(t *testing.T) {
	cursor := odbctest.NewCursor(sampleColumns(7)...)
	cursor.MaxRows = 3
	r, mem := newTestReader(t, cursor, testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	sizes, _ := drain(t, r)
	assert.Equal(t, []int64{3, 3, 1}, sizes)
}

func truncatingCursor() *odbctest.Cursor {
	return odbctest.NewCursor(odbctest.Col("s", odbc.SQLVarchar, 2, 0, "ab", "a much longer value", "cd", "longer again"))
}

func truncatingOptions() *config.Options {
	opts := testOptions()
	opts.ColumnMaxBytes = map[int]int{0: 4}
	opts.MaxRowsPerBatch = 2
	return opts
}

func TestReaderTruncationIsAnError(t *testing.T) {
	r, mem := newTestReader(t, truncatingCursor(), truncatingOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, err := r.Next(context.Background())
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeBufferTooSmall, e.Type)
	assert.Equal(t, int64(1), e.Details[errors.DetailRow])

	_, again := r.Next(context.Background())
	assert.Equal(t, err, again)
}

func TestReaderGrowsOnTruncation(t *testing.T) {
	for _, noTotal := range []bool{false, true} {
		t.Run(fmt.Sprintf("no_total=%v", noTotal), func(t *testing.T) {
			cursor := truncatingCursor()
			cursor.NoTotal = noTotal
			opts := truncatingOptions()
			opts.GrowOnTruncation = true
			r, mem := newTestReader(t, cursor, opts)
			defer mem.AssertSize(t, 0)
			defer r.Close()

			before := testutil.ToFloat64(metrics.BufferGrowths.WithLabelValues(metrics.DirectionRead))
			_, rows := drain(t, r)
			assert.Equal(t, [][]string{{"ab"}, {"a much longer value"}, {"cd"}, {"longer again"}}, rows)
			assert.Equal(t, 1, cursor.CellReads())
			assert.Greater(t, testutil.ToFloat64(metrics.BufferGrowths.WithLabelValues(metrics.DirectionRead)), before)
			// initial bind plus a rebind after growth
			assert.Equal(t, 2, cursor.Binds())
		})
	}
}

func TestReaderGrowthIsTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	opts := truncatingOptions()
	opts.GrowOnTruncation = true
	r, mem := newTestReader(t, truncatingCursor(), opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()
	drain(t, r)

	var grown []sdktrace.Event
	for _, span := range rec.Ended() {
		assert.Equal(t, "reader.fetch", span.Name())
		for _, ev := range span.Events() {
			if ev.Name == "buffer grown" {
				grown = append(grown, ev)
			}
		}
	}
	require.Len(t, grown, 1)
	attrs := map[string]interface{}{}
	for _, kv := range grown[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "s", attrs["column"])
	assert.Equal(t, int64(1), attrs["truncated_rows"])
}

func TestReaderGrowthNeedsCellReader(t *testing.T) {
	opts := truncatingOptions()
	opts.GrowOnTruncation = true
	r, mem := newTestReader(t, odbctest.WithoutCellReader(truncatingCursor()), opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, err := r.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeBufferTooSmall))
}

func invalidDateCursor() *odbctest.Cursor {
	return odbctest.NewCursor(
		odbctest.Col("id", odbc.SQLInteger, 10, 0, int64(1), int64(2), int64(3)).NotNull(),
		odbctest.Col("day", odbc.SQLTypeDate, 10, 0,
			odbc.Date{Year: 2020, Month: 1, Day: 1},
			odbc.Date{Year: 2020, Month: 13, Day: 1},
			odbc.Date{Year: 2020, Month: 2, Day: 30}).NotNull(),
	)
}

func TestReaderConversionErrorIsPositioned(t *testing.T) {
	r, mem := newTestReader(t, invalidDateCursor(), testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, err := r.Next(context.Background())
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeConversion, e.Type)
	assert.Equal(t, "day", e.Details[errors.DetailColumn])
	assert.Equal(t, 1, e.Details[errors.DetailColumnIndex])
	assert.Equal(t, int64(1), e.Details[errors.DetailRow])
}

func TestReaderMapValueErrorsToNull(t *testing.T) {
	opts := testOptions()
	opts.MapValueErrorsToNull = true
	r, mem := newTestReader(t, invalidDateCursor(), opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	assert.False(t, r.Schema().Field(0).Nullable)
	assert.True(t, r.Schema().Field(1).Nullable)

	before := testutil.ToFloat64(metrics.ValuesMappedToNull.WithLabelValues("date32"))
	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	defer rec.Release()

	day := rec.Column(1).(*array.Date32)
	assert.Equal(t, arrow.Date32(18262), day.Value(0))
	assert.True(t, day.IsNull(1))
	assert.True(t, day.IsNull(2))
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ValuesMappedToNull.WithLabelValues("date32")))
}

func TestReaderExplicitSchema(t *testing.T) {
	cursor := odbctest.NewCursor(
		odbctest.Col("id", odbc.SQLInteger, 10, 0, int64(7)),
		odbctest.Col("label", odbc.SQLVarchar, 4, 0, "abc"),
	)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "label", Type: arrow.BinaryTypes.LargeString, Nullable: true},
	}, nil)
	r, mem := newTestReader(t, cursor, testOptions(), WithSchema(schema))
	defer mem.AssertSize(t, 0)
	defer r.Close()

	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(7), rec.Column(0).(*array.Int64).Value(0))
	assert.Equal(t, "abc", rec.Column(1).(*array.LargeString).Value(0))
}

func TestReaderNullInNonNullableField(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("id", odbc.SQLInteger, 10, 0, int64(1), nil))
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int32}}, nil)
	r, mem := newTestReader(t, cursor, testOptions(), WithSchema(schema))
	defer mem.AssertSize(t, 0)
	defer r.Close()

	_, err := r.Next(context.Background())
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.ErrorTypeConversion, e.Type)
	assert.Equal(t, "id", e.Details[errors.DetailColumn])
	assert.Equal(t, int64(1), e.Details[errors.DetailRow])
	assert.Equal(t, "int32", e.Details[errors.DetailArrowType])
}

func TestReaderMapValueErrorsToNullHonorsNullability(t *testing.T) {
	opts := testOptions()
	opts.MapValueErrorsToNull = true
	tests := []struct {
		name     string
		nullable bool
	}{
		{"nullable field maps", true},
		{"non-nullable field fails", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := arrow.NewSchema([]arrow.Field{
				{Name: "id", Type: arrow.PrimitiveTypes.Int32},
				{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: tt.nullable},
			}, nil)
			r, mem := newTestReader(t, invalidDateCursor(), opts, WithSchema(schema))
			defer mem.AssertSize(t, 0)
			defer r.Close()

			rec, err := r.Next(context.Background())
			if tt.nullable {
				require.NoError(t, err)
				defer rec.Release()
				assert.Equal(t, 2, rec.Column(1).NullN())
				return
			}
			require.Error(t, err)
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, errors.ErrorTypeConversion, e.Type)
			assert.Equal(t, "day", e.Details[errors.DetailColumn])
			assert.Equal(t, int64(1), e.Details[errors.DetailRow])
		})
	}
}

func TestReaderExplicitSchemaRejected(t *testing.T) {
	cursor := odbctest.NewCursor(odbctest.Col("d", odbc.SQLDecimal, 10, 0, "100"))
	tests := []struct {
		name   string
		schema *arrow.Schema
		want   errors.ErrorType
	}{
		{"negative scale", arrow.NewSchema([]arrow.Field{{Name: "d", Type: &arrow.Decimal128Type{Precision: 5, Scale: -2}}}, nil), errors.ErrorTypeUnsupportedType},
		{"zoned timestamp", arrow.NewSchema([]arrow.Field{{Name: "d", Type: &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}}}, nil), errors.ErrorTypeUnsupportedType},
		{"list", arrow.NewSchema([]arrow.Field{{Name: "d", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)}}, nil), errors.ErrorTypeUnsupportedType},
		{"field count", arrow.NewSchema(nil, nil), errors.ErrorTypeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(cursor, WithOptions(testOptions()), WithSchema(tt.schema))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.want), "got %v", err)
		})
	}
}

func TestReaderFetchErrorIsTerminal(t *testing.T) {
	cursor := odbctest.NewCursor(sampleColumns(6)...)
	cursor.FailFetchAt = 2
	cursor.FetchErr = fmt.Errorf("connection reset")
	opts := testOptions()
	opts.MaxRowsPerBatch = 2
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	rec.Release()

	_, err = r.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDriver))
	assert.Contains(t, err.Error(), "connection reset")

	_, err = r.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeDriver))
	assert.Equal(t, 2, cursor.Fetches())
}

func TestReaderClosed(t *testing.T) {
	r, mem := newTestReader(t, odbctest.NewCursor(sampleColumns(1)...), testOptions())
	defer mem.AssertSize(t, 0)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err := r.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))
}

func TestConcurrentMatchesSync(t *testing.T) {
	opts := testOptions()
	opts.MaxRowsPerBatch = 4

	syncReader, syncMem := newTestReader(t, odbctest.NewCursor(sampleColumns(23)...), opts)
	syncSizes, syncRows := drain(t, syncReader)
	require.NoError(t, syncReader.Close())
	syncMem.AssertSize(t, 0)

	cursor := odbctest.NewCursor(sampleColumns(23)...)
	cursor.FetchDelay = time.Millisecond
	concOpts := opts.Clone()
	concOpts.ConcurrentFetch = true
	concReader, concMem := newTestReader(t, cursor, concOpts)
	concSizes, concRows := drain(t, concReader)
	require.NoError(t, concReader.Close())
	concMem.AssertSize(t, 0)

	assert.Equal(t, syncSizes, concSizes)
	assert.Equal(t, syncRows, concRows)
	assert.Zero(t, cursor.Overlaps())
}

func TestConcurrentCloseMidSequence(t *testing.T) {
	cursor := odbctest.NewCursor(sampleColumns(50)...)
	cursor.FetchDelay = 2 * time.Millisecond
	opts := testOptions()
	opts.MaxRowsPerBatch = 5
	opts.ConcurrentFetch = true
	r, mem := newTestReader(t, cursor, opts)

	rec, err := r.Next(context.Background())
	require.NoError(t, err)
	rec.Release()
	require.NoError(t, r.Close())
	mem.AssertSize(t, 0)
	assert.Less(t, cursor.Fetches(), 11)
}

func TestConcurrentContextCancel(t *testing.T) {
	cursor := odbctest.NewCursor(sampleColumns(4)...)
	cursor.FetchDelay = 50 * time.Millisecond
	opts := testOptions()
	opts.ConcurrentFetch = true
	r, mem := newTestReader(t, cursor, opts)
	defer mem.AssertSize(t, 0)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	sizes, _ := drain(t, r)
	assert.Equal(t, []int64{4}, sizes)
}

func TestWriteIPC(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			opts := testOptions()
			opts.MaxRowsPerBatch = 3
			r, mem := newTestReader(t, odbctest.NewCursor(sampleColumns(10)...), opts)
			defer mem.AssertSize(t, 0)
			defer r.Close()

			var buf bytes.Buffer
			rows, err := WriteIPC(context.Background(), r, &buf, c, mem)
			require.NoError(t, err)
			assert.Equal(t, int64(10), rows)

			ipcReader, err := ipc.NewReader(&buf, ipc.WithAllocator(mem))
			require.NoError(t, err)
			defer ipcReader.Release()
			assert.True(t, r.Schema().Equal(ipcReader.Schema()))
			var got int64
			for ipcReader.Next() {
				got += ipcReader.Record().NumRows()
			}
			require.NoError(t, ipcReader.Err())
			assert.Equal(t, int64(10), got)
		})
	}
}

func TestWriteIPCUnknownCompression(t *testing.T) {
	r, mem := newTestReader(t, odbctest.NewCursor(sampleColumns(1)...), testOptions())
	defer mem.AssertSize(t, 0)
	defer r.Close()
	_, err := WriteIPC(context.Background(), r, io.Discard, "brotli", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRecordReader(t *testing.T) {
	opts := testOptions()
	opts.MaxRowsPerBatch = 4
	r, mem := newTestReader(t, odbctest.NewCursor(sampleColumns(9)...), opts)
	defer mem.AssertSize(t, 0)

	rr := NewRecordReader(context.Background(), r)
	var total int64
	for rr.Next() {
		total += rr.Record().NumRows()
	}
	require.NoError(t, rr.Err())
	assert.Equal(t, int64(9), total)
	rr.Release()

	_, err := r.Next(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))
}

func ExampleReader() {
	cursor := odbctest.NewCursor(
		odbctest.Col("id", odbc.SQLInteger, 10, 0, int64(1), int64(2)).NotNull(),
		odbctest.Col("name", odbc.SQLVarchar, 8, 0, "alpha", nil),
	)
	opts := config.NewOptions()
	opts.TextEncoding = config.EncodingUTF8

	r, err := NewReader(cursor, WithOptions(opts))
	if err != nil {
		panic(err)
	}
	defer r.Close()

	for {
		rec, err := r.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		fmt.Println(rec.NumRows(), rec.Schema().Field(1).Name)
		rec.Release()
	}
	// Output: 2 name
}
