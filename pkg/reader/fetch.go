package reader

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/observability"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// minGrowth is the smallest element payload a grown column gets.
const minGrowth = 64

// fetcher drives bulk fetches of one cursor into transit buffer sets. Only
// one goroutine may use a fetcher at a time.
type fetcher struct {
	cursor odbc.Cursor
	cells  odbc.CellReader
	opts   *config.Options
	log    *zap.Logger
	tracer *observability.Tracer

	bound *buffer.TransitSet
	stale bool
}

func newFetcher(cursor odbc.Cursor, opts *config.Options, log *zap.Logger) *fetcher {
	f := &fetcher{
		cursor: cursor,
		opts:   opts,
		log:    log,
		tracer: observability.NewTracer("reader"),
	}
	if cr, ok := cursor.(odbc.CellReader); ok {
		f.cells = cr
	}
	return f
}

// fetch fills set with the next rowset. firstRow is the absolute index of
// the rowset's first row, used for error positions. Zero rows means the
// cursor is exhausted.
func (f *fetcher) fetch(ctx context.Context, set *buffer.TransitSet, firstRow int64) (int, error) {
	if set != f.bound || f.stale {
		if err := f.cursor.BindColumns(set.Bindings(), set.Capacity()); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeDriver, "failed to bind column buffers")
		}
		f.bound = set
		f.stale = false
	}

	return f.tracer.TraceBatch(ctx, "fetch", set.Capacity(), func(ctx context.Context) (int, error) {
		timer := metrics.NewTimer()
		n, err := f.cursor.Fetch()
		timer.ObserveDuration(metrics.FetchDuration)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeDriver, "bulk fetch failed").
				WithDetail(errors.DetailRow, firstRow)
		}
		if n < 0 || n > set.Capacity() {
			return 0, errors.Newf(errors.ErrorTypeDriver, "driver reported %d rows for a row array of %d", n, set.Capacity())
		}
		if err := f.checkTruncation(ctx, set, n, firstRow); err != nil {
			return 0, err
		}
		return n, nil
	})
}

// checkTruncation inspects every variable column of the rowset. Truncated
// cells are re-read into a grown column when growth is enabled and the cursor
// can re-read cells; otherwise truncation is an error.
func (f *fetcher) checkTruncation(ctx context.Context, set *buffer.TransitSet, n int, firstRow int64) error {
	garbage := f.opts.Quirks.IndicatorsReturnedFromBulkFetchAreMemoryGarbage
	for col := 0; col < set.NumColumns(); col++ {
		layout := set.Column(col)
		if !layout.Variable || (garbage && layout.Spec.CType == odbc.CChar) {
			continue
		}
		var truncated []int
		for row := 0; row < n; row++ {
			if set.Truncated(col, row) {
				truncated = append(truncated, row)
			}
		}
		if len(truncated) == 0 {
			continue
		}
		if !f.opts.GrowOnTruncation || f.cells == nil {
			row := truncated[0]
			return errors.Newf(errors.ErrorTypeBufferTooSmall,
				"value of column %q does not fit its buffer of %d bytes; raise the column size limit", layout.Name, layout.PayloadCapacity()).
				WithDetail(errors.DetailColumn, layout.Name).
				WithDetail(errors.DetailColumnIndex, col).
				WithDetail(errors.DetailRow, firstRow+int64(row)).
				WithDetail(errors.DetailIndicator, set.Indicator(col, row))
		}
		if err := f.grow(ctx, set, col, truncated, n, firstRow); err != nil {
			return err
		}
	}
	return nil
}

func (f *fetcher) grow(ctx context.Context, set *buffer.TransitSet, col int, rows []int, n int, firstRow int64) error {
	for len(rows) > 0 {
		layout := set.Column(col)
		target := 2 * layout.PayloadCapacity()
		if target < minGrowth {
			target = minGrowth
		}
		for _, row := range rows {
			if ind := set.Indicator(col, row); ind > int64(target) {
				target = int(ind)
			}
		}
		if target >= buffer.UnboundedLength {
			return errors.Newf(errors.ErrorTypeBufferTooSmall,
				"column %q would need an element of %d bytes", layout.Name, target).
				WithDetail(errors.DetailColumn, layout.Name).
				WithDetail(errors.DetailColumnIndex, col)
		}
		set.Grow(col, target, n)
		f.stale = true
		metrics.BufferGrowths.WithLabelValues(metrics.DirectionRead).Inc()
		f.log.Warn("transit buffer grown after truncation",
			zap.String("column", layout.Name),
			zap.Int("from_bytes", layout.PayloadCapacity()),
			zap.Int("to_bytes", set.Column(col).PayloadCapacity()),
			zap.Int("truncated_rows", len(rows)))
		observability.SpanFromContext(ctx).AddEvent("buffer grown",
			attribute.String("column", layout.Name),
			attribute.Int("bytes", set.Column(col).PayloadCapacity()),
			attribute.Int("truncated_rows", len(rows)))

		remaining := rows[:0]
		for _, row := range rows {
			ind, err := f.cells.ReadCell(col, row, set.Element(col, row))
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeDriver, "failed to re-read truncated cell").
					WithDetail(errors.DetailColumn, layout.Name).
					WithDetail(errors.DetailRow, firstRow+int64(row))
			}
			set.SetIndicator(col, row, ind)
			if set.Truncated(col, row) {
				remaining = append(remaining, row)
			}
		}
		rows = remaining
	}
	return nil
}
