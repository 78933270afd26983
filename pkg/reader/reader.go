// Package reader turns an executing ODBC cursor into a sequence of arrow
// record batches.
//
// A Reader binds column-wise transit buffers sized by the layout planner,
// bulk fetches rowsets into them and converts every rowset into one record:
//
//	r, err := reader.NewReader(cursor, reader.WithOptions(opts))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	for {
//	    rec, err := r.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    consume(rec)
//	    rec.Release()
//	}
//
// With concurrent fetch enabled a background goroutine fetches the next
// rowset into a second buffer set while the current one is converted.
package reader

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/logger"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/typemap"
)

// Option configures a Reader.
type Option func(*settings)

type settings struct {
	opts   *config.Options
	schema *arrow.Schema
	mem    memory.Allocator
	log    *zap.Logger
}

// WithOptions sets the configuration. It is copied; later changes to opts
// have no effect on the reader.
func WithOptions(opts *config.Options) Option {
	return func(s *settings) { s.opts = opts.Clone() }
}

// WithSchema reads into schema instead of inferring one from the column
// descriptions. Fields are matched to columns by position.
func WithSchema(schema *arrow.Schema) Option {
	return func(s *settings) { s.schema = schema }
}

// WithAllocator allocates transit buffers and arrays from mem.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *settings) { s.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

// Reader is a lazy, forward-only sequence of record batches over one cursor.
// It is not safe for concurrent use.
type Reader struct {
	schema  *arrow.Schema
	layout  buffer.Layout
	opts    *config.Options
	log     *zap.Logger
	fetcher *fetcher
	builder *batchBuilder

	set  *buffer.TransitSet
	conc *concurrentFetch

	rows   int64
	err    error
	closed bool
}

// NewReader prepares a reader over cursor: it describes the result columns,
// infers or checks the schema, plans and allocates the transit buffers.
func NewReader(cursor odbc.Cursor, options ...Option) (*Reader, error) {
	s := settings{}
	for _, opt := range options {
		opt(&s)
	}
	if s.opts == nil {
		s.opts = config.NewOptions()
	}
	if s.mem == nil {
		s.mem = memory.DefaultAllocator
	}
	if s.log == nil {
		s.log = logger.Named("reader")
	}
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}

	schema, descs, err := resolveSchema(cursor, s)
	if err != nil {
		return nil, err
	}
	cols, requests, err := planColumns(schema, descs, s.opts)
	if err != nil {
		return nil, err
	}
	driverMax := 0
	if l, ok := cursor.(odbc.RowArrayLimiter); ok {
		driverMax = l.MaxRowArraySize()
	}
	layout, err := buffer.Plan(requests, buffer.Limits{
		MaxBytes:      s.opts.MaxBytesPerBatch,
		MaxRows:       s.opts.MaxRowsPerBatch,
		DriverMaxRows: driverMax,
	})
	if err != nil {
		return nil, err
	}
	logLayout(s.log, layout)

	r := &Reader{
		schema:  schema,
		layout:  layout,
		opts:    s.opts,
		log:     s.log,
		fetcher: newFetcher(cursor, s.opts, s.log),
		builder: newBatchBuilder(s.mem, schema, cols, s.opts, s.log),
	}
	if s.opts.ConcurrentFetch {
		r.conc = startConcurrentFetch(r.fetcher,
			buffer.NewTransitSet(s.mem, layout),
			buffer.NewTransitSet(s.mem, layout))
	} else {
		r.set = buffer.NewTransitSet(s.mem, layout)
	}
	return r, nil
}

func resolveSchema(cursor odbc.Cursor, s settings) (*arrow.Schema, []odbc.ColumnDescription, error) {
	if s.schema == nil {
		return typemap.SchemaFrom(cursor, s.opts, s.log.Named("typemap"))
	}
	descs, err := typemap.Describe(cursor)
	if err != nil {
		return nil, nil, err
	}
	return s.schema, descs, nil
}

func logLayout(log *zap.Logger, layout buffer.Layout) {
	if ce := log.Check(zap.DebugLevel, "transit buffers planned"); ce != nil {
		sizes := make([]int, len(layout.Columns))
		for i, c := range layout.Columns {
			sizes[i] = c.ElementSize
		}
		ce.Write(
			zap.Int("row_capacity", layout.RowCapacity),
			zap.Int("bytes_per_row", layout.BytesPerRow),
			zap.Int("total_bytes", layout.TotalBytes()),
			zap.Ints("element_sizes", sizes))
	}
}

// Schema returns the schema shared by every batch.
func (r *Reader) Schema() *arrow.Schema { return r.schema }

// Layout returns the planned transit buffer layout.
func (r *Reader) Layout() buffer.Layout { return r.layout }

// RowsRead is the number of rows yielded so far.
func (r *Reader) RowsRead() int64 { return r.rows }

// Next fetches and converts the next batch. It returns io.EOF once the
// cursor is exhausted. Any other error is terminal and returned again by
// every later call. The caller owns and must release the record.
func (r *Reader) Next(ctx context.Context) (arrow.Record, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeClosed, "reader is closed")
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rec arrow.Record
		err error
	)
	if r.conc != nil {
		rec, err = r.nextConcurrent(ctx)
	} else {
		rec, err = r.nextSync(ctx)
	}
	if err != nil {
		if err != context.Canceled && err != context.DeadlineExceeded {
			r.err = err
		}
		return nil, err
	}
	r.rows += rec.NumRows()
	metrics.RowsFetched.Add(float64(rec.NumRows()))
	metrics.BatchesProduced.Inc()
	return rec, nil
}

func (r *Reader) nextSync(ctx context.Context) (arrow.Record, error) {
	n, err := r.fetcher.fetch(ctx, r.set, r.rows)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return r.builder.build(r.set, n, r.rows)
}

func (r *Reader) nextConcurrent(ctx context.Context) (arrow.Record, error) {
	res, err := r.conc.next(ctx)
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	if res.rows == 0 {
		return nil, io.EOF
	}
	rec, err := r.builder.build(res.set, res.rows, r.rows)
	r.conc.release(res.set)
	return rec, err
}

// Close stops fetching and releases the transit buffers. A fetch in progress
// on the background goroutine is waited for. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.conc != nil {
		r.conc.stop()
		return nil
	}
	r.set.Release()
	return nil
}
