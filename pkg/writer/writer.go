// Package writer inserts arrow record batches into a table through bulk
// parameter arrays.
//
// Rows of incoming batches are encoded into column-wise parameter buffers
// until insert.chunk_size rows are staged, then one bulk execute sends them:
//
//	w, err := writer.Prepare(conn, "orders", schema, writer.WithOptions(opts))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	for rr.Next() {
//	    if err := w.WriteBatch(ctx, rr.Record()); err != nil {
//	        return err
//	    }
//	}
//	return w.Flush(ctx)
package writer

import (
	"context"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/logger"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/observability"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// Option configures a Writer.
type Option func(*settings)

type settings struct {
	opts      *config.Options
	mem       memory.Allocator
	log       *zap.Logger
	statement string
}

// WithOptions sets the configuration. It is copied.
func WithOptions(opts *config.Options) Option {
	return func(s *settings) { s.opts = opts.Clone() }
}

// WithAllocator allocates parameter buffers from mem.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *settings) { s.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithStatement replaces the generated INSERT statement used by Prepare and
// InsertInto. It must have one parameter marker per schema field.
func WithStatement(statement string) Option {
	return func(s *settings) { s.statement = statement }
}

func resolve(options []Option) settings {
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
		s.log = logger.Named("writer")
	}
	return s
}

// Writer stages record batches in parameter buffers and executes them in
// chunks. It is not safe for concurrent use.
type Writer struct {
	inserter odbc.Inserter
	schema   *arrow.Schema
	params   []param
	enc      *encoder
	log      *zap.Logger
	tracer   *observability.Tracer

	// statement is set when the writer was built by Prepare
	statement string

	staged   int
	bound    bool
	inserted int64
	closed   bool
}

// NewWriter prepares parameter buffers for batches of schema. Every field is
// checked up front; a type without a parameter mapping fails here, before
// anything is executed.
func NewWriter(inserter odbc.Inserter, schema *arrow.Schema, options ...Option) (*Writer, error) {
	s := resolve(options)
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}

	wide := s.opts.TextEncoding.Wide()
	params := make([]param, schema.NumFields())
	requests := make([]buffer.ColumnRequest, schema.NumFields())
	for i, field := range schema.Fields() {
		p, err := newParam(i, field, wide)
		if err != nil {
			return nil, err
		}
		params[i] = p
		requests[i] = p.request()
	}
	layout, err := buffer.Plan(requests, buffer.Limits{MaxBytes: math.MaxInt, MaxRows: s.opts.Insert.ChunkSize})
	if err != nil {
		return nil, err
	}
	s.log.Debug("parameter buffers planned",
		zap.Int("chunk_size", layout.RowCapacity),
		zap.Int("bytes_per_row", layout.BytesPerRow))

	return &Writer{
		inserter: inserter,
		schema:   schema,
		params:   params,
		enc:      newEncoder(buffer.NewTransitSet(s.mem, layout), s.log),
		log:      s.log,
		tracer:   observability.NewTracer("writer"),
	}, nil
}

// Prepare prepares the INSERT statement for schema on preparer and returns a
// writer bound to it.
func Prepare(preparer odbc.Preparer, table string, schema *arrow.Schema, options ...Option) (*Writer, error) {
	s := resolve(options)
	statement := s.statement
	if statement == "" {
		statement = InsertStatement(table, schema)
	}
	inserter, err := preparer.Prepare(statement)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDriver, "failed to prepare insert statement").
			WithDetail("statement", statement)
	}
	s.log.Debug("insert statement prepared", zap.String("statement", statement))
	w, err := NewWriter(inserter, schema, options...)
	if err != nil {
		return nil, err
	}
	w.statement = statement
	return w, nil
}

// InsertInto drains rr into table and returns the number of rows inserted.
// rr is not released.
func InsertInto(ctx context.Context, rr array.RecordReader, preparer odbc.Preparer, table string, options ...Option) (int64, error) {
	w, err := Prepare(preparer, table, rr.Schema(), options...)
	if err != nil {
		return 0, err
	}
	defer w.Close()
	ctx = logger.ContextWithStatement(logger.ContextWithTable(ctx, table), w.statement)

	for rr.Next() {
		if err := w.WriteBatch(ctx, rr.Record()); err != nil {
			return w.inserted, err
		}
	}
	if err := rr.Err(); err != nil {
		return w.inserted, errors.Wrap(err, errors.TypeOf(err), "record source failed")
	}
	if err := w.Flush(ctx); err != nil {
		return w.inserted, err
	}
	w.log.Info("insert finished", append(logger.ContextFields(ctx), zap.Int64("rows", w.inserted))...)
	return w.inserted, nil
}

// Schema returns the schema batches must have.
func (w *Writer) Schema() *arrow.Schema { return w.schema }

// RowsInserted is the number of rows executed so far.
func (w *Writer) RowsInserted() int64 { return w.inserted }

// Staged is the number of rows waiting for the next execute.
func (w *Writer) Staged() int { return w.staged }

// WriteBatch encodes the rows of rec, executing every time the parameter
// buffers fill up. On a conversion error the rows of rec staged so far stay
// staged; the failing row and everything after it are not.
func (w *Writer) WriteBatch(ctx context.Context, rec arrow.Record) error {
	if w.closed {
		return errors.New(errors.ErrorTypeClosed, "writer is closed")
	}
	if !rec.Schema().Equal(w.schema) {
		return errors.New(errors.ErrorTypeSchema, "record batch schema does not match the writer schema").
			WithDetail("expected", w.schema.String()).
			WithDetail("actual", rec.Schema().String())
	}

	capacity := w.enc.set.Capacity()
	total := int(rec.NumRows())
	for offset := 0; offset < total; {
		n := total - offset
		if room := capacity - w.staged; n > room {
			n = room
		}
		for col := range w.params {
			if err := w.encodeColumn(col, rec.Column(col), offset, n); err != nil {
				return err
			}
		}
		w.staged += n
		offset += n
		if w.staged == capacity {
			if err := w.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) encodeColumn(col int, arr arrow.Array, offset, n int) error {
	p := &w.params[col]
	for i := 0; i < n; i++ {
		row := w.staged + i
		if err := w.enc.encode(p, col, arr, offset+i, row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConversion, "cannot encode value").
				WithDetail(errors.DetailColumn, p.field.Name).
				WithDetail(errors.DetailColumnIndex, col).
				WithDetail(errors.DetailRow, w.inserted+int64(row)).
				WithDetail(errors.DetailArrowType, p.field.Type.String())
		}
	}
	return nil
}

// Flush executes the staged rows.
func (w *Writer) Flush(ctx context.Context) error {
	if w.closed {
		return errors.New(errors.ErrorTypeClosed, "writer is closed")
	}
	if w.staged == 0 {
		return nil
	}
	if !w.bound || w.enc.grown {
		if err := w.inserter.BindParameters(w.enc.set.Bindings(), w.enc.set.Capacity()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeDriver, "failed to bind parameter buffers")
		}
		w.bound = true
		w.enc.grown = false
	}

	rows, err := w.tracer.TraceBatch(ctx, "execute", w.staged, func(context.Context) (int, error) {
		timer := metrics.NewTimer()
		err := w.inserter.Execute(w.staged)
		timer.ObserveDuration(metrics.ExecuteDuration)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeDriver, "bulk insert failed").
				WithDetail(errors.DetailRow, w.inserted)
		}
		return w.staged, nil
	})
	if err != nil {
		return err
	}
	w.inserted += int64(rows)
	w.staged = 0
	metrics.RowsInserted.Add(float64(rows))
	w.log.Debug("rows inserted",
		append(logger.ContextFields(ctx), zap.Int("rows", rows), zap.Int64("total", w.inserted))...)
	return nil
}

// Close releases the parameter buffers. Staged rows that were not flushed are
// discarded. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.staged > 0 {
		w.log.Warn("closing writer with unflushed rows", zap.Int("rows", w.staged))
	}
	w.enc.release()
	return nil
}
