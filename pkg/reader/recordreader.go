package reader

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
)

// RecordReader adapts a Reader to array.RecordReader. The record returned by
// Record is valid until the next call to Next.
type RecordReader struct {
	refs   int64
	ctx    context.Context
	reader *Reader
	cur    arrow.Record
	err    error
}

var _ array.RecordReader = (*RecordReader)(nil)

// NewRecordReader wraps r. Releasing the last reference closes r.
func NewRecordReader(ctx context.Context, r *Reader) *RecordReader {
	return &RecordReader{refs: 1, ctx: ctx, reader: r}
}

func (rr *RecordReader) Retain() { atomic.AddInt64(&rr.refs, 1) }

func (rr *RecordReader) Release() {
	if atomic.AddInt64(&rr.refs, -1) == 0 {
		if rr.cur != nil {
			rr.cur.Release()
			rr.cur = nil
		}
		rr.reader.Close()
	}
}

func (rr *RecordReader) Schema() *arrow.Schema { return rr.reader.Schema() }

func (rr *RecordReader) Next() bool {
	if rr.cur != nil {
		rr.cur.Release()
		rr.cur = nil
	}
	if rr.err != nil {
		return false
	}
	rec, err := rr.reader.Next(rr.ctx)
	if err != nil {
		if err != io.EOF {
			rr.err = err
		}
		return false
	}
	rr.cur = rec
	return true
}

func (rr *RecordReader) Record() arrow.Record { return rr.cur }

func (rr *RecordReader) Err() error { return rr.err }

// Compression selects the IPC body compression of WriteIPC.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// WriteIPC streams every remaining batch of r to w in the Arrow IPC stream
// format and returns the number of rows written.
func WriteIPC(ctx context.Context, r *Reader, w io.Writer, compression Compression, mem memory.Allocator) (int64, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	opts := []ipc.Option{ipc.WithSchema(r.Schema()), ipc.WithAllocator(mem)}
	switch compression {
	case CompressionNone, "":
	case CompressionLZ4:
		opts = append(opts, ipc.WithLZ4())
	case CompressionZstd:
		opts = append(opts, ipc.WithZstd())
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown IPC compression %q", compression).
			WithDetail(errors.DetailValue, string(compression))
	}

	iw := ipc.NewWriter(w, opts...)
	var rows int64
	for {
		rec, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			iw.Close()
			return rows, err
		}
		err = iw.Write(rec)
		rows += rec.NumRows()
		rec.Release()
		if err != nil {
			iw.Close()
			return rows, errors.Wrap(err, errors.ErrorTypeInternal, "failed to write IPC batch")
		}
	}
	if err := iw.Close(); err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeInternal, "failed to finish IPC stream")
	}
	return rows, nil
}
