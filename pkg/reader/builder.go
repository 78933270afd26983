package reader

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/pool"
	"github.com/ajitpratap0/arrowodbc/pkg/temporal"
	"github.com/ajitpratap0/arrowodbc/pkg/typemap"
)

var ne = binary.NativeEndian

const millisPerDay = 86_400_000

// batchBuilder copies filled transit buffers into arrow record batches.
type batchBuilder struct {
	mem     memory.Allocator
	schema  *arrow.Schema
	cols    []column
	limits  []*big.Int
	opts    *config.Options
	log     *zap.Logger
	scratch []byte
}

func newBatchBuilder(mem memory.Allocator, schema *arrow.Schema, cols []column, opts *config.Options, log *zap.Logger) *batchBuilder {
	b := &batchBuilder{
		mem:    mem,
		schema: schema,
		cols:   cols,
		limits: make([]*big.Int, len(cols)),
		opts:   opts,
		log:    log,
	}
	for i, col := range cols {
		if col.kind == typemap.KindDecimal128 || col.kind == typemap.KindDecimal256 {
			p, _ := typemap.DecimalParams(col.field.Type)
			b.limits[i] = precisionLimit(p)
		}
	}
	return b
}

// build converts the first n rows of set. firstRow is the absolute index of
// row zero. The record has exactly n rows.
func (b *batchBuilder) build(set *buffer.TransitSet, n int, firstRow int64) (arrow.Record, error) {
	b.scratch = pool.Bytes.Get(256)
	defer func() {
		pool.Bytes.Put(b.scratch)
		b.scratch = nil
	}()

	arrays := make([]arrow.Array, 0, len(b.cols))
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()
	for i := range b.cols {
		arr, err := b.buildColumn(i, set, n, firstRow)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, arr)
	}
	return array.NewRecord(b.schema, arrays, int64(n)), nil
}

func (b *batchBuilder) buildColumn(i int, set *buffer.TransitSet, n int, firstRow int64) (arrow.Array, error) {
	col := &b.cols[i]
	layout := set.Column(i)
	fromTerminator := b.opts.Quirks.IndicatorsReturnedFromBulkFetchAreMemoryGarbage && layout.Spec.CType == odbc.CChar

	bldr := array.NewBuilder(b.mem, col.field.Type)
	defer bldr.Release()
	bldr.Reserve(n)

	mapped := 0
	for row := 0; row < n; row++ {
		var (
			raw []byte
			ok  bool
		)
		if fromTerminator {
			raw, ok = terminated(set, i, row, layout)
		} else {
			raw, ok = set.Value(i, row)
		}
		if !ok {
			if !col.field.Nullable {
				return nil, positioned(errors.New(errors.ErrorTypeConversion, "null value in non-nullable field"),
					col, i, firstRow+int64(row))
			}
			bldr.AppendNull()
			continue
		}
		if err := b.appendValue(bldr, i, raw); err != nil {
			if b.opts.MapValueErrorsToNull && col.field.Nullable && typemap.Fallible(col.kind) {
				bldr.AppendNull()
				mapped++
				continue
			}
			return nil, positioned(errors.Wrap(err, errors.ErrorTypeConversion, "cannot convert value"),
				col, i, firstRow+int64(row))
		}
	}
	if mapped > 0 {
		metrics.ValuesMappedToNull.WithLabelValues(col.kind.String()).Add(float64(mapped))
		b.log.Warn("values mapped to null",
			zap.String("column", col.field.Name),
			zap.Int("values", mapped),
			zap.Int64("first_row", firstRow),
			zap.Stringer("arrow_type", col.field.Type))
	}
	return bldr.NewArray(), nil
}

func positioned(err *errors.Error, col *column, index int, row int64) *errors.Error {
	return err.WithDetail(errors.DetailColumn, col.field.Name).
		WithDetail(errors.DetailColumnIndex, index).
		WithDetail(errors.DetailRow, row).
		WithDetail(errors.DetailArrowType, col.field.Type.String())
}

// terminated returns the cell payload up to its terminating zero.
func terminated(set *buffer.TransitSet, col, row int, layout buffer.ColumnLayout) ([]byte, bool) {
	if set.IsNull(col, row) {
		return nil, false
	}
	elem := set.Element(col, row)[:layout.PayloadCapacity()]
	if end := bytes.IndexByte(elem, 0); end >= 0 {
		elem = elem[:end]
	}
	return elem, true
}

// appendValue decodes raw and appends it. Nothing is appended on error.
func (b *batchBuilder) appendValue(bldr array.Builder, i int, raw []byte) error {
	col := &b.cols[i]
	switch col.kind {
	case typemap.KindBoolean:
		bldr.(*array.BooleanBuilder).Append(raw[0] != 0)
	case typemap.KindInt8:
		bldr.(*array.Int8Builder).Append(int8(raw[0]))
	case typemap.KindInt16:
		bldr.(*array.Int16Builder).Append(int16(ne.Uint16(raw)))
	case typemap.KindInt32:
		bldr.(*array.Int32Builder).Append(int32(ne.Uint32(raw)))
	case typemap.KindInt64:
		bldr.(*array.Int64Builder).Append(int64(ne.Uint64(raw)))
	case typemap.KindUint8:
		bldr.(*array.Uint8Builder).Append(raw[0])
	case typemap.KindUint16:
		bldr.(*array.Uint16Builder).Append(ne.Uint16(raw))
	case typemap.KindUint32:
		bldr.(*array.Uint32Builder).Append(ne.Uint32(raw))
	case typemap.KindUint64:
		bldr.(*array.Uint64Builder).Append(ne.Uint64(raw))
	case typemap.KindFloat16:
		bldr.(*array.Float16Builder).Append(float16.New(math.Float32frombits(ne.Uint32(raw))))
	case typemap.KindFloat32:
		bldr.(*array.Float32Builder).Append(math.Float32frombits(ne.Uint32(raw)))
	case typemap.KindFloat64:
		bldr.(*array.Float64Builder).Append(math.Float64frombits(ne.Uint64(raw)))
	case typemap.KindDecimal128:
		_, scale := typemap.DecimalParams(col.field.Type)
		v, err := parseDecimal(raw, scale, b.limits[i])
		if err != nil {
			return err
		}
		bldr.(*array.Decimal128Builder).Append(decimal128.FromBigInt(v))
	case typemap.KindDecimal256:
		_, scale := typemap.DecimalParams(col.field.Type)
		v, err := parseDecimal(raw, scale, b.limits[i])
		if err != nil {
			return err
		}
		bldr.(*array.Decimal256Builder).Append(decimal256.FromBigInt(v))
	case typemap.KindDate32:
		days, err := temporal.DateToDays(odbc.DecodeDate(raw))
		if err != nil {
			return err
		}
		bldr.(*array.Date32Builder).Append(arrow.Date32(days))
	case typemap.KindDate64:
		days, err := temporal.DateToDays(odbc.DecodeDate(raw))
		if err != nil {
			return err
		}
		bldr.(*array.Date64Builder).Append(arrow.Date64(days * millisPerDay))
	case typemap.KindTimeSeconds:
		secs, err := temporal.TimeToSeconds(odbc.DecodeTime(raw))
		if err != nil {
			return err
		}
		bldr.(*array.Time32Builder).Append(arrow.Time32(secs))
	case typemap.KindTimeFraction:
		v, err := temporal.ParseTimeOfDay(trimSpace(raw), typemap.TimeUnitOf(col.field.Type))
		if err != nil {
			return err
		}
		switch tb := bldr.(type) {
		case *array.Time32Builder:
			tb.Append(arrow.Time32(v))
		case *array.Time64Builder:
			tb.Append(arrow.Time64(v))
		}
	case typemap.KindTimestamp:
		v, err := temporal.TimestampToEpoch(odbc.DecodeTimestamp(raw), typemap.TimeUnitOf(col.field.Type))
		if err != nil {
			return err
		}
		bldr.(*array.TimestampBuilder).Append(arrow.Timestamp(v))
	case typemap.KindString:
		text, err := b.text(col, raw)
		if err != nil {
			return err
		}
		bldr.(*array.StringBuilder).BinaryBuilder.Append(text)
	case typemap.KindLargeString:
		text, err := b.text(col, raw)
		if err != nil {
			return err
		}
		bldr.(*array.LargeStringBuilder).BinaryBuilder.Append(text)
	case typemap.KindBinary, typemap.KindLargeBinary:
		bldr.(*array.BinaryBuilder).Append(raw)
	case typemap.KindFixedSizeBinary:
		width := col.field.Type.(*arrow.FixedSizeBinaryType).ByteWidth
		if len(raw) != width {
			return errors.Newf(errors.ErrorTypeConversion, "binary value of %d bytes for a width of %d", len(raw), width)
		}
		bldr.(*array.FixedSizeBinaryBuilder).Append(raw)
	case typemap.KindInvalid, typemap.KindTimestampTZ:
		return errors.Newf(errors.ErrorTypeUnsupportedType, "%s columns cannot be read", col.kind)
	}
	return nil
}

// text returns the UTF-8 payload of a text cell, transcoded from UTF-16 for
// wide columns and trimmed for fixed-size character columns.
func (b *batchBuilder) text(col *column, raw []byte) ([]byte, error) {
	var text []byte
	if col.wide {
		var err error
		b.scratch, err = typemap.AppendUTF16LE(b.scratch[:0], raw)
		if err != nil {
			return nil, err
		}
		text = b.scratch
	} else {
		if !utf8.Valid(raw) {
			return nil, errors.New(errors.ErrorTypeEncoding, "text is not valid UTF-8").
				WithDetail(errors.DetailValue, string(raw))
		}
		text = raw
	}
	if col.trim {
		text = bytes.TrimSpace(text)
	}
	return text, nil
}
