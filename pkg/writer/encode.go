package writer

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without a zoneinfo database
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/metrics"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/pool"
	"github.com/ajitpratap0/arrowodbc/pkg/temporal"
	"github.com/ajitpratap0/arrowodbc/pkg/typemap"
)

var ne = binary.NativeEndian

const millisPerDay = 86_400_000

// Layouts of the zoned timestamp text per unit.
var zonedLayouts = map[arrow.TimeUnit]string{
	arrow.Second:      "2006-01-02 15:04:05-07:00",
	arrow.Millisecond: "2006-01-02 15:04:05.000-07:00",
	arrow.Microsecond: "2006-01-02 15:04:05.000000-07:00",
	arrow.Nanosecond:  "2006-01-02 15:04:05.000000000-07:00",
}

// param is the bind strategy of one input field.
type param struct {
	index int
	field arrow.Field
	kind  typemap.Kind
	spec  odbc.BindSpec
	wide  bool
	loc   *time.Location
}

func newParam(index int, field arrow.Field, wide bool) (param, error) {
	p := param{index: index, field: field}
	kind, err := typemap.KindOf(field.Type)
	if err != nil {
		return p, unsupported(err, field, index)
	}
	p.kind = kind
	p.wide = wide && kind.IsText()

	if kind == typemap.KindDecimal128 || kind == typemap.KindDecimal256 {
		if precision, scale := typemap.DecimalParams(field.Type); scale > precision {
			return p, unsupported(errors.Newf(errors.ErrorTypeUnsupportedType,
				"decimal scale %d exceeds precision %d", scale, precision), field, index)
		}
	}
	if kind == typemap.KindTimestampTZ {
		p.loc, err = loadLocation(field.Type.(*arrow.TimestampType).TimeZone)
		if err != nil {
			return p, unsupported(err, field, index)
		}
	}
	p.spec, err = typemap.BindSpecFor(field.Type, p.wide)
	if err != nil {
		return p, unsupported(err, field, index)
	}
	return p, nil
}

func unsupported(err error, field arrow.Field, index int) error {
	return errors.Wrap(err, errors.ErrorTypeUnsupportedType, "cannot insert field").
		WithDetail(errors.DetailColumn, field.Name).
		WithDetail(errors.DetailColumnIndex, index).
		WithDetail(errors.DetailArrowType, field.Type.String())
}

// loadLocation accepts IANA zone names and fixed "+HH:MM" offsets.
func loadLocation(tz string) (*time.Location, error) {
	if strings.HasPrefix(tz, "+") || strings.HasPrefix(tz, "-") {
		hh, mm, ok := strings.Cut(tz[1:], ":")
		h, herr := strconv.Atoi(hh)
		m, merr := strconv.Atoi(mm)
		if !ok || herr != nil || merr != nil || h > 23 || m > 59 {
			return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "invalid time zone offset %q", tz)
		}
		offset := h*3600 + m*60
		if tz[0] == '-' {
			offset = -offset
		}
		return time.FixedZone(tz, offset), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "unknown time zone").
			WithDetail(errors.DetailValue, tz)
	}
	return loc, nil
}

// request sizes the parameter buffer. Variable text and binary buffers start
// at a single unit and grow with the data.
func (p *param) request() buffer.ColumnRequest {
	req := buffer.ColumnRequest{Name: p.field.Name, Spec: p.spec, CharWidth: 1}
	switch p.kind {
	case typemap.KindString, typemap.KindLargeString:
		req.MaxLength = 1
		req.Terminated = true
		if p.wide {
			req.CharWidth = 2
		}
	case typemap.KindBinary, typemap.KindLargeBinary:
		req.MaxLength = 1
	case typemap.KindFixedSizeBinary:
		req.FixedSize = p.field.Type.(*arrow.FixedSizeBinaryType).ByteWidth
	case typemap.KindDecimal128, typemap.KindDecimal256:
		req.MaxLength = typemap.DecimalTextLength(typemap.DecimalParams(p.field.Type))
		req.Terminated = true
	case typemap.KindTimeFraction:
		req.MaxLength = typemap.TimeTextLength(typemap.TimeUnitOf(p.field.Type))
		req.Terminated = true
	case typemap.KindTimestampTZ:
		req.MaxLength = int(p.spec.ColumnSize)
		req.Terminated = true
	case typemap.KindBoolean, typemap.KindInt8, typemap.KindInt16, typemap.KindInt32, typemap.KindInt64,
		typemap.KindUint8, typemap.KindUint16, typemap.KindUint32, typemap.KindUint64,
		typemap.KindFloat16, typemap.KindFloat32, typemap.KindFloat64,
		typemap.KindDate32, typemap.KindDate64, typemap.KindTimeSeconds, typemap.KindTimestamp,
		typemap.KindInvalid:
		req.FixedSize = p.spec.CType.FixedSize()
	}
	return req
}

// encoder writes array values into the parameter buffers.
type encoder struct {
	set     *buffer.TransitSet
	utf16   *encoding.Encoder
	scratch []byte
	log     *zap.Logger
	// grown is set once a column was reallocated; the next execute rebinds.
	grown bool
}

func newEncoder(set *buffer.TransitSet, log *zap.Logger) *encoder {
	return &encoder{
		set:     set,
		utf16:   unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder(),
		scratch: pool.Bytes.Get(256),
		log:     log,
	}
}

func (e *encoder) release() {
	pool.Bytes.Put(e.scratch)
	e.scratch = nil
	e.set.Release()
}

// encode stores value i of arr in parameter row of column col.
func (e *encoder) encode(p *param, col int, arr arrow.Array, i, row int) error {
	if arr.IsNull(i) {
		e.set.SetNull(col, row)
		return nil
	}
	elem := e.set.Element(col, row)
	switch p.kind {
	case typemap.KindBoolean:
		elem[0] = 0
		if arr.(*array.Boolean).Value(i) {
			elem[0] = 1
		}
	case typemap.KindInt8:
		elem[0] = byte(arr.(*array.Int8).Value(i))
	case typemap.KindInt16:
		ne.PutUint16(elem, uint16(arr.(*array.Int16).Value(i)))
	case typemap.KindInt32:
		ne.PutUint32(elem, uint32(arr.(*array.Int32).Value(i)))
	case typemap.KindInt64:
		ne.PutUint64(elem, uint64(arr.(*array.Int64).Value(i)))
	case typemap.KindUint8:
		elem[0] = arr.(*array.Uint8).Value(i)
	case typemap.KindUint16:
		ne.PutUint16(elem, arr.(*array.Uint16).Value(i))
	case typemap.KindUint32:
		ne.PutUint32(elem, arr.(*array.Uint32).Value(i))
	case typemap.KindUint64:
		ne.PutUint64(elem, arr.(*array.Uint64).Value(i))
	case typemap.KindFloat16:
		ne.PutUint32(elem, math.Float32bits(arr.(*array.Float16).Value(i).Float32()))
	case typemap.KindFloat32:
		ne.PutUint32(elem, math.Float32bits(arr.(*array.Float32).Value(i)))
	case typemap.KindFloat64:
		ne.PutUint64(elem, math.Float64bits(arr.(*array.Float64).Value(i)))
	case typemap.KindDate32:
		d, err := temporal.DaysToDate(int64(arr.(*array.Date32).Value(i)))
		if err != nil {
			return err
		}
		d.Encode(elem)
	case typemap.KindDate64:
		days, _ := temporal.FloorDivMod(int64(arr.(*array.Date64).Value(i)), millisPerDay)
		d, err := temporal.DaysToDate(days)
		if err != nil {
			return err
		}
		d.Encode(elem)
	case typemap.KindTimeSeconds:
		clock, _, err := temporal.SplitTimeOfDay(int64(arr.(*array.Time32).Value(i)), arrow.Second)
		if err != nil {
			return err
		}
		clock.Encode(elem)
	case typemap.KindTimestamp:
		unit := typemap.TimeUnitOf(p.field.Type)
		v := int64(arr.(*array.Timestamp).Value(i))
		if unit == arrow.Nanosecond {
			// bound with 7 fractional digits
			q, _ := temporal.FloorDivMod(v, 100)
			v = q * 100
		}
		ts, err := temporal.EpochToTimestamp(v, unit)
		if err != nil {
			return err
		}
		ts.Encode(elem)
	case typemap.KindTimeFraction:
		unit := typemap.TimeUnitOf(p.field.Type)
		var v int64
		switch a := arr.(type) {
		case *array.Time32:
			v = int64(a.Value(i))
		case *array.Time64:
			v = int64(a.Value(i))
		}
		text, err := temporal.FormatTimeOfDay(v, unit)
		if err != nil {
			return err
		}
		return e.variable(col, row, append(e.scratch[:0], text...))
	case typemap.KindTimestampTZ:
		unit := typemap.TimeUnitOf(p.field.Type)
		per := temporal.UnitsPerSecond(unit)
		secs, sub := temporal.FloorDivMod(int64(arr.(*array.Timestamp).Value(i)), per)
		t := time.Unix(secs, sub*(int64(time.Second)/per)).In(p.loc)
		return e.variable(col, row, t.AppendFormat(e.scratch[:0], zonedLayouts[unit]))
	case typemap.KindDecimal128:
		precision, scale := typemap.DecimalParams(p.field.Type)
		text, err := formatDecimal(e.scratch[:0], arr.(*array.Decimal128).Value(i).BigInt(), precision, scale)
		if err != nil {
			return err
		}
		return e.variable(col, row, text)
	case typemap.KindDecimal256:
		precision, scale := typemap.DecimalParams(p.field.Type)
		text, err := formatDecimal(e.scratch[:0], arr.(*array.Decimal256).Value(i).BigInt(), precision, scale)
		if err != nil {
			return err
		}
		return e.variable(col, row, text)
	case typemap.KindString:
		return e.text(p, col, row, arr.(*array.String).Value(i))
	case typemap.KindLargeString:
		return e.text(p, col, row, arr.(*array.LargeString).Value(i))
	case typemap.KindBinary:
		return e.variable(col, row, arr.(*array.Binary).Value(i))
	case typemap.KindLargeBinary:
		return e.variable(col, row, arr.(*array.LargeBinary).Value(i))
	case typemap.KindFixedSizeBinary:
		return e.set.Set(col, row, arr.(*array.FixedSizeBinary).Value(i))
	case typemap.KindInvalid:
		return errors.New(errors.ErrorTypeUnsupportedType, "invalid parameter kind")
	}
	e.set.SetIndicator(col, row, int64(len(elem)))
	return nil
}

func (e *encoder) text(p *param, col, row int, s string) error {
	if !utf8.ValidString(s) {
		return errors.New(errors.ErrorTypeEncoding, "text is not valid UTF-8").
			WithDetail(errors.DetailValue, s)
	}
	if !p.wide {
		return e.variable(col, row, append(e.scratch[:0], s...))
	}
	// UTF-16 never needs more than two bytes per UTF-8 byte
	need := 2 * len(s)
	if cap(e.scratch) < need {
		pool.Bytes.Put(e.scratch)
		e.scratch = pool.Bytes.Get(need)
	}
	e.utf16.Reset()
	n, _, err := e.utf16.Transform(e.scratch[:need], []byte(s), true)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "cannot transcode text to UTF-16")
	}
	return e.variable(col, row, e.scratch[:n])
}

// variable stores a variable-length value, growing the column first when the
// value does not fit. Rows before row are kept.
func (e *encoder) variable(col, row int, value []byte) error {
	layout := e.set.Column(col)
	if len(value) > layout.PayloadCapacity() {
		e.set.Grow(col, len(value), row)
		e.grown = true
		metrics.BufferGrowths.WithLabelValues(metrics.DirectionWrite).Inc()
		e.log.Debug("parameter buffer grown",
			zap.String("column", layout.Name),
			zap.Int("from_bytes", layout.PayloadCapacity()),
			zap.Int("to_bytes", e.set.Column(col).PayloadCapacity()))
	}
	return e.set.Set(col, row, value)
}

// formatDecimal renders v, an integer scaled by 10^scale, as fixed-point
// text: a sign, precision digits zero padded and a point before the last
// scale digits. A negative scale appends its implied zeros.
func formatDecimal(dst []byte, v *big.Int, precision, scale int32) ([]byte, error) {
	sign := byte('+')
	if v.Sign() < 0 {
		sign = '-'
	}
	digits := new(big.Int).Abs(v).Text(10)
	if len(digits) > int(precision) {
		return dst, errors.Newf(errors.ErrorTypeConversion,
			"decimal value has %d digits, more than its precision %d", len(digits), precision).
			WithDetail(errors.DetailValue, v.String())
	}

	dst = append(dst, sign)
	pad := int(precision) - len(digits)
	intDigits := int(precision)
	if scale > 0 {
		intDigits -= int(scale)
	}
	for pos := 0; pos < int(precision); pos++ {
		if pos == intDigits {
			dst = append(dst, '.')
		}
		if pos < pad {
			dst = append(dst, '0')
		} else {
			dst = append(dst, digits[pos-pad])
		}
	}
	for ; scale < 0; scale++ {
		dst = append(dst, '0')
	}
	return dst, nil
}
