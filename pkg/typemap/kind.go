// Package typemap maps relational column descriptions to arrow types and
// arrow types to the relational bind specification used for both directions.
package typemap

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
)

// Kind is the closed set of logical column types the bridge moves. Reader and
// writer dispatch on it with exhaustive switches.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat16
	KindFloat32
	KindFloat64
	KindDecimal128
	KindDecimal256
	KindDate32
	KindDate64
	// KindTimeSeconds is Time32(s), bound as a TIME struct.
	KindTimeSeconds
	// KindTimeFraction is Time32(ms) or Time64(us|ns), bound as text.
	KindTimeFraction
	KindTimestamp
	// KindTimestampTZ is a timestamp with a time zone, bound as text with offset.
	KindTimestampTZ
	KindString
	KindLargeString
	KindBinary
	KindLargeBinary
	KindFixedSizeBinary
)

var kindNames = [...]string{
	KindInvalid:         "invalid",
	KindBoolean:         "boolean",
	KindInt8:            "int8",
	KindInt16:           "int16",
	KindInt32:           "int32",
	KindInt64:           "int64",
	KindUint8:           "uint8",
	KindUint16:          "uint16",
	KindUint32:          "uint32",
	KindUint64:          "uint64",
	KindFloat16:         "float16",
	KindFloat32:         "float32",
	KindFloat64:         "float64",
	KindDecimal128:      "decimal128",
	KindDecimal256:      "decimal256",
	KindDate32:          "date32",
	KindDate64:          "date64",
	KindTimeSeconds:     "time_seconds",
	KindTimeFraction:    "time_fraction",
	KindTimestamp:       "timestamp",
	KindTimestampTZ:     "timestamp_tz",
	KindString:          "string",
	KindLargeString:     "large_string",
	KindBinary:          "binary",
	KindLargeBinary:     "large_binary",
	KindFixedSizeBinary: "fixed_size_binary",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// IsText reports whether values are bound as character data.
func (k Kind) IsText() bool {
	return k == KindString || k == KindLargeString
}

// IsBinary reports whether values are bound as variable binary data.
func (k Kind) IsBinary() bool {
	return k == KindBinary || k == KindLargeBinary
}

// Readable reports whether a reader can produce arrays of this kind.
func (k Kind) Readable() bool {
	return k != KindInvalid && k != KindTimestampTZ
}

// KindOf classifies an arrow type. Nested, dictionary and interval types are
// unsupported.
func KindOf(dt arrow.DataType) (Kind, error) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return KindBoolean, nil
	case *arrow.Int8Type:
		return KindInt8, nil
	case *arrow.Int16Type:
		return KindInt16, nil
	case *arrow.Int32Type:
		return KindInt32, nil
	case *arrow.Int64Type:
		return KindInt64, nil
	case *arrow.Uint8Type:
		return KindUint8, nil
	case *arrow.Uint16Type:
		return KindUint16, nil
	case *arrow.Uint32Type:
		return KindUint32, nil
	case *arrow.Uint64Type:
		return KindUint64, nil
	case *arrow.Float16Type:
		return KindFloat16, nil
	case *arrow.Float32Type:
		return KindFloat32, nil
	case *arrow.Float64Type:
		return KindFloat64, nil
	case *arrow.Decimal128Type:
		return KindDecimal128, nil
	case *arrow.Decimal256Type:
		return KindDecimal256, nil
	case *arrow.Date32Type:
		return KindDate32, nil
	case *arrow.Date64Type:
		return KindDate64, nil
	case *arrow.Time32Type:
		if t.Unit == arrow.Second {
			return KindTimeSeconds, nil
		}
		return KindTimeFraction, nil
	case *arrow.Time64Type:
		return KindTimeFraction, nil
	case *arrow.TimestampType:
		if t.TimeZone != "" {
			return KindTimestampTZ, nil
		}
		return KindTimestamp, nil
	case *arrow.StringType:
		return KindString, nil
	case *arrow.LargeStringType:
		return KindLargeString, nil
	case *arrow.BinaryType:
		return KindBinary, nil
	case *arrow.LargeBinaryType:
		return KindLargeBinary, nil
	case *arrow.FixedSizeBinaryType:
		return KindFixedSizeBinary, nil
	}
	return KindInvalid, errors.Newf(errors.ErrorTypeUnsupportedType, "arrow type %s has no relational mapping", dt).
		WithDetail(errors.DetailArrowType, dt.String())
}

// TimeUnitOf returns the unit of time and timestamp types.
func TimeUnitOf(dt arrow.DataType) arrow.TimeUnit {
	switch t := dt.(type) {
	case *arrow.Time32Type:
		return t.Unit
	case *arrow.Time64Type:
		return t.Unit
	case *arrow.TimestampType:
		return t.Unit
	}
	return arrow.Second
}

// DecimalParams returns precision and scale of decimal types.
func DecimalParams(dt arrow.DataType) (precision, scale int32) {
	switch t := dt.(type) {
	case *arrow.Decimal128Type:
		return t.Precision, t.Scale
	case *arrow.Decimal256Type:
		return t.Precision, t.Scale
	}
	return 0, 0
}
