package typemap

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/temporal"
)

// Lengths of the textual timestamp-with-offset rendering per unit:
// "YYYY-MM-DD HH:MM:SS[.f]+HH:MM".
var timestampTZTextLength = map[arrow.TimeUnit]int{
	arrow.Second:      25,
	arrow.Millisecond: 29,
	arrow.Microsecond: 32,
	arrow.Nanosecond:  35,
}

// NanosecondTimestampDigits is the fractional precision nanosecond
// timestamps are bound with. Most databases stop at 100ns.
const NanosecondTimestampDigits = 7

// DecimalTextLength is the length of the fixed-point text rendering of a
// decimal: a sign, the digits and a point when scale is positive. A negative
// scale adds its implied trailing zeros.
func DecimalTextLength(precision, scale int32) int {
	switch {
	case scale == 0:
		return int(precision) + 1
	case scale < 0:
		return int(precision-scale) + 1
	default:
		return int(precision) + 2
	}
}

// TimeTextLength is the length of "HH:MM:SS.fraction" for unit.
func TimeTextLength(unit arrow.TimeUnit) int {
	if d := temporal.FractionDigits(unit); d > 0 {
		return 9 + d
	}
	return 8
}

// BindSpecFor returns the relational bind specification of an arrow type.
// The same C type is used for reading and writing. ColumnSize of variable
// text and binary kinds is left at zero; it depends on the data.
func BindSpecFor(dt arrow.DataType, wide bool) (odbc.BindSpec, error) {
	kind, err := KindOf(dt)
	if err != nil {
		return odbc.BindSpec{}, err
	}
	switch kind {
	case KindBoolean:
		return odbc.BindSpec{CType: odbc.CBit, SQLType: odbc.SQLBit, ColumnSize: 1}, nil
	case KindInt8:
		return odbc.BindSpec{CType: odbc.CSTinyInt, SQLType: odbc.SQLTinyInt, ColumnSize: 3}, nil
	case KindUint8:
		return odbc.BindSpec{CType: odbc.CUTinyInt, SQLType: odbc.SQLTinyInt, ColumnSize: 3}, nil
	case KindInt16:
		return odbc.BindSpec{CType: odbc.CSShort, SQLType: odbc.SQLSmallInt, ColumnSize: 5}, nil
	case KindUint16:
		return odbc.BindSpec{CType: odbc.CUShort, SQLType: odbc.SQLInteger, ColumnSize: 10}, nil
	case KindInt32:
		return odbc.BindSpec{CType: odbc.CSLong, SQLType: odbc.SQLInteger, ColumnSize: 10}, nil
	case KindUint32:
		return odbc.BindSpec{CType: odbc.CULong, SQLType: odbc.SQLBigInt, ColumnSize: 19}, nil
	case KindInt64:
		return odbc.BindSpec{CType: odbc.CSBigInt, SQLType: odbc.SQLBigInt, ColumnSize: 19}, nil
	case KindUint64:
		return odbc.BindSpec{CType: odbc.CUBigInt, SQLType: odbc.SQLBigInt, ColumnSize: 20}, nil
	case KindFloat16, KindFloat32:
		return odbc.BindSpec{CType: odbc.CFloat, SQLType: odbc.SQLReal, ColumnSize: 7}, nil
	case KindFloat64:
		return odbc.BindSpec{CType: odbc.CDouble, SQLType: odbc.SQLDouble, ColumnSize: 15}, nil
	case KindDecimal128, KindDecimal256:
		p, s := DecimalParams(dt)
		spec := odbc.BindSpec{CType: odbc.CChar, SQLType: odbc.SQLDecimal, ColumnSize: uint64(p), DecimalDigits: int16(s)}
		if s < 0 {
			spec.ColumnSize = uint64(p - s)
			spec.DecimalDigits = 0
		}
		return spec, nil
	case KindDate32, KindDate64:
		return odbc.BindSpec{CType: odbc.CTypeDate, SQLType: odbc.SQLTypeDate, ColumnSize: 10}, nil
	case KindTimeSeconds:
		return odbc.BindSpec{CType: odbc.CTypeTime, SQLType: odbc.SQLTypeTime, ColumnSize: 8}, nil
	case KindTimeFraction:
		unit := TimeUnitOf(dt)
		return odbc.BindSpec{
			CType:         odbc.CChar,
			SQLType:       odbc.SQLTypeTime,
			ColumnSize:    uint64(TimeTextLength(unit)),
			DecimalDigits: int16(temporal.FractionDigits(unit)),
		}, nil
	case KindTimestamp:
		digits := temporal.FractionDigits(TimeUnitOf(dt))
		if digits > NanosecondTimestampDigits {
			digits = NanosecondTimestampDigits
		}
		size := uint64(19)
		if digits > 0 {
			size += uint64(digits) + 1
		}
		return odbc.BindSpec{CType: odbc.CTypeTimestamp, SQLType: odbc.SQLTypeTimestamp, ColumnSize: size, DecimalDigits: int16(digits)}, nil
	case KindTimestampTZ:
		return odbc.BindSpec{CType: odbc.CChar, SQLType: odbc.SQLVarchar, ColumnSize: uint64(timestampTZTextLength[TimeUnitOf(dt)])}, nil
	case KindString, KindLargeString:
		if wide {
			return odbc.BindSpec{CType: odbc.CWChar, SQLType: odbc.SQLWVarchar}, nil
		}
		return odbc.BindSpec{CType: odbc.CChar, SQLType: odbc.SQLVarchar}, nil
	case KindBinary, KindLargeBinary:
		return odbc.BindSpec{CType: odbc.CBinary, SQLType: odbc.SQLVarbinary}, nil
	case KindFixedSizeBinary:
		width := dt.(*arrow.FixedSizeBinaryType).ByteWidth
		return odbc.BindSpec{CType: odbc.CBinary, SQLType: odbc.SQLBinary, ColumnSize: uint64(width)}, nil
	}
	return odbc.BindSpec{}, errors.Newf(errors.ErrorTypeUnsupportedType, "no bind specification for %s", dt).
		WithDetail(errors.DetailArrowType, dt.String())
}
