package typemap

import (
	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// Decimal precision limits of the two fixed-point representations.
const (
	MaxDecimal128Precision = 38
	MaxDecimal256Precision = 76
)

// ToArrow maps one column description to an arrow type. Descriptions the
// bridge has no dedicated mapping for fall back to text.
func ToArrow(desc odbc.ColumnDescription, opts *config.Options) (arrow.DataType, error) {
	switch desc.DataType {
	case odbc.SQLNumeric, odbc.SQLDecimal:
		return decimalType(desc)
	case odbc.SQLInteger:
		if desc.Unsigned {
			return arrow.PrimitiveTypes.Uint32, nil
		}
		return arrow.PrimitiveTypes.Int32, nil
	case odbc.SQLSmallInt:
		if desc.Unsigned {
			return arrow.PrimitiveTypes.Uint16, nil
		}
		return arrow.PrimitiveTypes.Int16, nil
	case odbc.SQLBigInt:
		if desc.Unsigned {
			return arrow.PrimitiveTypes.Uint64, nil
		}
		return arrow.PrimitiveTypes.Int64, nil
	case odbc.SQLTinyInt:
		return tinyIntType(desc, opts.TinyInt), nil
	case odbc.SQLReal:
		return arrow.PrimitiveTypes.Float32, nil
	case odbc.SQLFloat:
		// FLOAT(p) precision is in binary digits; up to 24 fits a float32
		if desc.ColumnSize <= 24 {
			return arrow.PrimitiveTypes.Float32, nil
		}
		return arrow.PrimitiveTypes.Float64, nil
	case odbc.SQLDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case odbc.SQLBit:
		return arrow.FixedWidthTypes.Boolean, nil
	case odbc.SQLTypeDate, odbc.SQLDateTime:
		return arrow.FixedWidthTypes.Date32, nil
	case odbc.SQLTypeTime:
		return timeType(desc.DecimalDigits), nil
	case odbc.SQLTypeTimestamp:
		return &arrow.TimestampType{Unit: timestampUnit(desc.DecimalDigits)}, nil
	case odbc.SQLBinary:
		if desc.ColumnSize == 0 {
			return nil, errors.New(errors.ErrorTypeZeroSizedColumn, "fixed binary column reports no length").
				WithDetail(errors.DetailSQLType, desc.DataType.String())
		}
		return &arrow.FixedSizeBinaryType{ByteWidth: int(desc.ColumnSize)}, nil
	case odbc.SQLVarbinary, odbc.SQLLongVarbinary:
		return arrow.BinaryTypes.Binary, nil
	case odbc.SQLSSTime2:
		if opts.IsSQLServer() {
			return timeType(desc.DecimalDigits), nil
		}
	case odbc.SQLDB2Blob:
		if opts.IsDB2() {
			return arrow.BinaryTypes.Binary, nil
		}
	}
	return arrow.BinaryTypes.String, nil
}

func decimalType(desc odbc.ColumnDescription) (arrow.DataType, error) {
	precision := int32(desc.ColumnSize)
	scale := int32(desc.DecimalDigits)
	switch {
	case desc.ColumnSize > MaxDecimal256Precision:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
			"decimal precision %d exceeds the supported maximum of %d", desc.ColumnSize, MaxDecimal256Precision).
			WithDetail(errors.DetailSQLType, desc.DataType.String())
	case precision == 0:
		// No usable precision; the text rendering is still meaningful.
		return arrow.BinaryTypes.String, nil
	case scale < 0 || scale > precision:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
			"decimal scale %d is not readable with precision %d", scale, precision).
			WithDetail(errors.DetailSQLType, desc.DataType.String())
	case precision <= MaxDecimal128Precision:
		return &arrow.Decimal128Type{Precision: precision, Scale: scale}, nil
	default:
		return &arrow.Decimal256Type{Precision: precision, Scale: scale}, nil
	}
}

func tinyIntType(desc odbc.ColumnDescription, mode config.TinyIntMode) arrow.DataType {
	switch mode {
	case config.TinyIntSigned:
		return arrow.PrimitiveTypes.Int8
	case config.TinyIntDriver:
		if desc.Unsigned {
			return arrow.PrimitiveTypes.Uint8
		}
		return arrow.PrimitiveTypes.Int8
	default:
		return arrow.PrimitiveTypes.Uint8
	}
}

func timestampUnit(precision int16) arrow.TimeUnit {
	switch {
	case precision <= 0:
		return arrow.Second
	case precision <= 3:
		return arrow.Millisecond
	case precision <= 6:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

func timeType(precision int16) arrow.DataType {
	switch {
	case precision <= 0:
		return arrow.FixedWidthTypes.Time32s
	case precision <= 3:
		return arrow.FixedWidthTypes.Time32ms
	case precision <= 6:
		return arrow.FixedWidthTypes.Time64us
	case precision <= 9:
		return arrow.FixedWidthTypes.Time64ns
	default:
		return arrow.BinaryTypes.String
	}
}

// Fallible reports whether decoding values of kind can fail on bad data.
func Fallible(kind Kind) bool {
	switch kind {
	case KindDate32, KindDate64, KindTimeSeconds, KindTimeFraction, KindTimestamp,
		KindDecimal128, KindDecimal256, KindString, KindLargeString:
		return true
	}
	return false
}

// Field builds the arrow field for column index. Values that may be mapped to
// null force the field nullable when MapValueErrorsToNull is on.
func Field(index int, desc odbc.ColumnDescription, opts *config.Options) (arrow.Field, error) {
	name, err := ColumnName(desc)
	if err != nil {
		return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeEncoding, "column name is not valid text").
			WithDetail(errors.DetailColumnIndex, index)
	}
	dt, err := ToArrow(desc, opts)
	if err != nil {
		return arrow.Field{}, errors.Wrap(err, errors.TypeOf(err), "cannot map column").
			WithDetail(errors.DetailColumn, name).
			WithDetail(errors.DetailColumnIndex, index).
			WithDetail(errors.DetailSQLType, desc.DataType.String())
	}
	kind, err := KindOf(dt)
	if err != nil {
		return arrow.Field{}, err
	}
	nullable := desc.Nullability.CouldBeNull() || (opts.MapValueErrorsToNull && Fallible(kind))
	return arrow.Field{Name: name, Type: dt, Nullable: nullable}, nil
}

// SchemaFrom describes every result column of cursor and infers the schema.
// The descriptions are returned alongside because buffer planning needs the
// declared sizes.
func SchemaFrom(cursor odbc.Cursor, opts *config.Options, log *zap.Logger) (*arrow.Schema, []odbc.ColumnDescription, error) {
	if log == nil {
		log = zap.NewNop()
	}
	descs, err := Describe(cursor)
	if err != nil {
		return nil, nil, err
	}
	fields := make([]arrow.Field, len(descs))
	for i, desc := range descs {
		field, err := Field(i, desc, opts)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("column described",
			zap.Int("index", i),
			zap.String("name", field.Name),
			zap.Stringer("sql_type", desc.DataType),
			zap.Uint64("column_size", desc.ColumnSize),
			zap.Int16("decimal_digits", desc.DecimalDigits),
			zap.Stringer("nullability", desc.Nullability),
			zap.Stringer("arrow_type", field.Type))
		fields[i] = field
	}
	return arrow.NewSchema(fields, nil), descs, nil
}

// Describe fetches the description of every result column.
func Describe(cursor odbc.Cursor) ([]odbc.ColumnDescription, error) {
	n, err := cursor.NumResultCols()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDriver, "unable to retrieve number of result columns")
	}
	descs := make([]odbc.ColumnDescription, n)
	for i := range descs {
		descs[i], err = cursor.DescribeCol(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDriver, "failed to describe column").
				WithDetail(errors.DetailColumnIndex, i)
		}
	}
	return descs, nil
}
