package reader

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/typemap"
)

// column is the read strategy of one result column.
type column struct {
	index int
	field arrow.Field
	kind  typemap.Kind
	desc  odbc.ColumnDescription
	wide  bool
	trim  bool
}

// PlanLayout derives the transit buffer layout for reading descs into schema.
// driverMaxRows is the driver's row array ceiling, zero if it has none.
func PlanLayout(schema *arrow.Schema, descs []odbc.ColumnDescription, opts *config.Options, driverMaxRows int) (buffer.Layout, error) {
	_, requests, err := planColumns(schema, descs, opts)
	if err != nil {
		return buffer.Layout{}, err
	}
	return buffer.Plan(requests, buffer.Limits{
		MaxBytes:      opts.MaxBytesPerBatch,
		MaxRows:       opts.MaxRowsPerBatch,
		DriverMaxRows: driverMaxRows,
	})
}

func planColumns(schema *arrow.Schema, descs []odbc.ColumnDescription, opts *config.Options) ([]column, []buffer.ColumnRequest, error) {
	if schema.NumFields() != len(descs) {
		return nil, nil, errors.Newf(errors.ErrorTypeSchema,
			"schema has %d fields but the result set has %d columns", schema.NumFields(), len(descs))
	}
	wide := opts.TextEncoding.Resolve().Wide()
	cols := make([]column, len(descs))
	requests := make([]buffer.ColumnRequest, len(descs))
	for i, desc := range descs {
		field := schema.Field(i)
		kind, err := readableKind(field)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.TypeOf(err), "cannot read column").
				WithDetail(errors.DetailColumn, field.Name).
				WithDetail(errors.DetailColumnIndex, i)
		}
		col := column{index: i, field: field, kind: kind, desc: desc, wide: wide && kind.IsText()}
		col.trim = opts.TrimFixedSizedCharacters && kind.IsText() && desc.DataType.IsFixedChar()
		req, err := request(col, opts)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = col
		requests[i] = req
	}
	return cols, requests, nil
}

func readableKind(field arrow.Field) (typemap.Kind, error) {
	kind, err := typemap.KindOf(field.Type)
	if err != nil {
		return kind, err
	}
	if !kind.Readable() {
		return kind, errors.Newf(errors.ErrorTypeUnsupportedType, "arrow type %s cannot be read", field.Type).
			WithDetail(errors.DetailArrowType, field.Type.String())
	}
	if _, scale := typemap.DecimalParams(field.Type); scale < 0 {
		return kind, errors.Newf(errors.ErrorTypeUnsupportedType, "negative decimal scale %d cannot be read", scale).
			WithDetail(errors.DetailArrowType, field.Type.String())
	}
	return kind, nil
}

// request builds the buffer request of a column. The bind C type is the same
// one the writer uses for the field type.
func request(col column, opts *config.Options) (buffer.ColumnRequest, error) {
	spec, err := typemap.BindSpecFor(col.field.Type, col.wide)
	if err != nil {
		return buffer.ColumnRequest{}, err
	}
	spec.SQLType = col.desc.DataType
	req := buffer.ColumnRequest{Name: col.field.Name, Spec: spec, CharWidth: 1}

	switch col.kind {
	case typemap.KindDecimal128, typemap.KindDecimal256:
		// sign, point and a leading zero around the digits
		p, _ := typemap.DecimalParams(col.field.Type)
		req.MaxLength = int(p) + 3
		req.Terminated = true
	case typemap.KindTimeFraction:
		req.MaxLength = typemap.TimeTextLength(typemap.TimeUnitOf(col.field.Type))
		req.Terminated = true
	case typemap.KindString, typemap.KindLargeString:
		req.Terminated = true
		req.MaxLength = textLength(col.desc, col.wide)
		req.Limit = opts.MaxTextSize
		if col.wide {
			req.CharWidth = 2
		}
		if limit, ok := opts.ColumnLimit(col.index); ok {
			req.Limit = limit / req.CharWidth
		}
	case typemap.KindBinary, typemap.KindLargeBinary:
		req.MaxLength = binaryLength(col.desc)
		req.Limit = opts.MaxBinarySize
		if limit, ok := opts.ColumnLimit(col.index); ok {
			req.Limit = limit
		}
	case typemap.KindFixedSizeBinary:
		req.FixedSize = col.field.Type.(*arrow.FixedSizeBinaryType).ByteWidth
	case typemap.KindBoolean, typemap.KindInt8, typemap.KindInt16, typemap.KindInt32, typemap.KindInt64,
		typemap.KindUint8, typemap.KindUint16, typemap.KindUint32, typemap.KindUint64,
		typemap.KindFloat16, typemap.KindFloat32, typemap.KindFloat64,
		typemap.KindDate32, typemap.KindDate64, typemap.KindTimeSeconds, typemap.KindTimestamp:
		req.FixedSize = spec.CType.FixedSize()
	case typemap.KindInvalid, typemap.KindTimestampTZ:
		return buffer.ColumnRequest{}, errors.Newf(errors.ErrorTypeUnsupportedType, "%s columns cannot be read", col.kind).
			WithDetail(errors.DetailColumn, col.field.Name)
	}
	return req, nil
}

// textLength is the maximum length of a value in code units of the bound
// encoding. A UTF-16 unit never needs more than three UTF-8 bytes, a narrow
// character never more than four. Other types are sized by their display
// size. Zero means unknown.
func textLength(desc odbc.ColumnDescription, wide bool) int {
	if !desc.DataType.IsText() {
		if desc.DisplaySize > 0 && desc.DisplaySize < buffer.UnboundedLength {
			return int(desc.DisplaySize)
		}
		return 0
	}
	if desc.ColumnSize >= buffer.UnboundedLength {
		return 0
	}
	size := int(desc.ColumnSize)
	switch {
	case wide:
		return size
	case desc.DataType.IsWide():
		return size * 3
	default:
		return size * 4
	}
}

func binaryLength(desc odbc.ColumnDescription) int {
	switch desc.DataType {
	case odbc.SQLBinary, odbc.SQLVarbinary, odbc.SQLLongVarbinary, odbc.SQLDB2Blob:
		if desc.ColumnSize < buffer.UnboundedLength {
			return int(desc.ColumnSize)
		}
		return 0
	}
	if desc.OctetLength > 0 && desc.OctetLength < buffer.UnboundedLength {
		return int(desc.OctetLength)
	}
	return 0
}
