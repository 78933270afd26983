package main

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
	"github.com/ajitpratap0/arrowodbc/pkg/typemap"
)

// ColumnFile is the YAML form of a result set description, as a driver would
// report it through SQLDescribeCol:
//
//	columns:
//	  - name: id
//	    type: INTEGER
//	    nullable: false
//	  - name: price
//	    type: DECIMAL
//	    size: 10
//	    digits: 2
type ColumnFile struct {
	Table   string       `yaml:"table" json:"table,omitempty"`
	Columns []ColumnSpec `yaml:"columns" json:"columns"`
}

// ColumnSpec describes one column.
type ColumnSpec struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Size        uint64 `yaml:"size" json:"size,omitempty"`
	Digits      int16  `yaml:"digits" json:"digits,omitempty"`
	Nullable    *bool  `yaml:"nullable" json:"nullable,omitempty"`
	DisplaySize int64  `yaml:"display_size" json:"display_size,omitempty"`
	Unsigned    bool   `yaml:"unsigned" json:"unsigned,omitempty"`
}

func loadColumnFile(path string) (*ColumnFile, error) {
	var file ColumnFile
	if err := config.Load(path, &file); err != nil {
		return nil, err
	}
	if len(file.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "column file lists no columns").
			WithDetail("path", path)
	}
	return &file, nil
}

// Descriptions converts the file into driver column descriptions.
func (f *ColumnFile) Descriptions() ([]odbc.ColumnDescription, error) {
	descs := make([]odbc.ColumnDescription, len(f.Columns))
	for i, c := range f.Columns {
		sqlType, err := odbc.ParseSQLType(c.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid column type").
				WithDetail(errors.DetailColumn, c.Name).
				WithDetail(errors.DetailColumnIndex, i)
		}
		nullability := odbc.NullableUnknown
		if c.Nullable != nil {
			nullability = odbc.NoNulls
			if *c.Nullable {
				nullability = odbc.Nullable
			}
		}
		descs[i] = odbc.ColumnDescription{
			Name:          []byte(c.Name),
			DataType:      sqlType,
			ColumnSize:    c.Size,
			DecimalDigits: c.Digits,
			Nullability:   nullability,
			DisplaySize:   c.DisplaySize,
			Unsigned:      c.Unsigned,
		}
	}
	return descs, nil
}

// Schema infers the arrow schema the reader would produce for the file.
func (f *ColumnFile) Schema(opts *config.Options) (*arrow.Schema, []odbc.ColumnDescription, error) {
	descs, err := f.Descriptions()
	if err != nil {
		return nil, nil, err
	}
	fields := make([]arrow.Field, len(descs))
	for i, desc := range descs {
		field, err := typemap.Field(i, desc, opts)
		if err != nil {
			return nil, nil, err
		}
		fields[i] = field
	}
	return arrow.NewSchema(fields, nil), descs, nil
}

type fieldReport struct {
	Name     string `json:"name"`
	SQLType  string `json:"sql_type"`
	Type     string `json:"arrow_type"`
	Nullable bool   `json:"nullable"`
}

type columnReport struct {
	Name        string `json:"name"`
	Bind        string `json:"bind"`
	ElementSize int    `json:"element_size"`
	Variable    bool   `json:"variable"`
}

type layoutReport struct {
	RowCapacity int            `json:"row_capacity"`
	BytesPerRow int            `json:"bytes_per_row"`
	TotalBytes  int            `json:"total_bytes"`
	Columns     []columnReport `json:"columns"`
}

func (r fieldReport) String() string {
	null := "not null"
	if r.Nullable {
		null = "null"
	}
	return fmt.Sprintf("%-24s %-16s %-24s %s", r.Name, r.SQLType, r.Type, null)
}

func (r columnReport) String() string {
	return fmt.Sprintf("%-24s %-40s %8d", r.Name, r.Bind, r.ElementSize)
}
