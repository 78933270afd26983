package config

import (
	"runtime"
	"strings"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
)

// TextEncoding selects how character data crosses the driver boundary.
type TextEncoding string

const (
	// EncodingAuto picks UTF-16 on Windows and UTF-8 elsewhere
	EncodingAuto TextEncoding = "auto"
	// EncodingUTF8 binds narrow character buffers
	EncodingUTF8 TextEncoding = "utf8"
	// EncodingUTF16 binds wide character buffers
	EncodingUTF16 TextEncoding = "utf16"
)

// Resolve replaces auto with the platform default.
func (e TextEncoding) Resolve() TextEncoding {
	if e == EncodingAuto || e == "" {
		if runtime.GOOS == "windows" {
			return EncodingUTF16
		}
		return EncodingUTF8
	}
	return e
}

// Wide reports whether the resolved encoding uses two-byte code units.
func (e TextEncoding) Wide() bool {
	return e.Resolve() == EncodingUTF16
}

// TinyIntMode decides the signedness of TINYINT columns.
type TinyIntMode string

const (
	// TinyIntUnsigned maps TINYINT to UInt8 unless the driver says otherwise
	TinyIntUnsigned TinyIntMode = "unsigned"
	// TinyIntSigned always maps TINYINT to Int8
	TinyIntSigned TinyIntMode = "signed"
	// TinyIntDriver trusts the driver-reported unsigned attribute
	TinyIntDriver TinyIntMode = "driver"
)

const (
	// DefaultMaxBytesPerBatch bounds the transit buffer memory of one reader
	DefaultMaxBytesPerBatch = 512 * 1024 * 1024
	// DefaultMaxRowsPerBatch is the largest row count a single fetch may return
	DefaultMaxRowsPerBatch = 65535
	// DefaultInsertChunkSize is the parameter array length used by writers
	DefaultInsertChunkSize = 1024
)

// Quirks switch on workarounds for individual drivers.
type Quirks struct {
	// IndicatorsReturnedFromBulkFetchAreMemoryGarbage makes narrow text
	// lengths come from the terminating zero instead of the indicator.
	IndicatorsReturnedFromBulkFetchAreMemoryGarbage bool `yaml:"indicators_returned_from_bulk_fetch_are_memory_garbage" json:"indicators_returned_from_bulk_fetch_are_memory_garbage"`
}

// InsertOptions configures the parameter binder.
type InsertOptions struct {
	// ChunkSize is the number of rows accumulated before a bulk execute
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
}

// Options is the full configuration surface of readers and writers.
type Options struct {
	// MaxBytesPerBatch caps the total transit buffer size
	MaxBytesPerBatch int `yaml:"max_bytes_per_batch" json:"max_bytes_per_batch"`
	// MaxRowsPerBatch caps the rows per fetched batch
	MaxRowsPerBatch int `yaml:"max_rows_per_batch" json:"max_rows_per_batch"`
	// MaxTextSize limits text elements (code units of the bound encoding, 0 = no limit)
	MaxTextSize int `yaml:"max_text_size" json:"max_text_size"`
	// MaxBinarySize limits binary elements in bytes (0 = no limit)
	MaxBinarySize int `yaml:"max_binary_size" json:"max_binary_size"`
	// ColumnMaxBytes overrides the element limit of individual columns by zero-based index
	ColumnMaxBytes map[int]int `yaml:"column_max_bytes" json:"column_max_bytes"`

	TextEncoding             TextEncoding `yaml:"text_encoding" json:"text_encoding"`
	MapValueErrorsToNull     bool         `yaml:"map_value_errors_to_null" json:"map_value_errors_to_null"`
	TrimFixedSizedCharacters bool         `yaml:"trim_fixed_sized_characters" json:"trim_fixed_sized_characters"`
	ConcurrentFetch          bool         `yaml:"concurrent_fetch" json:"concurrent_fetch"`
	// GrowOnTruncation re-reads truncated cells into a larger buffer instead of failing
	GrowOnTruncation bool `yaml:"grow_on_truncation" json:"grow_on_truncation"`

	TinyInt  TinyIntMode `yaml:"tiny_int" json:"tiny_int"`
	DBMSName string      `yaml:"dbms_name" json:"dbms_name"`

	Quirks Quirks        `yaml:"quirks" json:"quirks"`
	Insert InsertOptions `yaml:"insert" json:"insert"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewOptions returns options with the defaults every reader and writer starts from.
func NewOptions() *Options {
	return &Options{
		MaxBytesPerBatch: DefaultMaxBytesPerBatch,
		MaxRowsPerBatch:  DefaultMaxRowsPerBatch,
		TextEncoding:     EncodingAuto,
		TinyInt:          TinyIntUnsigned,
		Insert: InsertOptions{
			ChunkSize: DefaultInsertChunkSize,
		},
		LogLevel: "info",
	}
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	clone := *o
	if o.ColumnMaxBytes != nil {
		clone.ColumnMaxBytes = make(map[int]int, len(o.ColumnMaxBytes))
		for k, v := range o.ColumnMaxBytes {
			clone.ColumnMaxBytes[k] = v
		}
	}
	return &clone
}

// ColumnLimit returns the per-column override for index, if any.
func (o *Options) ColumnLimit(index int) (int, bool) {
	v, ok := o.ColumnMaxBytes[index]
	return v, ok
}

// IsSQLServer reports whether the DBMS name identifies Microsoft SQL Server.
func (o *Options) IsSQLServer() bool {
	return o.DBMSName == "Microsoft SQL Server"
}

// IsDB2 reports whether the DBMS name identifies IBM DB2.
func (o *Options) IsDB2() bool {
	return strings.HasPrefix(o.DBMSName, "DB2/")
}

// Validate validates the options for correctness.
func (o *Options) Validate() error {
	if o.MaxBytesPerBatch <= 0 {
		return invalid("max_bytes_per_batch must be positive", o.MaxBytesPerBatch)
	}
	if o.MaxRowsPerBatch <= 0 {
		return invalid("max_rows_per_batch must be positive", o.MaxRowsPerBatch)
	}
	if o.MaxTextSize < 0 {
		return invalid("max_text_size cannot be negative", o.MaxTextSize)
	}
	if o.MaxBinarySize < 0 {
		return invalid("max_binary_size cannot be negative", o.MaxBinarySize)
	}
	for index, limit := range o.ColumnMaxBytes {
		if index < 0 {
			return invalid("column_max_bytes keys are zero-based column indices", index)
		}
		if limit <= 0 {
			return invalid("column_max_bytes values must be positive", limit).
				WithDetail(errors.DetailColumnIndex, index)
		}
	}
	switch o.TextEncoding {
	case "", EncodingAuto, EncodingUTF8, EncodingUTF16:
	default:
		return invalid("text_encoding must be auto, utf8 or utf16", o.TextEncoding)
	}
	switch o.TinyInt {
	case "", TinyIntUnsigned, TinyIntSigned, TinyIntDriver:
	default:
		return invalid("tiny_int must be unsigned, signed or driver", o.TinyInt)
	}
	if o.Insert.ChunkSize <= 0 {
		return invalid("insert.chunk_size must be positive", o.Insert.ChunkSize)
	}
	return nil
}

func invalid(msg string, value interface{}) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, msg).WithDetail(errors.DetailValue, value)
}
