// Package odbc describes the ODBC surface the bridge talks to: relational
// type codes, C buffer types, length indicators, native date/time records and
// the cursor and statement interfaces a driver binding has to provide.
//
// The package holds no driver code. A cgo binding (or the in-memory
// simulator in odbctest) implements Cursor and Preparer.
package odbc

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLType is a relational data type code as reported by SQLDescribeCol.
type SQLType int16

// Relational type codes.
const (
	SQLUnknownType   SQLType = 0
	SQLChar          SQLType = 1
	SQLNumeric       SQLType = 2
	SQLDecimal       SQLType = 3
	SQLInteger       SQLType = 4
	SQLSmallInt      SQLType = 5
	SQLFloat         SQLType = 6
	SQLReal          SQLType = 7
	SQLDouble        SQLType = 8
	SQLDateTime      SQLType = 9
	SQLVarchar       SQLType = 12
	SQLTypeDate      SQLType = 91
	SQLTypeTime      SQLType = 92
	SQLTypeTimestamp SQLType = 93
	SQLLongVarchar   SQLType = -1
	SQLBinary        SQLType = -2
	SQLVarbinary     SQLType = -3
	SQLLongVarbinary SQLType = -4
	SQLBigInt        SQLType = -5
	SQLTinyInt       SQLType = -6
	SQLBit           SQLType = -7
	SQLWChar         SQLType = -8
	SQLWVarchar      SQLType = -9
	SQLWLongVarchar  SQLType = -10
	SQLGUID          SQLType = -11

	// SQLDB2Blob is the IBM DB2 specific code for BLOB columns.
	SQLDB2Blob SQLType = -98
	// SQLSSTime2 is the Microsoft SQL Server specific TIME(n) code.
	SQLSSTime2 SQLType = -154
)

var sqlTypeNames = map[SQLType]string{
	SQLUnknownType:   "UNKNOWN",
	SQLChar:          "CHAR",
	SQLNumeric:       "NUMERIC",
	SQLDecimal:       "DECIMAL",
	SQLInteger:       "INTEGER",
	SQLSmallInt:      "SMALLINT",
	SQLFloat:         "FLOAT",
	SQLReal:          "REAL",
	SQLDouble:        "DOUBLE",
	SQLDateTime:      "DATETIME",
	SQLVarchar:       "VARCHAR",
	SQLTypeDate:      "DATE",
	SQLTypeTime:      "TIME",
	SQLTypeTimestamp: "TIMESTAMP",
	SQLLongVarchar:   "LONGVARCHAR",
	SQLBinary:        "BINARY",
	SQLVarbinary:     "VARBINARY",
	SQLLongVarbinary: "LONGVARBINARY",
	SQLBigInt:        "BIGINT",
	SQLTinyInt:       "TINYINT",
	SQLBit:           "BIT",
	SQLWChar:         "WCHAR",
	SQLWVarchar:      "WVARCHAR",
	SQLWLongVarchar:  "WLONGVARCHAR",
	SQLGUID:          "GUID",
}

// String returns the conventional name, or the numeric code for
// driver-specific types.
func (t SQLType) String() string {
	if name, ok := sqlTypeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// ParseSQLType accepts a type name (case-insensitive, "SQL_" prefix optional)
// or a numeric code.
func ParseSQLType(s string) (SQLType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "SQL_")
	for code, n := range sqlTypeNames {
		if n == name {
			return code, nil
		}
	}
	switch name {
	case "NVARCHAR":
		return SQLWVarchar, nil
	case "NCHAR":
		return SQLWChar, nil
	case "TEXT":
		return SQLLongVarchar, nil
	case "INT":
		return SQLInteger, nil
	case "BOOLEAN":
		return SQLBit, nil
	}
	code, err := strconv.ParseInt(name, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown SQL type %q", s)
	}
	return SQLType(code), nil
}

// IsText reports whether the code names a character type.
func (t SQLType) IsText() bool {
	switch t {
	case SQLChar, SQLVarchar, SQLLongVarchar, SQLWChar, SQLWVarchar, SQLWLongVarchar:
		return true
	}
	return false
}

// IsWide reports whether the code names a national (UTF-16) character type.
func (t SQLType) IsWide() bool {
	switch t {
	case SQLWChar, SQLWVarchar, SQLWLongVarchar:
		return true
	}
	return false
}

// IsFixedChar reports whether values of this type are blank padded.
func (t SQLType) IsFixedChar() bool {
	return t == SQLChar || t == SQLWChar
}

// CType is the C buffer type a column or parameter is bound as.
type CType int16

// C buffer types.
const (
	CChar          CType = 1
	CWChar         CType = -8
	CBinary        CType = -2
	CBit           CType = -7
	CSTinyInt      CType = -26
	CUTinyInt      CType = -28
	CSShort        CType = -15
	CUShort        CType = -17
	CSLong         CType = -16
	CULong         CType = -18
	CSBigInt       CType = -25
	CUBigInt       CType = -27
	CFloat         CType = 7
	CDouble        CType = 8
	CTypeDate      CType = 91
	CTypeTime      CType = 92
	CTypeTimestamp CType = 93
)

var cTypeNames = map[CType]string{
	CChar:          "SQL_C_CHAR",
	CWChar:         "SQL_C_WCHAR",
	CBinary:        "SQL_C_BINARY",
	CBit:           "SQL_C_BIT",
	CSTinyInt:      "SQL_C_STINYINT",
	CUTinyInt:      "SQL_C_UTINYINT",
	CSShort:        "SQL_C_SSHORT",
	CUShort:        "SQL_C_USHORT",
	CSLong:         "SQL_C_SLONG",
	CULong:         "SQL_C_ULONG",
	CSBigInt:       "SQL_C_SBIGINT",
	CUBigInt:       "SQL_C_UBIGINT",
	CFloat:         "SQL_C_FLOAT",
	CDouble:        "SQL_C_DOUBLE",
	CTypeDate:      "SQL_C_TYPE_DATE",
	CTypeTime:      "SQL_C_TYPE_TIME",
	CTypeTimestamp: "SQL_C_TYPE_TIMESTAMP",
}

func (c CType) String() string {
	if name, ok := cTypeNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// FixedSize returns the element size of fixed-width C types and 0 for
// variable-length ones.
func (c CType) FixedSize() int {
	switch c {
	case CBit, CSTinyInt, CUTinyInt:
		return 1
	case CSShort, CUShort:
		return 2
	case CSLong, CULong, CFloat:
		return 4
	case CSBigInt, CUBigInt, CDouble:
		return 8
	case CTypeDate:
		return DateSize
	case CTypeTime:
		return TimeSize
	case CTypeTimestamp:
		return TimestampSize
	}
	return 0
}

// IsVariable reports whether elements of this type carry a length indicator.
func (c CType) IsVariable() bool {
	return c == CChar || c == CWChar || c == CBinary
}

// Length indicator sentinels.
const (
	// NullData marks a NULL cell.
	NullData int64 = -1
	// NoTotal means the driver could not report the full length of a truncated value.
	NoTotal int64 = -4
)

// Nullability as reported by SQLDescribeCol.
type Nullability int

const (
	NoNulls         Nullability = 0
	Nullable        Nullability = 1
	NullableUnknown Nullability = 2
)

// CouldBeNull reports whether a column may contain NULL.
func (n Nullability) CouldBeNull() bool {
	return n != NoNulls
}

func (n Nullability) String() string {
	switch n {
	case NoNulls:
		return "no_nulls"
	case Nullable:
		return "nullable"
	default:
		return "unknown"
	}
}
