package writer

import (
	"regexp"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// InsertStatement builds a parameterized INSERT naming every field of schema
// in order, one placeholder per field:
//
//	INSERT INTO orders (id, "unit price") VALUES (?, ?)
//
// Field names that are not plain identifiers are double quoted. The table
// name is used verbatim so it may carry a schema or catalog prefix. There is
// no trailing terminator; some drivers read one as a second, empty statement.
func InsertStatement(table string, schema *arrow.Schema) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, f := range schema.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdentifier(f.Name))
	}
	b.WriteString(") VALUES (")
	for i := 0; i < schema.NumFields(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteByte(')')
	return b.String()
}

// QuoteIdentifier returns name unchanged when it is a plain identifier and
// double quoted, with embedded quotes doubled, otherwise.
func QuoteIdentifier(name string) string {
	if plainIdentifier.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
