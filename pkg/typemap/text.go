package typemap

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

// ColumnName decodes the raw name of a column description.
func ColumnName(desc odbc.ColumnDescription) (string, error) {
	if desc.NameWide {
		b, err := AppendUTF16LE(nil, desc.Name)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if !utf8.Valid(desc.Name) {
		return "", errors.New(errors.ErrorTypeEncoding, "invalid UTF-8").
			WithDetail(errors.DetailValue, string(desc.Name))
	}
	return string(desc.Name), nil
}

// AppendUTF16LE decodes little-endian UTF-16 into UTF-8 appended to dst.
// Unpaired surrogates are an error rather than being replaced.
func AppendUTF16LE(dst, src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return dst, errors.New(errors.ErrorTypeEncoding, "UTF-16 payload has odd byte length").
			WithDetail(errors.DetailValue, len(src))
	}
	n := len(src) / 2
	for i := 0; i < n; i++ {
		u := rune(binary.LittleEndian.Uint16(src[2*i:]))
		switch {
		case utf16.IsSurrogate(u):
			if u >= 0xDC00 || i+1 >= n {
				return dst, unpaired(i)
			}
			next := rune(binary.LittleEndian.Uint16(src[2*i+2:]))
			r := utf16.DecodeRune(u, next)
			if r == utf8.RuneError {
				return dst, unpaired(i)
			}
			dst = utf8.AppendRune(dst, r)
			i++
		default:
			dst = utf8.AppendRune(dst, u)
		}
	}
	return dst, nil
}

func unpaired(unit int) *errors.Error {
	return errors.New(errors.ErrorTypeEncoding, "unpaired UTF-16 surrogate").
		WithDetail("code_unit", unit)
}
