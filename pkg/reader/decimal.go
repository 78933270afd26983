package reader

import (
	"math/big"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
)

var bigTen = big.NewInt(10)

// parseDecimal parses fixed-point text into its unscaled integer at scale.
// Drivers may omit trailing fraction zeros ("10" at scale 5 is 1000000) and
// may use ',' as the decimal separator. The sign applies to the whole
// magnitude. Fraction digits beyond scale must be zero and the magnitude must
// stay below limit.
func parseDecimal(text []byte, scale int32, limit *big.Int) (*big.Int, error) {
	s := trimSpace(text)
	if len(s) == 0 {
		return nil, malformedDecimal(text)
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var (
		digits    []byte
		seenPoint bool
		fraction  int32
		sawDigit  bool
	)
	digits = make([]byte, 0, len(s)+int(scale))
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
			if !seenPoint {
				digits = append(digits, c)
				continue
			}
			if fraction < scale {
				digits = append(digits, c)
				fraction++
			} else if c != '0' {
				return nil, errors.Newf(errors.ErrorTypeConversion,
					"decimal text has more than %d fraction digits", scale).
					WithDetail(errors.DetailValue, string(text))
			}
		case (c == '.' || c == ',') && !seenPoint:
			seenPoint = true
		default:
			return nil, malformedDecimal(text)
		}
	}
	if !sawDigit {
		return nil, malformedDecimal(text)
	}
	for ; fraction < scale; fraction++ {
		digits = append(digits, '0')
	}

	v, ok := new(big.Int).SetString(string(digits), 10)
	if !ok {
		return nil, malformedDecimal(text)
	}
	if v.Cmp(limit) >= 0 {
		return nil, errors.New(errors.ErrorTypeConversion, "decimal value exceeds the column precision").
			WithDetail(errors.DetailValue, string(text))
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

// precisionLimit is 10^precision, the smallest magnitude that no longer fits.
func precisionLimit(precision int32) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(precision)), nil)
}

func malformedDecimal(text []byte) *errors.Error {
	return errors.New(errors.ErrorTypeConversion, "malformed decimal text").
		WithDetail(errors.DetailValue, string(text))
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
