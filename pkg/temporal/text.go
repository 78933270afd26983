package temporal

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
)

// ParseTimeOfDay parses "HH:MM:SS[.fraction]" into an offset from midnight
// in unit. Extra fractional digits beyond the unit's precision are truncated.
func ParseTimeOfDay(text []byte, unit arrow.TimeUnit) (int64, error) {
	if len(text) < 8 || text[2] != ':' || text[5] != ':' {
		return 0, invalidValue("malformed time of day", string(text))
	}
	hour, ok1 := twoDigits(text[0:2])
	minute, ok2 := twoDigits(text[3:5])
	second, ok3 := twoDigits(text[6:8])
	if !ok1 || !ok2 || !ok3 || !validClock(hour, minute, second) {
		return 0, invalidValue("invalid time of day", string(text))
	}

	per := UnitsPerSecond(unit)
	want := FractionDigits(unit)
	var sub int64
	rest := text[8:]
	if len(rest) > 0 {
		if rest[0] != '.' || len(rest) == 1 {
			return 0, invalidValue("malformed time fraction", string(text))
		}
		digits := 0
		for _, c := range rest[1:] {
			if c < '0' || c > '9' {
				return 0, invalidValue("malformed time fraction", string(text))
			}
			if digits < want {
				sub = sub*10 + int64(c-'0')
				digits++
			}
		}
		for ; digits < want; digits++ {
			sub *= 10
		}
	}
	secs := int64(hour)*3600 + int64(minute)*60 + int64(second)
	return secs*per + sub, nil
}

// FormatTimeOfDay renders an offset from midnight in unit as
// "HH:MM:SS[.fraction]" with the unit's number of fractional digits.
func FormatTimeOfDay(v int64, unit arrow.TimeUnit) (string, error) {
	clock, nanos, err := SplitTimeOfDay(v, unit)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, 18)
	buf = appendTwo(buf, int(clock.Hour))
	buf = append(buf, ':')
	buf = appendTwo(buf, int(clock.Minute))
	buf = append(buf, ':')
	buf = appendTwo(buf, int(clock.Second))
	if digits := FractionDigits(unit); digits > 0 {
		buf = append(buf, '.')
		buf = AppendFraction(buf, nanos, digits)
	}
	return string(buf), nil
}

// AppendFraction appends the leading digits of a nanosecond fraction,
// zero padded.
func AppendFraction(buf []byte, nanos uint32, digits int) []byte {
	s := strconv.FormatUint(uint64(nanos), 10)
	for i := len(s); i < 9; i++ {
		buf = append(buf, '0')
	}
	if len(s) > 9 {
		s = s[len(s)-9:]
	}
	full := append(buf, s...)
	return full[:len(full)-(9-digits)]
}

func twoDigits(b []byte) (int, bool) {
	if b[0] < '0' || b[0] > '9' || b[1] < '0' || b[1] > '9' {
		return 0, false
	}
	return int(b[0]-'0')*10 + int(b[1]-'0'), true
}

func appendTwo(buf []byte, v int) []byte {
	return append(buf, byte('0'+v/10), byte('0'+v%10))
}
