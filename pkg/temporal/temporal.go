// Package temporal converts between the civil date/time records exchanged with
// the driver and epoch offsets in arrow time units.
//
// All arithmetic happens in int64 directly at the target unit so that dates
// far from 1970 convert exactly whenever the result fits, rather than going
// through an intermediate nanosecond value that would overflow first.
package temporal

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/odbc"
)

const (
	secondsPerDay  = 86400
	nanosPerSecond = 1_000_000_000
)

// UnitsPerSecond returns how many ticks of unit make one second.
func UnitsPerSecond(unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return 1
	case arrow.Millisecond:
		return 1_000
	case arrow.Microsecond:
		return 1_000_000
	default:
		return nanosPerSecond
	}
}

// FractionDigits returns the number of fractional second digits of unit.
func FractionDigits(unit arrow.TimeUnit) int {
	switch unit {
	case arrow.Second:
		return 0
	case arrow.Millisecond:
		return 3
	case arrow.Microsecond:
		return 6
	default:
		return 9
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorDivMod splits v into a quotient rounded toward negative infinity and a
// non-negative remainder.
func FloorDivMod(v, divisor int64) (int64, int64) {
	q := floorDiv(v, divisor)
	return q, v - q*divisor
}

// DaysFromCivil returns the number of days between 1970-01-01 and the given
// proleptic Gregorian date.
func DaysFromCivil(year int64, month, day int) int64 {
	if month <= 2 {
		year--
	}
	era := floorDiv(year, 400)
	yoe := year - era*400
	mp := int64((month + 9) % 12)
	doy := (153*mp+2)/5 + int64(day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// CivilFromDays is the inverse of DaysFromCivil.
func CivilFromDays(days int64) (year int64, month, day int) {
	z := days + 719468
	era := floorDiv(z, 146097)
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	year = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day = int(doy - (153*mp+2)/5 + 1)
	if mp < 10 {
		month = int(mp + 3)
	} else {
		month = int(mp - 9)
	}
	if month <= 2 {
		year++
	}
	return year, month, day
}

func isLeap(year int64) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the length of month in year.
func DaysInMonth(year int64, month int) int {
	switch month {
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

func validDate(year int64, month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= DaysInMonth(year, month)
}

func validClock(hour, minute, second int) bool {
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60 && second >= 0 && second < 60
}

func invalidValue(msg string, value interface{}) *errors.Error {
	return errors.New(errors.ErrorTypeConversion, msg).WithDetail(errors.DetailValue, value)
}

// mulAdd returns v*factor + add, with add in [0, factor).
func mulAdd(v, factor, add int64) (int64, bool) {
	if v > 0 && v > (math.MaxInt64-add)/factor {
		return 0, false
	}
	if v < 0 && v < math.MinInt64/factor {
		return 0, false
	}
	return v*factor + add, true
}

// DateToDays converts a DATE record to days since the epoch.
func DateToDays(d odbc.Date) (int64, error) {
	if !validDate(int64(d.Year), int(d.Month), int(d.Day)) {
		return 0, invalidValue("invalid calendar date", d)
	}
	return DaysFromCivil(int64(d.Year), int(d.Month), int(d.Day)), nil
}

// DaysToDate converts days since the epoch to a DATE record.
func DaysToDate(days int64) (odbc.Date, error) {
	y, m, d := CivilFromDays(days)
	if y < math.MinInt16 || y > math.MaxInt16 {
		return odbc.Date{}, invalidValue("date year out of range", days)
	}
	return odbc.Date{Year: int16(y), Month: uint16(m), Day: uint16(d)}, nil
}

// TimeToSeconds converts a TIME record to seconds since midnight.
func TimeToSeconds(t odbc.Time) (int64, error) {
	if !validClock(int(t.Hour), int(t.Minute), int(t.Second)) {
		return 0, invalidValue("invalid time of day", t)
	}
	return int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second), nil
}

// TimestampToEpoch converts a TIMESTAMP record to an offset from the epoch in
// unit, truncating sub-unit fractions.
func TimestampToEpoch(ts odbc.Timestamp, unit arrow.TimeUnit) (int64, error) {
	if !validDate(int64(ts.Year), int(ts.Month), int(ts.Day)) ||
		!validClock(int(ts.Hour), int(ts.Minute), int(ts.Second)) ||
		ts.Fraction >= nanosPerSecond {
		return 0, invalidValue("invalid timestamp", ts)
	}
	days := DaysFromCivil(int64(ts.Year), int(ts.Month), int(ts.Day))
	secs := days*secondsPerDay + int64(ts.Hour)*3600 + int64(ts.Minute)*60 + int64(ts.Second)
	per := UnitsPerSecond(unit)
	sub := int64(ts.Fraction) / (nanosPerSecond / per)
	v, ok := mulAdd(secs, per, sub)
	if !ok {
		return 0, invalidValue("timestamp out of range for "+unit.String(), ts)
	}
	return v, nil
}

// EpochToTimestamp converts an offset in unit to a TIMESTAMP record.
func EpochToTimestamp(v int64, unit arrow.TimeUnit) (odbc.Timestamp, error) {
	per := UnitsPerSecond(unit)
	secs, sub := FloorDivMod(v, per)
	days, sod := FloorDivMod(secs, secondsPerDay)
	y, m, d := CivilFromDays(days)
	if y < math.MinInt16 || y > math.MaxInt16 {
		return odbc.Timestamp{}, invalidValue("timestamp year out of range", v)
	}
	return odbc.Timestamp{
		Year:     int16(y),
		Month:    uint16(m),
		Day:      uint16(d),
		Hour:     uint16(sod / 3600),
		Minute:   uint16(sod % 3600 / 60),
		Second:   uint16(sod % 60),
		Fraction: uint32(sub * (nanosPerSecond / per)),
	}, nil
}

// SplitTimeOfDay splits a time-of-day offset in unit into clock fields and
// nanoseconds.
func SplitTimeOfDay(v int64, unit arrow.TimeUnit) (odbc.Time, uint32, error) {
	per := UnitsPerSecond(unit)
	if v < 0 || v >= secondsPerDay*per {
		return odbc.Time{}, 0, invalidValue("time of day out of range", v)
	}
	secs, sub := v/per, v%per
	return odbc.Time{
		Hour:   uint16(secs / 3600),
		Minute: uint16(secs % 3600 / 60),
		Second: uint16(secs % 60),
	}, uint32(sub * (nanosPerSecond / per)), nil
}
