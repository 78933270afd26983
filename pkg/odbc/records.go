package odbc

import "encoding/binary"

// Sizes of the native date/time records.
const (
	DateSize      = 6
	TimeSize      = 6
	TimestampSize = 16
)

// Date mirrors SQL_DATE_STRUCT.
type Date struct {
	Year  int16
	Month uint16
	Day   uint16
}

// Time mirrors SQL_TIME_STRUCT.
type Time struct {
	Hour   uint16
	Minute uint16
	Second uint16
}

// Timestamp mirrors SQL_TIMESTAMP_STRUCT. Fraction is in nanoseconds.
type Timestamp struct {
	Year     int16
	Month    uint16
	Day      uint16
	Hour     uint16
	Minute   uint16
	Second   uint16
	Fraction uint32
}

// Field offsets follow the C layout: six 2-byte fields, two bytes of
// alignment padding, then the 4-byte fraction.
const (
	offYear     = 0
	offMonth    = 2
	offDay      = 4
	offHour     = 6
	offMinute   = 8
	offSecond   = 10
	offFraction = 12
)

var ne = binary.NativeEndian

// DecodeDate reads a Date from a DateSize element.
func DecodeDate(b []byte) Date {
	_ = b[DateSize-1]
	return Date{
		Year:  int16(ne.Uint16(b[offYear:])),
		Month: ne.Uint16(b[offMonth:]),
		Day:   ne.Uint16(b[offDay:]),
	}
}

// Encode writes d into a DateSize element.
func (d Date) Encode(b []byte) {
	_ = b[DateSize-1]
	ne.PutUint16(b[offYear:], uint16(d.Year))
	ne.PutUint16(b[offMonth:], d.Month)
	ne.PutUint16(b[offDay:], d.Day)
}

// DecodeTime reads a Time from a TimeSize element.
func DecodeTime(b []byte) Time {
	_ = b[TimeSize-1]
	return Time{
		Hour:   ne.Uint16(b[0:]),
		Minute: ne.Uint16(b[2:]),
		Second: ne.Uint16(b[4:]),
	}
}

// Encode writes t into a TimeSize element.
func (t Time) Encode(b []byte) {
	_ = b[TimeSize-1]
	ne.PutUint16(b[0:], t.Hour)
	ne.PutUint16(b[2:], t.Minute)
	ne.PutUint16(b[4:], t.Second)
}

// DecodeTimestamp reads a Timestamp from a TimestampSize element.
func DecodeTimestamp(b []byte) Timestamp {
	_ = b[TimestampSize-1]
	return Timestamp{
		Year:     int16(ne.Uint16(b[offYear:])),
		Month:    ne.Uint16(b[offMonth:]),
		Day:      ne.Uint16(b[offDay:]),
		Hour:     ne.Uint16(b[offHour:]),
		Minute:   ne.Uint16(b[offMinute:]),
		Second:   ne.Uint16(b[offSecond:]),
		Fraction: ne.Uint32(b[offFraction:]),
	}
}

// Encode writes ts into a TimestampSize element. Padding bytes are zeroed.
func (ts Timestamp) Encode(b []byte) {
	_ = b[TimestampSize-1]
	ne.PutUint16(b[offYear:], uint16(ts.Year))
	ne.PutUint16(b[offMonth:], ts.Month)
	ne.PutUint16(b[offDay:], ts.Day)
	ne.PutUint16(b[offHour:], ts.Hour)
	ne.PutUint16(b[offMinute:], ts.Minute)
	ne.PutUint16(b[offSecond:], ts.Second)
	b[offSecond+2], b[offSecond+3] = 0, 0
	ne.PutUint32(b[offFraction:], ts.Fraction)
}

// Date returns the calendar part of ts.
func (ts Timestamp) Date() Date {
	return Date{Year: ts.Year, Month: ts.Month, Day: ts.Day}
}
