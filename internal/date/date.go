// Package date provides a calendar day value with no time-of-day component,
// and the clock used to decide what "today" is.
package date

import (
	"encoding/json"
	"fmt"
	"time"
)

// Format is the ISO-8601 layout used for parsing and printing dates.
const Format = "2006-01-02"

// readFormat is permissive and accepts single-digit month/day.
const readFormat = "2006-1-2"

// Date is a calendar day. The zero value means "no date".
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date: New(2024, 1, 32) is 2024-02-01.
func New(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date { return New(t.Date()) }

// In returns the calendar day of t observed in loc.
func In(t time.Time, loc *time.Location) Date { return Of(t.In(loc)) }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmp(d.y, x.y)
	case d.m != x.m:
		return cmp(int(d.m), int(x.m))
	default:
		return cmp(d.d, x.d)
	}
}

func cmp(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// AddMonthsClamped moves n months keeping the day of month, clamped to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonthsClamped(n int) Date {
	first := New(d.y, d.m+time.Month(n), 1)
	return first.WithDayClamped(d.d)
}

// WithDayClamped returns the same month with day set to min(day, last day of month).
func (d Date) WithDayClamped(day int) Date {
	if last := DaysIn(d.y, d.m); day > last {
		day = last
	}
	return Date{d.y, d.m, day}
}

const secondsPerDay = 86400

// DaysSince returns the number of days from x to d (d - x).
func (d Date) DaysSince(x Date) int {
	return int(d.Time().Unix()/secondsPerDay - x.Time().Unix()/secondsPerDay)
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Min returns the earliest of a and b.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// Max returns the latest of a and b.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(Format)
}

// Parse reads a date such as "2025-07-01" or "2025-7-1".
func Parse(s string) (Date, error) {
	t, err := time.Parse(readFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, Format, err)
	}
	return Of(t), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)
