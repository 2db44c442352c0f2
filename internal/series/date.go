package series

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the wire and storage representation of a Date.
const DateFormat = "2006-01-02"

const daySeconds = 24 * 60 * 60

// Date is a calendar date with day-level granularity. It is the ordering
// and coverage dimension of the cache: totally ordered, no time-of-day,
// always UTC.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month and day.
// Out-of-range components roll over the way time.Date rolls them over.
func NewDate(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// ParseDate parses an ISO-8601 date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Date{y, m, d}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return Date{y, m, d}
}

func (d Date) time() time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.time().Format(DateFormat) }

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// AddDays returns the date n calendar days after d (before, when n < 0).
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }

// Epoch returns the number of whole days since the Unix epoch. Used as the
// sorted-set score in the record store, so it must be strictly monotonic
// in the calendar order.
func (d Date) Epoch() int64 {
	sec := d.time().Unix()
	days := sec / daySeconds
	if sec < 0 && sec%daySeconds != 0 {
		days--
	}
	return days
}

// Compare returns -1, 0 or +1 as d sorts before, equal to or after o.
func (d Date) Compare(o Date) int {
	a, b := d.Epoch(), o.Epoch()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }

// MarshalJSON encodes the date as a quoted ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	p, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}
