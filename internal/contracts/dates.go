package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on every boundary (CLI, API, CSV)
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want %s): %w", s, DateLayout, err)
	}
	return d, nil
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeDate drops the clock part and moves t to UTC midnight of its calendar day
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive calendar date range.
// The zero value means "not given" and lets callers apply their own default.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalizes both ends and checks ordering
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("invalid range: %s is after %s", FormatDate(r.Start), FormatDate(r.End))
	}
	return r, nil
}

// ParseDateRange parses both ends from YYYY-MM-DD strings
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// TrailingRange returns [today-days, today]
func TrailingRange(today time.Time, days int) DateRange {
	end := NormalizeDate(today)
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

// SingleDay returns a range covering just d
func SingleDay(d time.Time) DateRange {
	d = NormalizeDate(d)
	return DateRange{Start: d, End: d}
}

// IsZero reports whether the range was left unset
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether d falls inside the range (inclusive)
func (r DateRange) Contains(d time.Time) bool {
	d = NormalizeDate(d)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Weekdays lists Monday to Friday dates in the range, oldest first.
// Exchange holidays are not excluded; the market data source returns no bars for them.
func (r DateRange) Weekdays() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}
