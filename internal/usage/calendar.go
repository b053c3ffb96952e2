package usage

import (
	"fmt"
	"time"

	"github.com/intelliwatt/intelliwatt/internal/buckets"
)

// DefaultTimeZone is the local zone for all bucket math. Texas retail
// electricity runs on Central Time.
const DefaultTimeZone = "America/Chicago"

// Date is a local calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// YearMonth renders the "YYYY-MM" billing-month token for the date.
func (d Date) YearMonth() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// Calendar performs all time-zone-sensitive date math behind one seam so the
// rest of the system never touches raw offset arithmetic.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the given IANA zone (DefaultTimeZone when empty).
func NewCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", zone, err)
	}
	return &Calendar{loc: loc}, nil
}

// MustCalendar is NewCalendar for fixed, known-good zones.
func MustCalendar(zone string) *Calendar {
	c, err := NewCalendar(zone)
	if err != nil {
		panic(err)
	}
	return c
}

// Location exposes the underlying zone for formatting.
func (c *Calendar) Location() *time.Location { return c.loc }

// PartsOf computes the local-calendar facts of an instant, including the
// previous calendar day's facts for overnight start-day attribution.
func (c *Calendar) PartsOf(instant time.Time) buckets.LocalFact {
	t := instant.In(c.loc)
	prev := t.AddDate(0, 0, -1)
	return buckets.LocalFact{
		Month:        t.Month(),
		DayOfMonth:   t.Day(),
		Weekday:      t.Weekday(),
		MinutesOfDay: t.Hour()*60 + t.Minute(),
		PrevMonth:    prev.Month(),
		PrevDay:      prev.Day(),
		PrevWeekday:  prev.Weekday(),
	}
}

// DateOf returns the local calendar day of an instant.
func (c *Calendar) DateOf(instant time.Time) Date {
	t := instant.In(c.loc)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// StartOfDay returns local midnight of the given day as an instant.
func (c *Calendar) StartOfDay(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.loc)
}

// AddDays walks a local date forward or backward by whole calendar days.
func (c *Calendar) AddDays(d Date, days int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, c.loc).AddDate(0, 0, days)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DaysInMonth returns the number of calendar days in the date's month.
func (c *Calendar) DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, c.loc).Day()
}

// LastCompleteLocalDay returns the most recent local day at or before the
// instant whose full span of interval data can plausibly exist: the
// instant's own day once its local time has passed thresholdMinutes, else
// the previous day. Further stepping back for late-arriving data is the
// estimation builder's job since it requires a data check.
func (c *Calendar) LastCompleteLocalDay(instant time.Time, thresholdMinutes int) Date {
	t := instant.In(c.loc)
	if t.Hour()*60+t.Minute() >= thresholdMinutes {
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	}
	return c.AddDays(Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, -1)
}

// TrailingYearMonths lists the n calendar months ending at the month of d,
// oldest first, as "YYYY-MM" tokens.
func (c *Calendar) TrailingYearMonths(d Date, n int) []string {
	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := time.Date(d.Year, d.Month, 1, 12, 0, 0, 0, c.loc).AddDate(0, -i, 0)
		out = append(out, fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
	}
	return out
}
