package forecast

import (
	"fmt"
	"time"
)

type monthDay struct {
	month time.Month
	day   int
}

// Calendar answers whether a date is a holiday.
// The zero value has no holidays.
type Calendar struct {
	fixed map[monthDay]string
	dates map[string]string // "2006-01-02" -> name
}

// NewCalendar returns an empty calendar.
func NewCalendar() *Calendar {
	return &Calendar{fixed: map[monthDay]string{}, dates: map[string]string{}}
}

// IndiaCalendar returns the fixed-date national holidays of India.
// Movable festivals are not included; add them per year with AddDate.
func IndiaCalendar() *Calendar {
	c := NewCalendar()
	c.AddFixed(time.January, 26, "Republic Day")
	c.AddFixed(time.August, 15, "Independence Day")
	c.AddFixed(time.October, 2, "Gandhi Jayanti")
	c.AddFixed(time.December, 25, "Christmas Day")
	return c
}

// AddFixed registers a holiday that falls on the same date every year.
func (c *Calendar) AddFixed(month time.Month, day int, name string) {
	c.fixed[monthDay{month, day}] = name
}

// AddDate registers a one-off holiday.
func (c *Calendar) AddDate(d time.Time, name string) {
	c.dates[d.Format(time.DateOnly)] = name
}

// AddDates parses "2006-01-02" strings and registers each as a holiday.
func (c *Calendar) AddDates(dates []string, name string) error {
	for _, s := range dates {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return fmt.Errorf("parsing holiday %q: %w", s, err)
		}
		c.AddDate(d, name)
	}
	return nil
}

// Lookup returns the holiday name for d.
func (c *Calendar) Lookup(d time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	if name, ok := c.dates[d.Format(time.DateOnly)]; ok {
		return name, true
	}
	name, ok := c.fixed[monthDay{d.Month(), d.Day()}]
	return name, ok
}

// IsHoliday reports whether d is a holiday.
func (c *Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.Lookup(d)
	return ok
}
