package core

import (
	"fmt"
	"time"
)

// Month is a year-month bucket used for summaries and filters.
// The zero value means "no month".
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month bucket containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a YYYY-MM month key.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 {
		return Month{}, fmt.Errorf("parse month %q: want YYYY-MM", s)
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
