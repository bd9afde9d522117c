package core

import (
	"fmt"
	"strings"
	"time"
)

// Auto-detected category set. The set is open: the store accepts any
// non-empty category string, but the classifier only ever assigns one
// of these.
const (
	CategoryGrocery   = "grocery"
	CategoryDining    = "dining"
	CategoryTransport = "transport"
	CategoryHealth    = "health"
	CategoryShopping  = "shopping"
	CategoryTravel    = "travel"
	CategoryUtilities = "utilities"
	CategoryOther     = "other"
)

// Categories lists the auto-detected categories in display order.
var Categories = []string{
	CategoryGrocery,
	CategoryDining,
	CategoryTransport,
	CategoryHealth,
	CategoryShopping,
	CategoryTravel,
	CategoryUtilities,
	CategoryOther,
}

// KnownCategory reports whether s is one of the auto-detected categories.
func KnownCategory(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == c {
			return true
		}
	}
	return false
}

type (
	// Date is a calendar date. The time-of-day portion is always midnight UTC.
	Date struct {
		time.Time
	}

	// Item is one line item on a receipt.
	Item struct {
		Name  string
		Price Money
	}

	// Receipt is one archived purchase. ID and CreatedAt are assigned by the
	// store on creation and never change afterwards.
	Receipt struct {
		ID        int64
		Vendor    string
		Date      Date
		Total     Money
		Currency  string
		Category  string
		Items     []Item
		ImagePath string
		ImageSHA  string
		CreatedAt time.Time
	}

	// ReceiptFilter selects receipts for Find. All fields are optional and
	// conjunctive. Vendor matches as a case-insensitive substring.
	ReceiptFilter struct {
		Vendor   string
		Category string
		Month    Month
	}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date string. Impossible calendar dates
// (2026-02-31) are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the month bucket this date falls into.
func (d Date) YearMonth() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// Validate checks receipt invariants. The returned error is always a
// *ValidationError naming the offending field.
func (r Receipt) Validate() error {
	if strings.TrimSpace(r.Vendor) == "" {
		return &ValidationError{Field: "vendor", Reason: "must not be empty"}
	}
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be a valid calendar date"}
	}
	if r.Total.Cents < 0 {
		return &ValidationError{Field: "total", Reason: "must not be negative"}
	}
	if !validCurrencyCode(r.Currency) {
		return &ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
	}
	for _, it := range r.Items {
		if strings.TrimSpace(it.Name) == "" {
			return &ValidationError{Field: "items", Reason: "item name must not be empty"}
		}
		if it.Price.Cents < 0 {
			return &ValidationError{Field: "items", Reason: "item price must not be negative"}
		}
	}
	return nil
}

func validCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
