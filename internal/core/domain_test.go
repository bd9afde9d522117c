package core

import (
	"errors"
	"testing"
	"time"
)

func validReceipt() Receipt {
	return Receipt{
		Vendor:   "Green Fresh Supermarket",
		Date:     NewDate(2026, 2, 26),
		Total:    Money{Cents: 247},
		Currency: "CAD",
		Category: CategoryGrocery,
	}
}

func TestReceiptValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Receipt)
		wantField string
	}{
		{
			name:   "valid receipt",
			mutate: func(r *Receipt) {},
		},
		{
			name:   "zero total is valid",
			mutate: func(r *Receipt) { r.Total = Money{} },
		},
		{
			name:      "empty vendor",
			mutate:    func(r *Receipt) { r.Vendor = "   " },
			wantField: "vendor",
		},
		{
			name:      "zero date",
			mutate:    func(r *Receipt) { r.Date = Date{} },
			wantField: "date",
		},
		{
			name:      "negative total",
			mutate:    func(r *Receipt) { r.Total = Money{Cents: -1} },
			wantField: "total",
		},
		{
			name:      "lowercase currency",
			mutate:    func(r *Receipt) { r.Currency = "cad" },
			wantField: "currency",
		},
		{
			name:      "short currency",
			mutate:    func(r *Receipt) { r.Currency = "C" },
			wantField: "currency",
		},
		{
			name:      "negative item price",
			mutate:    func(r *Receipt) { r.Items = []Item{{Name: "dryer", Price: Money{Cents: -100}}} },
			wantField: "items",
		},
		{
			name:      "unnamed item",
			mutate:    func(r *Receipt) { r.Items = []Item{{Name: " ", Price: Money{Cents: 100}}} },
			wantField: "items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReceipt()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-27")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2026-02-27" {
		t.Errorf("String() = %q, want 2026-02-27", d.String())
	}
	if got := d.YearMonth(); got != (Month{Year: 2026, Month: time.February}) {
		t.Errorf("YearMonth() = %v", got)
	}

	for _, bad := range []string{"", "2026-2-27", "2026-02-31", "02/27/2026", "not a date"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) succeeded, want error", bad)
		}
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-02")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	if m.String() != "2026-02" {
		t.Errorf("String() = %q, want 2026-02", m.String())
	}

	for _, bad := range []string{"", "2026", "2026-13", "2026-2", "02-2026"} {
		if _, err := ParseMonth(bad); err == nil {
			t.Errorf("ParseMonth(%q) succeeded, want error", bad)
		}
	}
}

func TestKnownCategory(t *testing.T) {
	if !KnownCategory("grocery") || !KnownCategory(" Grocery ") {
		t.Error("grocery should be a known category")
	}
	if KnownCategory("snacks") {
		t.Error("snacks should not be a known category")
	}
}
