package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12.34", want: 1234},
		{input: "12,34", want: 1234},
		{input: "12.345", want: 1234}, // rounds down
		{input: "12.346", want: 1235}, // rounds up
		{input: "45.5", want: 4550},
		{input: "0", want: 0},
		{input: "0.00", want: 0},
		{input: ".47", want: 47},
		{input: "2.47", want: 247},
		{input: "-0.01", wantErr: true},
		{input: "+1.00", wantErr: true},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: "12a.00", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDecimalToCents(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalToCents(%q) = %d, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalToCents(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 7, want: "0.07"},
		{cents: 4550, want: "45.50"},
		{cents: 5750, want: "57.50"},
		{cents: -1234, want: "-12.34"},
	}
	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).Decimal(); got != tt.want {
			t.Errorf("Money{%d}.Decimal() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
