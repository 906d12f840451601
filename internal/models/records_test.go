package models

import "testing"

func TestParseAmount(t *testing.T) {
	valid := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"0.05", 5},
		{"7", 700},
		{"7.5", 750},
		{".99", 99},
		{"-3.10", -310},
		{" 1.00 ", 100},
	}
	for _, tt := range valid {
		got, err := ParseAmount(tt.in)
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	invalid := []string{
		"",
		"abc",
		"1.234",
		"--5",
		"-",
		"1.-1",
		"1-2",
		"1.2-",
		"1,50",
	}
	for _, in := range invalid {
		if got, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) = %d, want error", in, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{700, "7.00"},
		{-310, "-3.10"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.minor); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.minor, got, tt.want)
		}
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 12345, -250} {
		parsed, err := ParseAmount(FormatAmount(minor))
		if err != nil {
			t.Fatalf("ParseAmount(FormatAmount(%d)): %v", minor, err)
		}
		if parsed != minor {
			t.Errorf("round trip of %d yielded %d", minor, parsed)
		}
	}
}
