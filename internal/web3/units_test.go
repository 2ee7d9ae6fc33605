package web3

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"100000000", 6, "100"},
		{"100500000", 6, "100.5"},
		{"1", 6, "0.000001"},
		{"0", 6, "0"},
		{"1234567", 6, "1.234567"},
		{"-2500000", 6, "-2.5"},
		{"42", 0, "42"},
	}

	for _, tc := range cases {
		raw, ok := new(big.Int).SetString(tc.raw, 10)
		if !ok {
			t.Fatalf("bad fixture %q", tc.raw)
		}
		if got := FormatUnits(raw, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %q, want %q", tc.raw, tc.decimals, got, tc.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     string
	}{
		{"100", 6, "100000000"},
		{"100.5", 6, "100500000"},
		{"0.000001", 6, "1"},
		{"-2.5", 6, "-2500000"},
	}

	for _, tc := range cases {
		got, err := ParseUnits(tc.value, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q, %d) failed: %v", tc.value, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestParseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := ParseUnits("1.0000001", 6); err == nil {
		t.Fatalf("expected error for too many fractional digits")
	}
	if _, err := ParseUnits("", 6); err == nil {
		t.Fatalf("expected error for empty amount")
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	raw := big.NewInt(987654321)
	formatted := FormatUnits(raw, 6)
	parsed, err := ParseUnits(formatted, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Cmp(raw) != 0 {
		t.Fatalf("round trip mismatch: %s -> %q -> %s", raw, formatted, parsed)
	}
}
