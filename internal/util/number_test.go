package util

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "rupiah prefix", input: "Rp1.500", want: 1500},
		{name: "rupiah with space", input: "Rp 125.000", want: 125000},
		{name: "decimal comma truncated", input: "1.234,56", want: 1234},
		{name: "plain integer", input: "1500", want: 1500},
		{name: "float text", input: "1500.0", want: 1500},
		{name: "comma thousands", input: "1,234,567", want: 1234567},
		{name: "us style decimal", input: "1,234.99", want: 1234},
		{name: "nbsp grouping", input: "12\u00a0500", want: 12500},
		{name: "negative", input: "-Rp2.000", want: -2000},
		{name: "scientific", input: "1.5e+06", want: 1500000},
		{name: "zero", input: "0", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, input := range []string{"", "Rp", "abc", "12a", "1.2.3,4,5", "Rp 1,2,3", "Rp99.999.999.999.999.999.999", "-9.999.999.999.999.999.999", "1e400"} {
		if _, err := ParseAmount(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestTruncAmountRange(t *testing.T) {
	if got, err := TruncAmount(-1234.9); err != nil || got != -1234 {
		t.Fatalf("got=%d err=%v", got, err)
	}
	if got, err := TruncAmount(math.MinInt64); err != nil || got != math.MinInt64 {
		t.Fatalf("got=%d err=%v", got, err)
	}
	for _, v := range []float64{math.MaxInt64, 1e19, -1e19, math.Inf(1), math.Inf(-1), math.NaN()} {
		if _, err := TruncAmount(v); !errors.Is(err, ErrNotNumeric) {
			t.Fatalf("%v: err=%v", v, err)
		}
	}
}

func TestParseNumberKeepsFraction(t *testing.T) {
	got, err := ParseNumber("2,5")
	if err != nil {
		t.Fatal(err)
	}
	if got != 2.5 {
		t.Fatalf("got %v", got)
	}
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", "  ", "nan", "NaN", "NA", "None", "<NA>"} {
		if !IsMissing(v) {
			t.Fatalf("%q should be missing", v)
		}
	}
	if IsMissing("0") || IsMissing("Tidak Diketahui") {
		t.Fatal("values reported missing")
	}
}

func TestNormalizeColumnName(t *testing.T) {
	if got := NormalizeColumnName("\ufeffNo.  Resi\u00a0"); got != "No. Resi" {
		t.Fatalf("got %q", got)
	}
}
