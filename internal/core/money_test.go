package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"42.50", "42.5", true},
		{"1,23", "1.23", true},
		{"12,3456", "12.35", true},
		{"1,234", "", false},
		{"12,345", "", false},
		{"1,000", "", false},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseCellAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
		ok  bool
	}{
		{42.5, "42.5", true},
		{int64(3), "3", true},
		{"42.50", "42.5", true},
		{"€ 1.234,56", "1234.56", true},
		{"$1,234.56", "1234.56", true},
		{"12,5", "12.5", true},
		{"", "", false},
		{"n/a", "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseCellAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("%v ok=%v want %v", tc.in, ok, tc.ok)
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("%v expected %s, got %s", tc.in, tc.out, got)
		}
	}

	if ParseCellInt(float64(7)) != 7 || ParseCellInt("x") != 0 {
		t.Fatal("unexpected ParseCellInt result")
	}
}
