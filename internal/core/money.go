// Package core provides money parsing and handling utilities.
//
// Amounts are carried as shopspring decimals and rounded to cents on input.
// Spreadsheet cells may come back as numbers or as locale-formatted strings,
// so reading is more lenient than writing.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are encoded as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts user input to a positive decimal rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half away from zero on the third decimal place. A comma followed
// by exactly three digits reads as a thousands separator in some locales
// and as a decimal one in others, so it is rejected.
//
// Examples:
//
//	ParseAmount("42.50") -> 42.5, nil
//	ParseAmount("12,3456") -> 12.35, nil
//	ParseAmount("1,234") -> error
//	ParseAmount("-1") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if ambiguousComma(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func ambiguousComma(s string) bool {
	i := strings.LastIndex(s, ",")
	if i < 0 || len(s)-i-1 != 3 {
		return false
	}
	for _, r := range s[i+1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseCellAmount reads an amount cell returned by the spreadsheet service.
// Numbers arrive as float64 with UNFORMATTED_VALUE; strings may carry a
// currency symbol or thousands separators.
func ParseCellAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimLeft(s, "€$£ ")
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, false
		}
		// "1.234,56" vs "1,234.56": the last separator is the decimal one.
		lastDot := strings.LastIndex(s, ".")
		lastComma := strings.LastIndex(s, ",")
		switch {
		case lastComma > lastDot:
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		default:
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// ParseCellInt reads an integer count cell.
func ParseCellInt(v any) int {
	d, ok := ParseCellAmount(v)
	if !ok {
		return 0
	}
	return int(d.IntPart())
}
