package domain

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts an exported amount to a decimal.
// It accepts comma or dot decimal separators, space/NBSP/dot/comma thousands
// separators, a unicode minus and trailing currency codes:
//
//	"-1 234,56"  "1.234,56"  "1,234.56"  "12.50 PLN"
//
// A single comma with no dot is read as the decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r), r == '-', r == '+', r == ',', r == '.':
			return r
		case r == '−':
			return '-'
		}
		return -1
	}, s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("parse amount %q: no digits", s)
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	case strings.Count(clean, ".") > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(clean, "+"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
