// Package core holds the budget domain types shared by every stage of
// document generation, plus amount parsing and calendar helpers.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern is the numeric-string grammar accepted in records: optional
// leading minus, comma separated digit groups, optional fractional part.
var amountPattern = regexp.MustCompile(`^-?\d+(,\d+)*(\.\d+)?$`)

// IsValidAmount reports whether s satisfies the amount grammar once
// surrounding whitespace is trimmed.
//
// Examples:
//
//	IsValidAmount("14000")       -> true
//	IsValidAmount("-1,500.50")   -> true
//	IsValidAmount("12.")         -> false
//	IsValidAmount("--3")         -> false
func IsValidAmount(s string) bool {
	return amountPattern.MatchString(strings.TrimSpace(s))
}

var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\u00a0", "")

// ParseAmount strips currency signs, thousands separators and whitespace and
// parses what is left as a decimal number.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountCleaner.Replace(s))
	if cleaned == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseMagnitude parses s like ParseAmount but drops a single leading minus
// sign first, so "-500" and "500" both yield 500.
func ParseMagnitude(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountCleaner.Replace(s))
	cleaned = strings.TrimPrefix(cleaned, "-")
	return ParseAmount(cleaned)
}

// FormatWhole renders d with no decimal places using banker's rounding.
func FormatWhole(d decimal.Decimal) string {
	return d.StringFixedBank(0)
}
