// Package split divides a transaction amount across several categories and
// checks that the parts add up.
package split

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Tolerance is the largest accepted difference between the allocations and the total.
var Tolerance = decimal.New(1, -2)

const (
	entrySep  = ", "
	amountSep = ": "
)

// Split maps each selected category to its allocated amount.
type Split map[domain.Category]decimal.Decimal

// Sum adds up all allocations.
func (s Split) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range s {
		sum = sum.Add(v)
	}
	return sum
}

// Categories returns the keys in closed-set order.
func (s Split) Categories() []domain.Category {
	cs := make([]domain.Category, 0, len(s))
	for c := range s {
		cs = append(cs, c)
	}
	domain.SortCategories(cs)
	return cs
}

// Validate returns a *domain.ValidationError when the allocations differ from
// total by more than Tolerance.
func Validate(amounts Split, total decimal.Decimal) error {
	sum := amounts.Sum()
	if sum.Sub(total).Abs().GreaterThan(Tolerance) {
		return &domain.ValidationError{Sum: sum, Total: total, Allocations: Format(amounts)}
	}
	return nil
}

// Format renders s as "Category: 12.50, Category: 7.50" in closed-set order.
func Format(s Split) string {
	parts := make([]string, 0, len(s))
	for _, c := range s.Categories() {
		parts = append(parts, c.String()+amountSep+s[c].StringFixed(2))
	}
	return strings.Join(parts, entrySep)
}

// Parse reads a string written by Format. Entries naming a category outside
// the closed set, or without a readable amount, are ignored.
func Parse(s string) Split {
	out := Split{}
	for _, entry := range strings.Split(s, entrySep) {
		name, amount, ok := strings.Cut(entry, amountSep)
		if !ok {
			continue
		}
		c := domain.Category(strings.TrimSpace(name))
		if !c.Valid() {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			continue
		}
		out[c] = v
	}
	return out
}

// IsSplit reports whether an assigned category string holds allocations
// rather than a single category name.
func IsSplit(assigned string) bool {
	return strings.Contains(assigned, amountSep)
}

// Even divides total across n categories rounded to cents. The last share
// absorbs the rounding remainder so the shares always sum to total.
func Even(total decimal.Decimal, cs []domain.Category) Split {
	out := Split{}
	if len(cs) == 0 {
		return out
	}
	share := total.DivRound(decimal.NewFromInt(int64(len(cs))), 2)
	rest := total
	for _, c := range cs[:len(cs)-1] {
		out[c] = share
		rest = rest.Sub(share)
	}
	out[cs[len(cs)-1]] = rest
	return out
}

// FromAmounts converts category names to a Split. Names are resolved
// case-insensitively; an unknown name is an error.
func FromAmounts(amounts map[string]decimal.Decimal) (Split, error) {
	out := Split{}
	for name, v := range amounts {
		c, ok := domain.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		out[c] = out[c].Add(v)
	}
	return out, nil
}
