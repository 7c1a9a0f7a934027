package domain

import (
	"slices"
	"strings"
)

// Category is one of the fixed budget categories.
type Category string

const (
	BasicOutcomes    Category = "Basic Outcomes"
	FinancialFreedom Category = "Financial Freedom"
	EmergencyFund    Category = "Emergency Fund"
	Education        Category = "Education"
	KidsEducation    Category = "Kids Education"
	Pleasures        Category = "Pleasures"
)

// Categories is the closed category set in display order. The assignment
// prompt, the chat prompt and the split editor all read from it.
var Categories = []Category{
	BasicOutcomes,
	FinancialFreedom,
	EmergencyFund,
	Education,
	KidsEducation,
	Pleasures,
}

func (c Category) String() string { return string(c) }

// Valid reports whether c is exactly a member of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves free text to a member of the closed set.
// Matching ignores case and collapses whitespace.
func ParseCategory(s string) (Category, bool) {
	norm := normalizeCategory(s)
	if norm == "" {
		return "", false
	}
	for _, c := range Categories {
		if normalizeCategory(string(c)) == norm {
			return c, true
		}
	}
	return "", false
}

// CategoryNames returns Categories as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// categoryIndex returns the position of c in Categories, or len(Categories).
func categoryIndex(c Category) int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// SortCategories orders cs by their position in Categories.
func SortCategories(cs []Category) {
	slices.SortStableFunc(cs, func(a, b Category) int {
		return categoryIndex(a) - categoryIndex(b)
	})
}

func normalizeCategory(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
