package split

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Editor holds the state of a split being edited for one transaction.
// Each change re-runs Validate; Err reports the current result.
type Editor struct {
	total    decimal.Decimal
	selected []domain.Category
	amounts  Split
	err      error
}

// NewEditor starts an empty split of total.
func NewEditor(total decimal.Decimal) *Editor {
	e := &Editor{total: total, amounts: Split{}}
	e.validate()
	return e
}

// EditorFor opens tx, restoring a previous assignment. A single category name
// is restored as the whole amount; a formatted split is parsed.
func EditorFor(tx domain.Transaction) (*Editor, error) {
	total, err := tx.AmountValue()
	if err != nil {
		return nil, fmt.Errorf("EditorFor: %w", err)
	}
	e := NewEditor(total)

	switch {
	case tx.AssignedCategory == "":
	case IsSplit(tx.AssignedCategory):
		prev := Parse(tx.AssignedCategory)
		e.selected = prev.Categories()
		e.amounts = prev
	default:
		if c, ok := domain.ParseCategory(tx.AssignedCategory); ok {
			e.selected = []domain.Category{c}
			e.amounts = Split{c: total}
		}
	}

	e.validate()
	return e, nil
}

// Toggle adds or removes c and spreads the total evenly over the selection.
func (e *Editor) Toggle(c domain.Category) error {
	if !c.Valid() {
		return fmt.Errorf("unknown category %q", c)
	}
	if i := slices.Index(e.selected, c); i >= 0 {
		e.selected = slices.Delete(e.selected, i, i+1)
	} else {
		e.selected = append(e.selected, c)
	}
	e.amounts = Even(e.total, e.selected)
	e.validate()
	return nil
}

// SetAmount hand-edits the allocation of a selected category.
func (e *Editor) SetAmount(c domain.Category, v decimal.Decimal) error {
	if !slices.Contains(e.selected, c) {
		return fmt.Errorf("category %q is not selected", c)
	}
	e.amounts[c] = v
	e.validate()
	return nil
}

// Selected returns the selected categories in the order they were picked.
func (e *Editor) Selected() []domain.Category {
	return slices.Clone(e.selected)
}

// Amounts returns a copy of the current allocations.
func (e *Editor) Amounts() Split {
	out := make(Split, len(e.amounts))
	for c, v := range e.amounts {
		out[c] = v
	}
	return out
}

// Total is the transaction amount being split.
func (e *Editor) Total() decimal.Decimal { return e.total }

// Err is the latest validation result.
func (e *Editor) Err() error { return e.err }

// CanConfirm reports whether at least one category is selected and the
// allocations reconcile.
func (e *Editor) CanConfirm() bool {
	return len(e.selected) > 0 && e.err == nil
}

// Confirm returns the string to store as the assigned category.
func (e *Editor) Confirm() (string, error) {
	if len(e.selected) == 0 {
		return "", fmt.Errorf("no category selected")
	}
	if e.err != nil {
		return "", e.err
	}
	return Format(e.amounts), nil
}

func (e *Editor) validate() {
	e.err = Validate(e.amounts, e.total)
}
