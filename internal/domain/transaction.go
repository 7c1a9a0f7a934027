package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is one row of a bank export.
// Amount keeps the text exactly as exported; use AmountValue for arithmetic.
// Identity is the (Date, Description) pair since the export has no row id.
type Transaction struct {
	Date             string `json:"transactionDate"`
	Description      string `json:"operationDescription"`
	Account          string `json:"account"`
	SourceCategory   string `json:"category"`
	Amount           string `json:"amount"`
	AssignedCategory string `json:"assignedCategory"`
}

// BatchEntry pins a transaction to its position in one loaded batch so it
// can be written back even when another row shares its (Date, Description).
type BatchEntry struct {
	Index       int
	Generation  uint64
	Transaction Transaction
}

// CategoryAssignment is the decoded model output for a single transaction.
type CategoryAssignment struct {
	Rationale string   `json:"rationale"`
	Category  Category `json:"category"`
}

// AmountValue parses Amount with ParseAmount.
func (t Transaction) AmountValue() (decimal.Decimal, error) {
	return ParseAmount(t.Amount)
}

// IsAssigned reports whether a category (single or split) has been set.
func (t Transaction) IsAssigned() bool {
	return t.AssignedCategory != ""
}

// Matches reports whether t has the given identity.
func (t Transaction) Matches(date, description string) bool {
	return t.Date == date && t.Description == description
}

// dateLayouts are the layouts seen in bank exports, ISO first.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02-01-2006",
	"2006/01/02",
}

// CivilDate parses Date. The second result is false when no known layout matches.
func (t Transaction) CivilDate() (civil.Date, bool) {
	s := strings.TrimSpace(t.Date)
	if d, err := civil.ParseDate(s); err == nil {
		return d, true
	}
	for _, layout := range dateLayouts[1:] {
		if tm, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(tm), true
		}
	}
	return civil.Date{}, false
}
