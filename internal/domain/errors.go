package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrBatchReplaced means the batch an entry came from was replaced by an upload.
	ErrBatchReplaced = errors.New("transaction batch was replaced")
	// ErrAlreadyAssigned means the entry got a category after it was read.
	ErrAlreadyAssigned = errors.New("transaction already has a category")
)

// FormatError means the CSV input could not be read as a transaction table.
type FormatError struct {
	Msg  string
	Line int // 1-based; 0 when the error is not tied to a line
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// CompletionError wraps a failure of the completion provider, timeouts included.
type CompletionError struct {
	Op  string
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: completion failed: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// DecodeError means no category could be recovered from a completion response.
type DecodeError struct {
	Reason   string
	Response string
}

func (e *DecodeError) Error() string {
	return "could not extract category from response: " + e.Reason
}

// ValidationError reports split allocations that do not reconcile with the
// transaction amount.
type ValidationError struct {
	Sum         decimal.Decimal
	Total       decimal.Decimal
	Allocations string // formatted split, may be empty
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("Sum of amounts (%s) must equal transaction amount (%s)",
		e.Sum.StringFixed(2), e.Total.StringFixed(2))
	if e.Allocations != "" {
		msg += "; allocated " + e.Allocations
	}
	return msg
}

// NotFoundError reports a failed (date, description) lookup.
type NotFoundError struct {
	Date        string
	Description string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction not found: %s - %s", e.Date, e.Description)
}
