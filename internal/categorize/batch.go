package categorize

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// ErrBatchRunning is returned by AssignAll while another batch on the same
// Client is in progress.
var ErrBatchRunning = errors.New("a batch assignment is already running")

// BatchStore is the part of the transaction store a batch needs. Write-back
// is positional so rows sharing a (date, description) pair stay independent.
type BatchStore interface {
	UnassignedEntries(limit int) []domain.BatchEntry
	AssignEntry(e domain.BatchEntry, category string) (domain.Transaction, error)
}

// Failure is one transaction a batch could not assign.
type Failure struct {
	Date        string `json:"transactionDate"`
	Description string `json:"operationDescription"`
	Error       string `json:"error"`
}

// BatchResult summarizes one AssignAll run.
type BatchResult struct {
	Attempted int           `json:"attempted"`
	Assigned  int           `json:"assigned"`
	Failed    []Failure     `json:"failed,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// AssignAll assigns categories to up to limit unassigned transactions, in
// store order, one call at a time with the pacer between calls. A failed
// transaction is logged and skipped. A limit below 1 means DefaultBatchLimit.
//
// Only one batch runs per Client; a concurrent call gets ErrBatchRunning
// without touching the store. A row that got a category from elsewhere while
// the batch ran is recorded as a failure and left alone.
//
// The returned error is non-nil when ctx ends the batch early or the batch is
// replaced by an upload (domain.ErrBatchReplaced); the result still reflects
// everything done until then.
func (c *Client) AssignAll(ctx context.Context, store BatchStore, limit int) (BatchResult, error) {
	if !c.batchMu.TryLock() {
		return BatchResult{}, ErrBatchRunning
	}
	defer c.batchMu.Unlock()

	if limit < 1 {
		limit = DefaultBatchLimit
	}
	start := time.Now()
	pending := store.UnassignedEntries(limit)

	c.log.Info().Int("pending", len(pending)).Int("limit", limit).Msg("batch assignment started")

	var result BatchResult
	for i, entry := range pending {
		tx := entry.Transaction
		if i > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				result.Duration = time.Since(start)
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		result.Attempted++
		assignment, err := c.Assign(ctx, tx.Description)
		if err == nil {
			_, err = store.AssignEntry(entry, assignment.Category.String())
		}
		if errors.Is(err, domain.ErrBatchReplaced) {
			c.log.Warn().Int("assigned", result.Assigned).Msg("batch replaced by an upload, stopping")
			result.Duration = time.Since(start)
			return result, err
		}
		if err != nil {
			c.log.Error().Err(err).
				Str("date", tx.Date).
				Str("description", tx.Description).
				Msg("category assignment failed")
			result.Failed = append(result.Failed, Failure{
				Date:        tx.Date,
				Description: tx.Description,
				Error:       err.Error(),
			})
			continue
		}

		result.Assigned++
		c.log.Debug().
			Str("description", tx.Description).
			Str("category", assignment.Category.String()).
			Msg("category assigned")
	}

	result.Duration = time.Since(start)
	c.log.Info().
		Int("attempted", result.Attempted).
		Int("assigned", result.Assigned).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("batch assignment finished")
	return result, nil
}
