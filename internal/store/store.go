// Package store holds the currently loaded transaction batch.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Store is an in-memory transaction batch, safe for concurrent use.
// Transactions are copied in and out so callers never share state with it.
// Data is lost on restart.
type Store struct {
	mu         sync.RWMutex
	batch      []domain.Transaction
	generation uint64
	loadedAt   time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Replace swaps in a new batch. Every prior transaction and assignment is dropped.
func (s *Store) Replace(batch []domain.Transaction) {
	cp := slices.Clone(batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = cp
	s.generation++
	s.loadedAt = time.Now()
}

// Find returns the first transaction with the given date and description.
func (s *Store) Find(date, description string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(date, description)
	if i < 0 {
		return domain.Transaction{}, false
	}
	return s.batch[i], true
}

// All returns the batch in stored order.
func (s *Store) All() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.batch)
}

// Unassigned returns up to limit transactions without a category, in stored
// order. A limit below 1 returns all of them.
func (s *Store) Unassigned(limit int) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, tx := range s.batch {
		if tx.IsAssigned() {
			continue
		}
		result = append(result, tx)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// UnassignedEntries is Unassigned with each row's position in the current
// batch, for write-back with AssignEntry.
func (s *Store) UnassignedEntries(limit int) []domain.BatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.BatchEntry
	for i, tx := range s.batch {
		if tx.IsAssigned() {
			continue
		}
		result = append(result, domain.BatchEntry{Index: i, Generation: s.generation, Transaction: tx})
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// AssignEntry sets the category of the row e points at, but only while that
// row is still unassigned and its batch is still loaded. It returns
// domain.ErrBatchReplaced after a Replace and domain.ErrAlreadyAssigned when
// the row got a category in the meantime.
func (s *Store) AssignEntry(e domain.BatchEntry, category string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Generation != s.generation || e.Index < 0 || e.Index >= len(s.batch) {
		return domain.Transaction{}, domain.ErrBatchReplaced
	}
	tx := &s.batch[e.Index]
	if !tx.Matches(e.Transaction.Date, e.Transaction.Description) {
		return domain.Transaction{}, domain.ErrBatchReplaced
	}
	if tx.IsAssigned() {
		return domain.Transaction{}, domain.ErrAlreadyAssigned
	}
	tx.AssignedCategory = category
	return *tx, nil
}

// Assign sets the category of the first matching transaction and returns the
// updated copy. category may be a single name or a formatted split.
func (s *Store) Assign(date, description, category string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(date, description)
	if i < 0 {
		return domain.Transaction{}, &domain.NotFoundError{Date: date, Description: description}
	}
	s.batch[i].AssignedCategory = category
	return s.batch[i], nil
}

// Len returns the number of loaded transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batch)
}

// LoadedAt returns when the current batch was loaded, zero if never.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(date, description string) int {
	for i := range s.batch {
		if s.batch[i].Matches(date, description) {
			return i
		}
	}
	return -1
}
