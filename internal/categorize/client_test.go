package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/llm"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// mockCompleter is a hand-written mock for llm.Completer.
type mockCompleter struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (string, error)
	calls        []llm.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.calls = append(m.calls, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{"rationale":"default","category":"Basic Outcomes"}`, nil
}

func userMessage(req llm.Request) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

func TestAssign_RequestShape(t *testing.T) {
	m := &mockCompleter{}
	c := NewClient(m)

	got, err := c.Assign(context.Background(), "BIEDRONKA WARSZAWA")
	require.NoError(t, err)
	assert.Equal(t, domain.BasicOutcomes, got.Category)

	require.Len(t, m.calls, 1)
	req := m.calls[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	for _, name := range domain.CategoryNames() {
		assert.Contains(t, req.Messages[0].Content, "- "+name+"\n")
	}
	assert.Contains(t, req.Messages[0].Content, `"category"`)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "BIEDRONKA WARSZAWA"}, req.Messages[1])

	require.NotNil(t, req.Schema)
	assert.Equal(t, domain.CategoryNames(), req.Schema.Properties["category"].Enum)
}

func TestAssign_CompletionError(t *testing.T) {
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("quota exceeded")
	}}

	_, err := NewClient(m).Assign(context.Background(), "COFFEE SHOP")

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAssign_TimeoutIsCompletionError(t *testing.T) {
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	_, err := NewClient(m, WithTimeout(10*time.Millisecond)).Assign(context.Background(), "COFFEE SHOP")

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAssign_EmptyResponse(t *testing.T) {
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return "  ", nil
	}}

	_, err := NewClient(m).Assign(context.Background(), "COFFEE SHOP")

	var ce *domain.CompletionError
	assert.True(t, errors.As(err, &ce))
}

func TestAssign_EmptyDescription(t *testing.T) {
	m := &mockCompleter{}
	_, err := NewClient(m).Assign(context.Background(), "   ")

	assert.Error(t, err)
	assert.Empty(t, m.calls)
}

func TestAssignDecoded_ReportsFallback(t *testing.T) {
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return "Some preamble\nFinal category: \"Education\"\n", nil
	}}

	d, err := NewClient(m).AssignDecoded(context.Background(), "ENGLISH COURSE")
	require.NoError(t, err)
	assert.Equal(t, StageFallback, d.Stage)
	assert.Equal(t, domain.Education, d.Assignment.Category)
}

func newBatch(n int) []domain.Transaction {
	batch := make([]domain.Transaction, n)
	for i := range batch {
		batch[i] = domain.Transaction{
			Date:        "2024-01-05",
			Description: fmt.Sprintf("TX %02d", i+1),
			Amount:      "-10,00",
		}
	}
	return batch
}

func TestAssignAll_CapsAtLimit(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(15))
	m := &mockCompleter{}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Attempted)
	assert.Equal(t, 10, result.Assigned)
	assert.Empty(t, result.Failed)
	assert.Len(t, s.Unassigned(0), 5)

	tx, _ := s.Find("2024-01-05", "TX 01")
	assert.Equal(t, "Basic Outcomes", tx.AssignedCategory)
	tx, _ = s.Find("2024-01-05", "TX 11")
	assert.Empty(t, tx.AssignedCategory)
}

func TestAssignAll_DefaultLimit(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(15))

	result, err := NewClient(&mockCompleter{}, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchLimit, result.Attempted)
}

func TestAssignAll_ContinuesPastFailure(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(10))

	var seen []string
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		desc := userMessage(req)
		seen = append(seen, desc)
		if desc == "TX 03" {
			return "", errors.New("upstream unavailable")
		}
		return `{"rationale":"ok","category":"Pleasures"}`, nil
	}}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Attempted)
	assert.Equal(t, 9, result.Assigned)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "TX 03", result.Failed[0].Description)
	assert.Contains(t, result.Failed[0].Error, "upstream unavailable")

	require.Len(t, seen, 10)
	assert.Equal(t, "TX 10", seen[9])

	unassigned := s.Unassigned(0)
	require.Len(t, unassigned, 1)
	assert.Equal(t, "TX 03", unassigned[0].Description)
}

func TestAssignAll_DecodeFailureLeavesUnassigned(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(2))
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if userMessage(req) == "TX 01" {
			return `{"rationale":"?","category":"Travel"}`, nil
		}
		return `{"rationale":"ok","category":"Education"}`, nil
	}}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Assigned)
	require.Len(t, result.Failed, 1)
	assert.True(t, strings.Contains(result.Failed[0].Error, "Travel"))
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return nil
}

func TestAssignAll_PacesBetweenCalls(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(4))
	p := &countingPacer{}

	_, err := NewClient(&mockCompleter{}, WithPacer(p)).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, p.waits)
}

func TestAssignAll_CancelledContext(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(5))
	ctx, cancel := context.WithCancel(context.Background())

	m := &mockCompleter{CompleteFunc: func(c context.Context, req llm.Request) (string, error) {
		cancel()
		return `{"rationale":"ok","category":"Education"}`, nil
	}}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(ctx, s, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Assigned)
	assert.Len(t, s.Unassigned(0), 4)
}

func TestAssignAll_EmptyStore(t *testing.T) {
	m := &mockCompleter{}
	result, err := NewClient(m).AssignAll(context.Background(), store.New(), 10)
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Empty(t, m.calls)
}

func TestAssignAll_DuplicatePairs(t *testing.T) {
	s := store.New()
	s.Replace([]domain.Transaction{
		{Date: "2024-01-05", Description: "COFFEE SHOP", Amount: "-10,00", AssignedCategory: "Education: -4.00, Pleasures: -6.00"},
		{Date: "2024-01-05", Description: "COFFEE SHOP", Amount: "-10,00"},
		{Date: "2024-01-05", Description: "COFFEE SHOP", Amount: "-10,00"},
	})

	result, err := NewClient(&mockCompleter{}, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Assigned)

	all := s.All()
	assert.Equal(t, "Education: -4.00, Pleasures: -6.00", all[0].AssignedCategory)
	assert.Equal(t, "Basic Outcomes", all[1].AssignedCategory)
	assert.Equal(t, "Basic Outcomes", all[2].AssignedCategory)
	assert.Empty(t, s.Unassigned(0))
}

func TestAssignAll_OneBatchAtATime(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(3))

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	m := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return `{"rationale":"ok","category":"Education"}`, nil
	})
	c := NewClient(m, WithPacer(NoDelay{}))

	done := make(chan BatchResult)
	go func() {
		result, _ := c.AssignAll(context.Background(), s, 10)
		done <- result
	}()
	<-started

	_, err := c.AssignAll(context.Background(), s, 10)
	assert.ErrorIs(t, err, ErrBatchRunning)

	close(release)
	result := <-done
	assert.Equal(t, 3, result.Assigned)
	assert.Equal(t, int32(3), calls.Load())

	// The lock is released once the batch returns.
	_, err = c.AssignAll(context.Background(), s, 10)
	assert.NoError(t, err)
}

func TestAssignAll_StopsAfterReplace(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(3))

	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if userMessage(req) == "TX 02" {
			s.Replace(newBatch(3))
		}
		return `{"rationale":"ok","category":"Education"}`, nil
	}}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	assert.ErrorIs(t, err, domain.ErrBatchReplaced)
	assert.Equal(t, 1, result.Assigned)
	assert.Len(t, m.calls, 2)
	assert.Len(t, s.Unassigned(0), 3)
}

func TestAssignAll_SkipsRowAssignedMeanwhile(t *testing.T) {
	s := store.New()
	s.Replace(newBatch(2))

	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if userMessage(req) == "TX 01" {
			_, _ = s.Assign("2024-01-05", "TX 01", "Pleasures")
		}
		return `{"rationale":"ok","category":"Education"}`, nil
	}}

	result, err := NewClient(m, WithPacer(NoDelay{})).AssignAll(context.Background(), s, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Assigned)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "TX 01", result.Failed[0].Description)

	tx, _ := s.Find("2024-01-05", "TX 01")
	assert.Equal(t, "Pleasures", tx.AssignedCategory)
}
