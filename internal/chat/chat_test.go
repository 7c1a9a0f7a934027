package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/llm"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (string, error)
	last         llm.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.last = req
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "ok", nil
}

type staticSource []domain.Transaction

func (s staticSource) All() []domain.Transaction { return s }

var batch = staticSource{
	{Date: "2024-01-07", Description: "COFFEE SHOP", Amount: "-12,50", SourceCategory: "Jedzenie"},
	{Date: "2024-01-03", Description: "BIEDRONKA", Amount: "-89,99", SourceCategory: "Zakupy", AssignedCategory: "Basic Outcomes"},
}

func TestChat_IncludesTransactions(t *testing.T) {
	m := &mockCompleter{}
	s := NewService(m, batch, logger.Nop())

	out, err := s.Chat(context.Background(), []llm.Message{{Role: "user", Content: "How much on coffee?"}}, true)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.Len(t, m.last.Messages, 2)
	ctxMsg := m.last.Messages[0]
	assert.Equal(t, llm.RoleSystem, ctxMsg.Role)
	assert.Contains(t, ctxMsg.Content, "You have access to the following transactions:\n- COFFEE SHOP: -12,50 PLN (Jedzenie)")
	assert.Contains(t, ctxMsg.Content, "- BIEDRONKA: -89,99 PLN (Zakupy) [assigned: Basic Outcomes]")
	assert.Contains(t, ctxMsg.Content, "Period covered: 2024-01-03 to 2024-01-07")
	assert.Nil(t, m.last.Schema)
}

func TestChat_WithoutTransactions(t *testing.T) {
	m := &mockCompleter{}
	s := NewService(m, batch, logger.Nop())

	_, err := s.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, false)
	require.NoError(t, err)
	require.Len(t, m.last.Messages, 1)
}

func TestChat_EmptyBatchAddsNoContext(t *testing.T) {
	m := &mockCompleter{}
	s := NewService(m, staticSource{}, logger.Nop())

	_, err := s.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, true)
	require.NoError(t, err)
	require.Len(t, m.last.Messages, 1)
}

func TestChat_MapsRoles(t *testing.T) {
	m := &mockCompleter{}
	s := NewService(m, nil, logger.Nop())

	_, err := s.Chat(context.Background(), []llm.Message{
		{Role: "System", Content: "be brief"},
		{Role: "assistant", Content: "hello"},
		{Role: "tool", Content: "??"},
	}, true)
	require.NoError(t, err)

	roles := []llm.Role{}
	for _, msg := range m.last.Messages {
		roles = append(roles, msg.Role)
	}
	assert.Equal(t, []llm.Role{llm.RoleSystem, llm.RoleAssistant, llm.RoleUser}, roles)
}

func TestChat_NoMessages(t *testing.T) {
	s := NewService(&mockCompleter{}, batch, logger.Nop())

	_, err := s.Chat(context.Background(), nil, true)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestChat_CompletionError(t *testing.T) {
	m := &mockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("invalid api key")
	}}
	s := NewService(m, batch, logger.Nop())

	_, err := s.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, true)

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "chat", ce.Op)
}

func TestCategoryChat(t *testing.T) {
	m := &mockCompleter{}
	s := NewService(m, nil, logger.Nop())

	_, err := s.CategoryChat(context.Background(), "Split my 200 PLN school bill")
	require.NoError(t, err)

	require.Len(t, m.last.Messages, 2)
	assert.Equal(t,
		"You are a helpful assistant that helps users categorize their transactions. Available categories are: Basic Outcomes, Financial Freedom, Emergency Fund, Education, Kids Education, Pleasures. You can also help split transactions between multiple categories. Keep responses concise and focused on category assignment.",
		m.last.Messages[0].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Split my 200 PLN school bill"}, m.last.Messages[1])

	_, err = s.CategoryChat(context.Background(), " ")
	assert.Error(t, err)
}

func TestPeriod_NoParseableDates(t *testing.T) {
	_, _, ok := period([]domain.Transaction{{Date: "soon"}})
	assert.False(t, ok)
}
