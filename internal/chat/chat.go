// Package chat runs free-form conversations about the loaded transactions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/llm"
)

// ErrNoMessages is returned for a conversation without messages.
var ErrNoMessages = errors.New("invalid request format: please provide messages array")

// TransactionSource supplies the batch used as chat context.
type TransactionSource interface {
	All() []domain.Transaction
}

// Service sends conversations to the completion provider.
type Service struct {
	completer llm.Completer
	source    TransactionSource
	log       zerolog.Logger
}

// NewService creates a chat service. source may be nil when transactions are
// never included.
func NewService(completer llm.Completer, source TransactionSource, log zerolog.Logger) *Service {
	return &Service{completer: completer, source: source, log: log}
}

// Chat forwards messages to the provider. With includeTransactions set and a
// non-empty batch, a system message listing the transactions goes first.
// Unknown roles are sent as user messages.
func (s *Service) Chat(ctx context.Context, messages []llm.Message, includeTransactions bool) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	var req llm.Request
	if includeTransactions && s.source != nil {
		if txs := s.source.All(); len(txs) > 0 {
			req.Messages = append(req.Messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: buildTransactionContext(txs),
			})
		}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, llm.Message{
			Role:    llm.ParseRole(string(m.Role)),
			Content: m.Content,
		})
	}

	s.log.Info().
		Int("messages", len(messages)).
		Bool("include_transactions", includeTransactions).
		Msg("processing chat")

	text, err := s.completer.Complete(ctx, req)
	if err != nil {
		return "", &domain.CompletionError{Op: "chat", Err: err}
	}
	return text, nil
}

// CategoryChat answers a single question about categorizing or splitting a
// transaction.
func (s *Service) CategoryChat(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	req := llm.Request{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: buildCategoryChatPrompt()},
		{Role: llm.RoleUser, Content: message},
	}}

	text, err := s.completer.Complete(ctx, req)
	if err != nil {
		return "", &domain.CompletionError{Op: "category chat", Err: err}
	}
	return text, nil
}

func buildCategoryChatPrompt() string {
	names := domain.CategoryNames()
	return "You are a helpful assistant that helps users categorize their transactions. " +
		"Available categories are: " + strings.Join(names, ", ") + ". " +
		"You can also help split transactions between multiple categories. " +
		"Keep responses concise and focused on category assignment."
}

func buildTransactionContext(txs []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("You have access to the following transactions:")
	for _, tx := range txs {
		b.WriteString("\n- " + tx.Description + ": " + tx.Amount + " PLN (" + tx.SourceCategory + ")")
		if tx.IsAssigned() {
			b.WriteString(" [assigned: " + tx.AssignedCategory + "]")
		}
	}

	if from, to, ok := period(txs); ok {
		b.WriteString("\n\nPeriod covered: " + from.String() + " to " + to.String())
	}
	return b.String()
}

// period returns the earliest and latest parseable transaction dates.
func period(txs []domain.Transaction) (from, to civil.Date, ok bool) {
	for _, tx := range txs {
		d, parsed := tx.CivilDate()
		if !parsed {
			continue
		}
		if !ok || d.Before(from) {
			from = d
		}
		if !ok || d.After(to) {
			to = d
		}
		ok = true
	}
	return from, to, ok
}
