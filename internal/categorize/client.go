// Package categorize assigns budget categories to transactions through a
// completion provider.
package categorize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/llm"
)

// DefaultBatchLimit caps how many transactions one AssignAll call handles.
const DefaultBatchLimit = 10

// Client assigns categories with a Completer.
type Client struct {
	completer llm.Completer
	pacer     Pacer
	timeout   time.Duration
	log       zerolog.Logger

	// batchMu admits one AssignAll at a time.
	batchMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithPacer sets the policy used between batch calls.
func WithPacer(p Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// WithTimeout bounds every completion call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for batch progress.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Client. By default batches wait 100ms between calls.
func NewClient(completer llm.Completer, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		pacer:     FixedDelay(100 * time.Millisecond),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assign asks the provider for the category of description. description may
// also be free-text guidance from the user.
//
// Provider failures, timeouts included, are *domain.CompletionError; a reply
// no decoder can read is *domain.DecodeError.
func (c *Client) Assign(ctx context.Context, description string) (domain.CategoryAssignment, error) {
	d, err := c.AssignDecoded(ctx, description)
	if err != nil {
		return domain.CategoryAssignment{}, err
	}
	return d.Assignment, nil
}

// AssignDecoded is Assign that also reports which decode stage succeeded.
func (c *Client) AssignDecoded(ctx context.Context, description string) (Decoded, error) {
	if strings.TrimSpace(description) == "" {
		return Decoded{}, fmt.Errorf("Assign: description cannot be empty")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buildAssignmentPrompt()},
			{Role: llm.RoleUser, Content: description},
		},
		Schema: assignmentSchema(),
	}

	text, err := c.completer.Complete(ctx, req)
	if err != nil {
		return Decoded{}, &domain.CompletionError{Op: "assign category", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Decoded{}, &domain.CompletionError{Op: "assign category", Err: fmt.Errorf("empty response")}
	}

	return Decode(text)
}
