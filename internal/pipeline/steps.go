package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// ErrEmptyUpload is returned for a zero-length upload.
var ErrEmptyUpload = errors.New("no file uploaded")

// Parser decodes a bank export.
type Parser interface {
	Parse(r io.Reader) ([]domain.Transaction, error)
}

// Replacer swaps the loaded batch.
type Replacer interface {
	Replace(batch []domain.Transaction)
}

// PipelineStep represents a single step in the upload pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename     string
	Data         []byte
	ArchiveURI   string
	Transactions []domain.Transaction
}

// Step 1: ValidateInputStep rejects empty and oversized uploads.
type ValidateInputStep struct {
	MaxBytes int64
}

func (s *ValidateInputStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Data) == 0 {
		return ErrEmptyUpload
	}
	if s.MaxBytes > 0 && int64(len(state.Data)) > s.MaxBytes {
		return fmt.Errorf("file too large: %d bytes exceeds limit of %d", len(state.Data), s.MaxBytes)
	}
	return nil
}

// Step 2: ArchiveStep keeps a copy of the raw upload. It is skipped without an
// archiver, and an archive failure is logged rather than returned.
type ArchiveStep struct {
	Archiver gcsuploader.Archiver
}

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Archiver == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	uri, err := s.Archiver.Archive(ctx, state.Filename, state.Data)
	if err != nil {
		log.Warn().Err(err).Str("filename", state.Filename).Msg("archiving upload failed, continuing")
		return nil
	}
	state.ArchiveURI = uri
	log.Info().Str("uri", uri).Msg("upload archived")
	return nil
}

// Step 3: ParseStep decodes the export into transactions.
type ParseStep struct {
	Parser Parser
}

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := s.Parser.Parse(bytes.NewReader(state.Data))
	if err != nil {
		return err
	}
	state.Transactions = txs
	return nil
}

// Step 4: ReplaceStep loads the parsed batch into the store.
type ReplaceStep struct {
	Store Replacer
}

func (s *ReplaceStep) Execute(ctx context.Context, state *PipelineState) error {
	s.Store.Replace(state.Transactions)
	return nil
}
