// Package pipeline runs an upload through validation, archiving, parsing and
// loading as a sequence of steps.
package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// StepError records which step failed. Its message is the step's own error so
// callers can surface it unchanged.
type StepError struct {
	Step int // 1-based
	Err  error
}

func (e *StepError) Error() string { return e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// Pipeline orchestrates the execution of pipeline steps.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: i + 1, Err: err}
		}
		if err := step.Execute(ctx, state); err != nil {
			return &StepError{Step: i + 1, Err: err}
		}
	}
	return nil
}

// Upload runs the pipeline for one file and returns the loaded batch.
func (p *Pipeline) Upload(ctx context.Context, filename string, data []byte) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	log.Info().Str("filename", filename).Int("size", len(data)).Msg("processing upload")

	state := &PipelineState{Filename: filename, Data: data}
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("upload failed")
		return nil, err
	}

	log.Info().
		Int("transactions", len(state.Transactions)).
		Dur("duration", time.Since(start)).
		Msg("upload loaded")
	return state.Transactions, nil
}

// NewUploadPipeline creates the standard pipeline: validate, archive, parse,
// replace. archiver may be nil; maxBytes below 1 disables the size check.
func NewUploadPipeline(parser Parser, store Replacer, archiver gcsuploader.Archiver, maxBytes int64) *Pipeline {
	return NewPipeline(
		&ValidateInputStep{MaxBytes: maxBytes},
		&ArchiveStep{Archiver: archiver},
		&ParseStep{Parser: parser},
		&ReplaceStep{Store: store},
	)
}
