package processing

import (
	"context"

	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/generation"
	"go.uber.org/zap"
)

// Generator is the part of the generation client the processor needs.
// *generation.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...generation.GenerateOption) (*generation.Result, error)
}

// Processor runs one chat turn against a Generator.
//
// Only the latest user message is sent as the prompt. The history is carried
// back to the caller but never shown to the model.
type Processor struct {
	generator Generator
	options   []generation.GenerateOption
	logger    *zap.Logger
}

// NewProcessor creates a processor. opts are passed on every Generate call,
// which is how configured sampling parameters reach the service.
func NewProcessor(generator Generator, logger *zap.Logger, opts ...generation.GenerateOption) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		generator: generator,
		options:   opts,
		logger:    logger,
	}
}

// Process appends the user turn, generates a reply to message and appends the
// assistant turn. The returned history is a new slice; history is never
// modified. On failure the history is nil and err is a RelayError.
func (p *Processor) Process(ctx context.Context, requestID string, history History, message string) (History, *generation.Result, error) {
	updated := history.Clone()
	updated = append(updated, Message{Role: RoleUser, Content: message})

	result, err := p.generator.Generate(ctx, message, p.options...)
	if err != nil {
		return nil, nil, err
	}

	if result == nil || result.GeneratedText == "" {
		p.logger.Warn("generation returned no text",
			zap.String("request_id", requestID),
		)
		return nil, nil, errors.NewEmptyGenerationError(requestID)
	}

	updated = append(updated, Message{Role: RoleAssistant, Content: result.GeneratedText})
	return updated, result, nil
}
