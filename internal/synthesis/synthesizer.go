// Package synthesis produces the final user-facing answer from the
// assembled video context and the tool result.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clipsight/clipsight/internal/composer"
)

// ErrUnavailable wraps generation-provider failures. There is no retry:
// the pipeline marks the interaction failed instead.
var ErrUnavailable = errors.New("synthesis unavailable")

// CompletionClient is the model capability the synthesizer needs.
// Satisfied by the OpenAI client.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer runs the single generation call that turns context and
// tool output into an answer.
type Synthesizer struct {
	client CompletionClient
	logger *slog.Logger
}

// New creates a Synthesizer over the given completion provider.
func New(client CompletionClient, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{client: client, logger: logger}
}

// Synthesize builds the synthesis prompt and returns the model's
// answer text.
func (s *Synthesizer) Synthesize(ctx context.Context, query, videoContext, toolResult string) (string, error) {
	prompt := composer.BuildSynthesisPrompt(query, videoContext, toolResult)

	answer, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("synthesized answer", slog.Int("length", len(answer)))
	return answer, nil
}
