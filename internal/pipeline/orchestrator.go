// Package pipeline orchestrates one answer run per accepted question:
// retrieve, assemble, tool call, synthesize, resolve. Submission is
// synchronous and cheap; the stages run in a background goroutine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/composer"
	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/store"
	"github.com/clipsight/clipsight/internal/synthesis"
)

// ErrVideoNotReady is returned when the video exists but its offline
// processing has not finished.
var ErrVideoNotReady = errors.New("video is not ready for questions")

// Per-stage timeout defaults.
const (
	DefaultRetrieveTimeout   = 30 * time.Second
	DefaultBrokerTimeout     = 120 * time.Second
	DefaultSynthesizeTimeout = 60 * time.Second
)

// Timeouts bounds each pipeline stage independently.
type Timeouts struct {
	Retrieve   time.Duration
	Broker     time.Duration
	Synthesize time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Retrieve <= 0 {
		t.Retrieve = DefaultRetrieveTimeout
	}
	if t.Broker <= 0 {
		t.Broker = DefaultBrokerTimeout
	}
	if t.Synthesize <= 0 {
		t.Synthesize = DefaultSynthesizeTimeout
	}
	return t
}

// Retriever is the retrieval capability the orchestrator needs.
type Retriever interface {
	Retrieve(ctx context.Context, videoID, query string, topK int) ([]retrieval.Segment, error)
}

// ToolRunner is the tool-step capability the orchestrator needs.
type ToolRunner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Synthesizer is the answer-generation capability.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, videoContext, toolResult string) (string, error)
}

// Orchestrator accepts questions and runs the answer pipeline for each
// in its own goroutine, recording progress in the interaction log.
type Orchestrator struct {
	store       *store.Store
	retriever   Retriever
	assembler   *composer.Assembler
	broker      ToolRunner
	synthesizer Synthesizer
	logger      *slog.Logger

	topK     int
	timeouts Timeouts

	wg sync.WaitGroup
}

// New creates an Orchestrator. topK <= 0 selects the retrieval default.
func New(
	st *store.Store,
	retriever Retriever,
	assembler *composer.Assembler,
	toolBroker ToolRunner,
	synthesizer Synthesizer,
	topK int,
	timeouts Timeouts,
	logger *slog.Logger,
) *Orchestrator {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &Orchestrator{
		store:       st,
		retriever:   retriever,
		assembler:   assembler,
		broker:      toolBroker,
		synthesizer: synthesizer,
		logger:      logger,
		topK:        topK,
		timeouts:    timeouts.withDefaults(),
	}
}

// Submit validates the question, records a processing interaction, and
// starts the answer run. It returns the new interaction ID without
// waiting for any stage work.
//
// Validation errors: store.ErrNotFound for an unknown video,
// ErrVideoNotReady for one still processing, retrieval.ErrInvalidQuery
// for a blank question, store.ErrUnavailable when the log cannot be
// written.
func (o *Orchestrator) Submit(ctx context.Context, videoID, userQuery, userName string) (string, error) {
	meta, err := o.store.ReadMetadata(ctx, videoID)
	if err != nil {
		return "", err
	}
	if meta.ProcessingStatus != store.VideoFinished {
		return "", fmt.Errorf("%w: video %s is %s", ErrVideoNotReady, videoID, meta.ProcessingStatus)
	}
	if strings.TrimSpace(userQuery) == "" {
		return "", fmt.Errorf("%w: query is blank", retrieval.ErrInvalidQuery)
	}

	interaction := store.Interaction{
		InteractionID:  uuid.New().String(),
		UserName:       userName,
		UserQuery:      userQuery,
		QueryTimestamp: time.Now().UTC().Format(time.RFC3339),
		Status:         store.StatusProcessing,
	}
	if err := o.store.AppendInteraction(ctx, videoID, interaction); err != nil {
		return "", err
	}

	o.logger.Info("interaction accepted",
		slog.String("video_id", videoID),
		slog.String("interaction_id", interaction.InteractionID))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(meta, interaction)
	}()

	return interaction.InteractionID, nil
}

// run executes the pipeline stages for one interaction and records the
// terminal status. It uses a background context: the submitting request
// is long gone by the time stages finish.
func (o *Orchestrator) run(meta store.VideoMetadata, interaction store.Interaction) {
	videoID := meta.VideoID
	log := o.logger.With(
		slog.String("video_id", videoID),
		slog.String("interaction_id", interaction.InteractionID))

	answer, err := o.executeStages(log, meta, interaction.UserQuery)
	if err != nil {
		log.Error("pipeline run failed", slog.String("error", err.Error()))
		o.resolve(videoID, interaction.InteractionID, store.StatusFailed, "")
		return
	}

	o.resolve(videoID, interaction.InteractionID, store.StatusCompleted, answer)
	log.Info("pipeline run completed")
}

func (o *Orchestrator) executeStages(log *slog.Logger, meta store.VideoMetadata, query string) (string, error) {
	videoID := meta.VideoID

	retrieveCtx, cancel := context.WithTimeout(context.Background(), o.timeouts.Retrieve)
	segments, err := o.retriever.Retrieve(retrieveCtx, videoID, query, o.topK)
	cancel()
	if err != nil {
		return "", fmt.Errorf("retrieve stage: %w", err)
	}
	log.Debug("retrieve stage done", slog.Int("segments", len(segments)))

	videoContext := o.assembler.Assemble(meta.OverallSummary, meta.KeyThemes, segments)
	toolPrompt := composer.BuildToolPrompt(query, videoContext)

	brokerCtx, cancel := context.WithTimeout(context.Background(), o.timeouts.Broker)
	toolResult, err := o.broker.Run(brokerCtx, toolPrompt)
	cancel()
	if err != nil {
		return "", fmt.Errorf("tool stage: %w", err)
	}
	log.Debug("tool stage done", slog.Int("result_length", len(toolResult)))

	synthCtx, cancel := context.WithTimeout(context.Background(), o.timeouts.Synthesize)
	answer, err := o.synthesizer.Synthesize(synthCtx, query, videoContext, toolResult)
	cancel()
	if err != nil {
		return "", fmt.Errorf("synthesize stage: %w", err)
	}

	if answer, err = nonEmptyAnswer(answer); err != nil {
		return "", fmt.Errorf("synthesize stage: %w", err)
	}
	return answer, nil
}

func nonEmptyAnswer(answer string) (string, error) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", synthesis.ErrUnavailable)
	}
	return trimmed, nil
}

// resolve records the terminal status. A failure here is logged and
// dropped: the interaction stays processing until a later re-submission
// or manual repair, which the polling contract tolerates.
func (o *Orchestrator) resolve(videoID, interactionID, status, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := o.store.ResolveInteraction(ctx, videoID, interactionID, status, answer, now); err != nil {
		o.logger.Error("recording terminal status failed",
			slog.String("video_id", videoID),
			slog.String("interaction_id", interactionID),
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
}

// Drain waits for in-flight runs to finish, up to the given timeout.
// It returns false when runs were abandoned.
func (o *Orchestrator) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
