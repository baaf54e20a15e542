// Package broker runs the tool step of the answer pipeline: it opens a
// session to the external tool provider, picks one tool from the live
// catalog, invokes it, and returns the raw text result.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State names the phase of a broker run. Failures carry the state they
// occurred in.
type State string

const (
	StateConnecting     State = "connecting"
	StateCatalogFetched State = "catalog_fetched"
	StateToolSelected   State = "tool_selected"
	StateInvoking       State = "invoking"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// ErrNoTools is returned when the provider reports an empty catalog.
var ErrNoTools = errors.New("tool catalog is empty")

// ErrSelectionFailed is returned when no selection strategy produced a
// usable tool choice.
var ErrSelectionFailed = errors.New("tool selection failed")

// Error wraps a failure with the state the run was in.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Tool is one entry of the provider's catalog. Schema is the tool's
// input JSON Schema as reported by the provider.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Selection is a chosen tool plus the arguments to invoke it with.
type Selection struct {
	Tool      string
	Arguments map[string]any
}

// Selector picks one tool from the catalog for the given prompt.
type Selector interface {
	Select(ctx context.Context, tools []Tool, prompt string) (Selection, error)
}

// Session is an open connection to the tool provider.
type Session interface {
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Dialer opens sessions to the tool provider.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Broker orchestrates one dial-select-invoke cycle per Run call.
// Selectors are tried in order; a failing strategy falls through to the
// next one.
type Broker struct {
	dialer    Dialer
	selectors []Selector
	logger    *slog.Logger
}

// New creates a Broker. At least one selector is required.
func New(dialer Dialer, selectors []Selector, logger *slog.Logger) *Broker {
	return &Broker{
		dialer:    dialer,
		selectors: selectors,
		logger:    logger,
	}
}

// Run executes one tool invocation for the prompt and returns the raw
// text result. The session is closed on every exit path. All failures
// are *Error values carrying the state they occurred in.
func (b *Broker) Run(ctx context.Context, prompt string) (string, error) {
	session, err := b.dialer.Dial(ctx)
	if err != nil {
		return "", &Error{State: StateConnecting, Err: err}
	}
	defer session.Close()

	tools, err := session.ListTools(ctx)
	if err != nil {
		return "", &Error{State: StateCatalogFetched, Err: fmt.Errorf("listing tools: %w", err)}
	}
	if len(tools) == 0 {
		return "", &Error{State: StateCatalogFetched, Err: ErrNoTools}
	}

	selection, err := b.selectTool(ctx, tools, prompt)
	if err != nil {
		return "", &Error{State: StateToolSelected, Err: err}
	}

	b.logger.Debug("invoking tool", slog.String("tool", selection.Tool))

	result, err := session.CallTool(ctx, selection.Tool, selection.Arguments)
	if err != nil {
		return "", &Error{State: StateInvoking, Err: fmt.Errorf("calling %s: %w", selection.Tool, err)}
	}
	return result, nil
}

// selectTool tries each strategy in order until one yields a tool that
// exists in the catalog.
func (b *Broker) selectTool(ctx context.Context, tools []Tool, prompt string) (Selection, error) {
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}

	var lastErr error
	for _, sel := range b.selectors {
		selection, err := sel.Select(ctx, tools, prompt)
		if err != nil {
			b.logger.Warn("selection strategy failed, trying next", slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		if !known[selection.Tool] {
			b.logger.Warn("selected tool not in catalog, trying next", slog.String("tool", selection.Tool))
			lastErr = fmt.Errorf("%w: tool %q not in catalog", ErrSelectionFailed, selection.Tool)
			continue
		}
		return selection, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no selection strategies configured")
	}
	if !errors.Is(lastErr, ErrSelectionFailed) {
		lastErr = fmt.Errorf("%w: %v", ErrSelectionFailed, lastErr)
	}
	return Selection{}, lastErr
}
