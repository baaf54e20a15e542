package synthesis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeCompletionClient struct {
	completeFunc func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.completeFunc(ctx, prompt)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSynthesize_BuildsPromptFromAllInputs(t *testing.T) {
	var gotPrompt string
	client := &fakeCompletionClient{
		completeFunc: func(ctx context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "the chef is making carbonara", nil
		},
	}
	s := New(client, discardLogger())

	answer, err := s.Synthesize(context.Background(), "what is cooked?", "Video Summary:\npasta", "carbonara is roman")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != "the chef is making carbonara" {
		t.Errorf("answer = %q", answer)
	}
	for _, want := range []string{"what is cooked?", "Video Summary:\npasta", "carbonara is roman"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSynthesize_ProviderFailure(t *testing.T) {
	client := &fakeCompletionClient{
		completeFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	s := New(client, discardLogger())

	_, err := s.Synthesize(context.Background(), "q", "ctx", "result")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
