// Package llm wraps the OpenAI client behind the three narrow
// capabilities the pipeline needs: embeddings, plain text generation,
// and a single forced tool-call over a provided tool list.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ErrNoToolCall is returned by SelectTool when the model responds
// without calling any of the offered tools.
var ErrNoToolCall = errors.New("model did not call a tool")

// Default models, overridable via config.
const (
	DefaultChatModel  = "gpt-4o-mini"
	DefaultEmbedModel = "text-embedding-3-small"
)

// ToolSpec describes one tool offered to the model for selection.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolChoice is the model's pick: a tool name and decoded arguments.
type ToolChoice struct {
	Name      string
	Arguments map[string]any
}

// Client is a thin wrapper over the OpenAI SDK.
type Client struct {
	api        openai.Client
	chatModel  string
	embedModel string
}

// New creates a Client. Empty model names fall back to the defaults.
func New(apiKey, chatModel, embedModel string) *Client {
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	return &Client{
		api:        openai.NewClient(option.WithAPIKey(apiKey)),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embedModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response has no data")
	}

	v := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		v[i] = float32(f)
	}
	return v, nil
}

// Complete runs one chat completion and returns the text of the first
// choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// SelectTool offers the given tools to the model with tool choice
// forced to "required" and returns the first tool call. Returns
// ErrNoToolCall if the model answers without calling one.
func (c *Client) SelectTool(ctx context.Context, prompt string, tools []ToolSpec) (ToolChoice, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		},
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return ToolChoice{}, fmt.Errorf("creating tool selection completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return ToolChoice{}, ErrNoToolCall
	}

	call := resp.Choices[0].Message.ToolCalls[0]
	args := map[string]any{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return ToolChoice{}, fmt.Errorf("decoding tool arguments: %w", err)
		}
	}
	return ToolChoice{Name: call.Function.Name, Arguments: args}, nil
}
