package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clipsight/clipsight/internal/llm"
)

// ToolClient is the model capability the LLM-based strategy needs.
// Satisfied by the OpenAI client.
type ToolClient interface {
	SelectTool(ctx context.Context, prompt string, tools []llm.ToolSpec) (llm.ToolChoice, error)
}

// LLMSelector asks the model to pick a tool via a forced tool call over
// the live catalog.
type LLMSelector struct {
	Client ToolClient
}

func (s *LLMSelector) Select(ctx context.Context, tools []Tool, prompt string) (Selection, error) {
	specs := make([]llm.ToolSpec, len(tools))
	for i, t := range tools {
		params := t.Schema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs[i] = llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		}
	}

	choice, err := s.Client.SelectTool(ctx, prompt, specs)
	if errors.Is(err, llm.ErrNoToolCall) {
		return Selection{}, fmt.Errorf("%w: model declined to call a tool", ErrSelectionFailed)
	}
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrSelectionFailed, err)
	}

	for _, t := range tools {
		if t.Name == choice.Name {
			return Selection{Tool: choice.Name, Arguments: choice.Arguments}, nil
		}
	}
	return Selection{}, fmt.Errorf("%w: model chose unknown tool %q", ErrSelectionFailed, choice.Name)
}

// Keyword tables for the rule-based strategy. Scored against the
// lowercased prompt.
var (
	researchKeywords = []string{
		"research", "analyze", "study", "investigate", "comprehensive", "detailed",
		"in-depth", "thorough", "scholarly", "academic", "compare", "contrast",
		"literature", "history of", "development of", "evidence", "sources",
		"references", "citations", "papers",
	}
	deepResearchKeywords = []string{"deep research", "deepresearch"}
	reasoningKeywords    = []string{
		"why", "how", "how does", "explain", "reasoning", "logic", "analyze", "solve",
		"problem", "prove", "calculate", "evaluate", "assess", "implications",
		"consequences", "effects of", "causes of", "steps to", "method for",
		"approach to", "strategy", "solution",
	}
)

// Query classes produced by the keyword heuristics, in fallback order
// when matching against the catalog.
const (
	classResearch = "research"
	classReason   = "reason"
	classAsk      = "ask"
)

// RuleSelector picks a tool with keyword heuristics over the prompt and
// matches the resulting class against tool names in the catalog. It
// never fails on a non-empty catalog: when no name matches the class,
// the first catalog entry wins.
type RuleSelector struct{}

func (s *RuleSelector) Select(ctx context.Context, tools []Tool, prompt string) (Selection, error) {
	if len(tools) == 0 {
		return Selection{}, fmt.Errorf("%w: empty catalog", ErrSelectionFailed)
	}

	tool := pickByClass(tools, classifyQuery(prompt))
	return Selection{
		Tool:      tool.Name,
		Arguments: buildArguments(tool, prompt),
	}, nil
}

// classifyQuery scores the prompt against the keyword tables.
func classifyQuery(prompt string) string {
	lower := strings.ToLower(prompt)
	words := len(strings.Fields(prompt))
	isLong := words > 50

	researchScore := countMatches(lower, researchKeywords)
	deepScore := countMatches(lower, deepResearchKeywords)
	reasoningScore := countMatches(lower, reasoningKeywords)

	if isLong {
		researchScore++
	}
	if (strings.HasPrefix(lower, "why") || strings.HasPrefix(lower, "how")) && words > 5 {
		reasoningScore++
	}

	switch {
	case deepScore >= 1 || researchScore >= 3 || (researchScore >= 2 && isLong):
		return classResearch
	case reasoningScore >= 2:
		return classReason
	default:
		return classAsk
	}
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// pickByClass matches the class against tool names, degrading research
// to reason to ask before settling on the first catalog entry.
func pickByClass(tools []Tool, class string) Tool {
	order := []string{class}
	switch class {
	case classResearch:
		order = append(order, classReason, classAsk)
	case classReason:
		order = append(order, classAsk)
	}

	for _, want := range order {
		for _, t := range tools {
			if strings.Contains(strings.ToLower(t.Name), want) {
				return t
			}
		}
	}
	return tools[0]
}

// buildArguments shapes the invocation payload from the tool's schema:
// chat-style tools get a messages array, otherwise the prompt goes into
// the first string property.
func buildArguments(tool Tool, prompt string) map[string]any {
	props, _ := tool.Schema["properties"].(map[string]any)

	if _, ok := props["messages"]; ok {
		return map[string]any{
			"messages": []map[string]any{
				{"role": "user", "content": prompt},
			},
		}
	}

	var stringProps []string
	for name, spec := range props {
		specMap, ok := spec.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := specMap["type"].(string); t == "string" {
			stringProps = append(stringProps, name)
		}
	}
	if len(stringProps) > 0 {
		sort.Strings(stringProps)
		return map[string]any{stringProps[0]: prompt}
	}

	return map[string]any{"query": prompt}
}
