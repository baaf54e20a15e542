// Package composer turns retrieved video segments and metadata into
// the context block and prompts consumed by the tool broker and the
// synthesizer. Everything here is pure string assembly: same inputs,
// same output.
package composer

import (
	"fmt"
	"strings"

	"github.com/clipsight/clipsight/internal/retrieval"
)

const defaultMaxContextTokens = 4000

// Normalized-time thresholds for the clip position hints.
const (
	beginningThreshold = 0.15
	endThreshold       = 0.85
)

// Assembler builds the video-context block injected into prompts,
// respecting a token budget on the whole block.
type Assembler struct {
	MaxContextTokens int
}

// NewAssembler creates an Assembler with the given token budget.
// If maxContextTokens <= 0, the default (4000) is used.
func NewAssembler(maxContextTokens int) *Assembler {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Assembler{MaxContextTokens: maxContextTokens}
}

// Assemble builds the context block from the video's summary, its key
// themes, and the retrieved segments. Segments arrive ordered most to
// least relevant and keep that order in the output. When the block
// would exceed the token budget, the lowest-scoring segments are
// dropped whole; survivors are never truncated or reordered.
func (a *Assembler) Assemble(summary, themes string, segments []retrieval.Segment) string {
	var header strings.Builder

	header.WriteString("Video Summary:\n")
	if summary != "" {
		header.WriteString(summary)
	} else {
		header.WriteString("No summary available.")
	}
	header.WriteString("\n")

	if themes != "" {
		header.WriteString("\nKey Themes:\n")
		header.WriteString(themes)
		header.WriteString("\n")
	}

	header.WriteString("\nPotentially Relevant Video Clips (in order from most to least relevant):\n---\n")

	entries := make([]string, len(segments))
	for i, seg := range segments {
		entries[i] = formatSegment(seg)
	}

	kept := fitBudget(entries, segments, a.MaxContextTokens-EstimateTokens(header.String()))

	var sb strings.Builder
	sb.WriteString(header.String())
	if len(kept) == 0 {
		sb.WriteString("(No specific video clips retrieved based on query)\n")
	} else {
		for i, entry := range kept {
			sb.WriteString(entry)
			if i < len(kept)-1 {
				sb.WriteString("---\n")
			}
		}
	}
	return sb.String()
}

// fitBudget drops lowest-scoring entries until the remaining ones fit
// the budget, preserving the relative order of survivors.
func fitBudget(entries []string, segments []retrieval.Segment, budget int) []string {
	drop := make([]bool, len(entries))
	for {
		total := 0
		for i, e := range entries {
			if !drop[i] {
				total += EstimateTokens(e)
			}
		}
		if total <= budget {
			break
		}

		// Find the lowest-scoring surviving segment.
		victim := -1
		for i := range segments {
			if drop[i] {
				continue
			}
			if victim < 0 || segments[i].Score < segments[victim].Score {
				victim = i
			}
		}
		if victim < 0 {
			break
		}
		drop[victim] = true
	}

	var kept []string
	for i, e := range entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	return kept
}

// formatSegment renders one clip entry, with a rough position hint when
// the segment's normalized times are set.
func formatSegment(seg retrieval.Segment) string {
	var hints []string
	if seg.NormalizedStart > 0 || seg.NormalizedEnd > 0 {
		if seg.NormalizedStart <= beginningThreshold {
			hints = append(hints, "near the beginning")
		}
		if seg.NormalizedEnd >= endThreshold {
			hints = append(hints, "near the end")
		}
		if len(hints) == 0 {
			hints = append(hints, "around the middle")
		}
	}

	hint := ""
	if len(hints) > 0 {
		hint = fmt.Sprintf(" (%s)", strings.Join(hints, " and "))
	}

	return fmt.Sprintf("Video Clip from %s to %s%s:\n%s\n", seg.StartTime, seg.EndTime, hint, seg.Text)
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
