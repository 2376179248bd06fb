// Package compaction bounds event log growth: once enough invocations have
// accumulated since the last summary, the older part of the live window is
// replaced (in the rendered history only) by a model-written summary event.
// The durable log itself is append-only and never rewritten.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/model"
)

// DefaultPrompt is the summarization instruction. The {conversation_history}
// marker is replaced with the rendered live window.
const DefaultPrompt = `Summarize the conversation below. Preserve decisions, established facts, ` +
	`user preferences and unfinished tasks; drop pleasantries and dead ends. ` +
	`Write a compact summary that can replace the original messages as context.

{conversation_history}`

// Summarizer condenses a window of events into replacement text.
type Summarizer interface {
	Summarize(ctx context.Context, events []core.Event) (string, error)
}

// LLMSummarizer asks a language model for the summary.
type LLMSummarizer struct {
	llm    model.Model
	prompt string
}

// LLMSummarizerOptions configures an LLMSummarizer.
type LLMSummarizerOptions struct {
	// Prompt overrides DefaultPrompt. It must contain the
	// {conversation_history} marker.
	Prompt string
}

// NewLLMSummarizer creates a summarizer backed by the given model.
func NewLLMSummarizer(llm model.Model, optFns ...func(o *LLMSummarizerOptions)) *LLMSummarizer {
	opts := LLMSummarizerOptions{Prompt: DefaultPrompt}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LLMSummarizer{llm: llm, prompt: opts.Prompt}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, events []core.Event) (string, error) {
	prompt := strings.ReplaceAll(s.prompt, "{conversation_history}", renderHistory(events))

	req := model.Request{
		Contents: []core.Content{{
			Role:  "user",
			Parts: []core.Part{core.TextPart{Text: prompt}},
		}},
	}

	respCh, errCh := s.llm.Generate(ctx, req)
	var text strings.Builder
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				if text.Len() == 0 {
					return "", fmt.Errorf("summarizer produced no output")
				}
				return text.String(), nil
			}
			if resp.Partial {
				continue
			}
			for _, p := range resp.Content.Parts {
				if tp, ok := p.(core.TextPart); ok {
					text.WriteString(tp.Text)
				}
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", err
			}
			errCh = nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// renderHistory flattens events into "author: text" lines for the prompt.
func renderHistory(events []core.Event) string {
	var b strings.Builder
	for _, ev := range events {
		text := ev.Text()
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", ev.Author, text)
	}
	return b.String()
}
