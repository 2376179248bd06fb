// Package openai adapts the OpenAI Chat Completions API (streaming and
// non-streaming, with tool calling) to the model.Model interface.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/model"
)

// Options configures the OpenAI adapter. Kept to the parameters the runner
// actually tunes; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// NewModel creates an OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model for both streaming and non-streaming
// requests.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		if req.Stream {
			m.stream(ctx, params, out, errCh)
			return
		}
		m.complete(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildParams translates the normalized request into chat parameters. The
// conversation is walked linearly: the event log guarantees every tool
// response content directly follows the assistant content holding its call,
// so no pairing or reordering pass is needed.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, c := range req.Contents {
		messages = append(messages, translateContent(c)...)
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}
	return params
}

// translateContent maps one log content onto zero or more chat messages.
func translateContent(c core.Content) []openai.ChatCompletionMessageParamUnion {
	switch c.Role {
	case "tool":
		var messages []openai.ChatCompletionMessageParamUnion
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			messages = append(messages, openai.ToolMessage(
				stringifyResult(fr.FunctionResponse.Response),
				fr.FunctionResponse.ID,
			))
		}
		return messages
	case "assistant":
		if calls := callParams(c); len(calls) > 0 {
			return []openai.ChatCompletionMessageParamUnion{{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: calls,
				},
			}}
		}
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(flattenText(c))}
	case "system":
		return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(flattenText(c))}
	default:
		text := flattenText(c)
		if text == "" {
			return nil
		}
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}
	}
}

func flattenText(c core.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func callParams(c core.Content) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
	}
	return calls
}

// turnAccumulator folds a completion back into one final content: text
// concatenates, tool call fragments assemble per call index.
type turnAccumulator struct {
	text  strings.Builder
	calls map[int64]*core.FunctionCall
	order []int64
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{calls: map[int64]*core.FunctionCall{}}
}

func (a *turnAccumulator) addText(delta string) { a.text.WriteString(delta) }

func (a *turnAccumulator) addCall(index int64, id, name, argsDelta string) {
	call, ok := a.calls[index]
	if !ok {
		call = &core.FunctionCall{}
		a.calls[index] = call
		a.order = append(a.order, index)
	}
	if id != "" {
		call.ID = id
	}
	if name != "" {
		call.Name = name
	}
	call.Arguments += argsDelta
}

func (a *turnAccumulator) content() core.Content {
	parts := make([]core.Part, 0, len(a.order)+1)
	if a.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: a.text.String()})
	}
	for _, idx := range a.order {
		parts = append(parts, core.FunctionCallPart{FunctionCall: *a.calls[idx]})
	}
	return core.Content{Role: "assistant", Parts: parts}
}

// stream forwards text deltas as partial responses and emits the assembled
// final response on the finish reason. Tool call fragments are accumulated
// only, never forwarded: the flow executes calls from the final response, and
// a fragment would surface half-built arguments.
func (m *Model) stream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	s := m.client.Chat.Completions.NewStreaming(ctx, params)
	acc := newTurnAccumulator()
	for s.Next() {
		chunk := s.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				acc.addText(choice.Delta.Content)
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}},
					},
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				acc.addCall(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
			if choice.FinishReason != "" {
				out <- model.Response{
					Partial:      false,
					Content:      acc.content(),
					FinishReason: choice.FinishReason,
				}
			}
		}
	}
	if err := s.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func (m *Model) complete(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai returned no choices")
		return
	}

	choice := resp.Choices[0]
	acc := newTurnAccumulator()
	acc.addText(choice.Message.Content)
	for i, tc := range choice.Message.ToolCalls {
		acc.addCall(int64(i), tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	out <- model.Response{
		ID:           resp.ID,
		Partial:      false,
		Content:      acc.content(),
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
