package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/core"
	"github.com/agenttree/agenttree/model"
)

func TestBuildParams_LinearConversation(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o"; o.APIKey = "test-key" })

	req := model.Request{
		Instructions: "be terse",
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "weather in Kiel?"}}},
			{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{
				FunctionCall: core.FunctionCall{ID: "call-1", Name: "get_weather", Arguments: `{"city":"Kiel"}`},
			}}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{
				FunctionResponse: core.FunctionResponse{ID: "call-1", Name: "get_weather", Response: "rainy"},
			}}},
			{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "It is rainy."}}},
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "get_weather",
				Description: "current weather",
				Parameters:  map[string]any{"type": "object"},
			},
		}},
	}

	params := m.buildParams(req)
	assert.Equal(t, "gpt-4o", params.Model)

	// System, user, assistant tool call, tool response, assistant text — in
	// log order, with no reordering pass.
	require.Len(t, params.Messages, 5)
	assert.NotNil(t, params.Messages[0].OfSystem)
	assert.NotNil(t, params.Messages[1].OfUser)

	call := params.Messages[2].OfAssistant
	require.NotNil(t, call)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "call-1", call.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", call.ToolCalls[0].Function.Name)

	toolMsg := params.Messages[3].OfTool
	require.NotNil(t, toolMsg)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)

	assert.NotNil(t, params.Messages[4].OfAssistant)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "get_weather", params.Tools[0].Function.Name)
}

func TestTranslateContent_SkipsEmptyAndUnpaired(t *testing.T) {
	// A user content with no text produces no message.
	assert.Empty(t, translateContent(core.Content{Role: "user"}))

	// Tool responses without a call id cannot be addressed and are dropped.
	msgs := translateContent(core.Content{Role: "tool", Parts: []core.Part{
		core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{Name: "orphan", Response: "x"}},
	}})
	assert.Empty(t, msgs)
}

func TestTurnAccumulator_AssemblesFragments(t *testing.T) {
	acc := newTurnAccumulator()
	acc.addText("Checking ")
	acc.addCall(0, "call-7", "lookup", `{"q":`)
	acc.addText("now.")
	acc.addCall(0, "", "", `"go"}`)
	acc.addCall(1, "call-8", "notify", `{}`)

	content := acc.content()
	assert.Equal(t, "assistant", content.Role)
	require.Len(t, content.Parts, 3)

	text, ok := content.Parts[0].(core.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Checking now.", text.Text)

	first, ok := content.Parts[1].(core.FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-7", first.FunctionCall.ID)
	assert.Equal(t, "lookup", first.FunctionCall.Name)
	assert.Equal(t, `{"q":"go"}`, first.FunctionCall.Arguments)

	second, ok := content.Parts[2].(core.FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-8", second.FunctionCall.ID)
}
