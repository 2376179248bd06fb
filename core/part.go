package core

import (
	"encoding/json"
	"fmt"
)

// Part is one polymorphic segment of role-based content. The concrete types
// implement the unexported marker so the set stays closed.
type Part interface{ isPart() }

// TextPart is a plain text segment.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (TextPart) isPart() {}

// DataPart is a structured key/value segment.
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (DataPart) isPart() {}

// FunctionCall describes a tool invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON payload
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall   `json:"function_call"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // matches originating FunctionCall ID
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse `json:"function_response"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

func (FunctionResponsePart) isPart() {}

// Content holds a conversation role plus ordered heterogeneous parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewTextContent builds single-part text content for the given role.
func NewTextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// partEnvelope is the tagged wire form used when content round-trips through
// JSON (file-backed session store, config fixtures). The in-memory Part union
// cannot be decoded without a discriminator.
type partEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// MarshalJSON encodes parts inside tagged envelopes.
func (c Content) MarshalJSON() ([]byte, error) {
	envelopes := make([]partEnvelope, 0, len(c.Parts))
	for _, p := range c.Parts {
		var (
			typ string
			raw []byte
			err error
		)
		switch v := p.(type) {
		case TextPart:
			typ = partTypeText
			raw, err = json.Marshal(v)
		case DataPart:
			typ = partTypeData
			raw, err = json.Marshal(v)
		case FunctionCallPart:
			typ = partTypeFunctionCall
			raw, err = json.Marshal(v)
		case FunctionResponsePart:
			typ = partTypeFunctionResponse
			raw, err = json.Marshal(v)
		default:
			return nil, fmt.Errorf("unknown content part type %T", p)
		}
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, partEnvelope{Type: typ, Data: raw})
	}
	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: envelopes})
}

// UnmarshalJSON decodes tagged part envelopes back into the closed union.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role  string         `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, env := range wire.Parts {
		switch env.Type {
		case partTypeText:
			var p TextPart
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return err
			}
			c.Parts = append(c.Parts, p)
		case partTypeData:
			var p DataPart
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return err
			}
			c.Parts = append(c.Parts, p)
		case partTypeFunctionCall:
			var p FunctionCallPart
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return err
			}
			c.Parts = append(c.Parts, p)
		case partTypeFunctionResponse:
			var p FunctionResponsePart
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return err
			}
			c.Parts = append(c.Parts, p)
		default:
			return fmt.Errorf("unknown content part type %q", env.Type)
		}
	}
	return nil
}
