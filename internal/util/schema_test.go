package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchParams struct {
	Query    string   `json:"query" description:"Search query text"`
	Limit    int      `json:"limit,omitempty"`
	Exact    bool     `json:"exact"`
	Tags     []string `json:"tags,omitempty"`
	hidden   string   // unexported, must be skipped
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(searchParams{})

	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, properties, 4)

	query, ok := properties["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query text", query["description"])

	limit := properties["limit"].(map[string]any)
	assert.Equal(t, "integer", limit["type"])
	tags := properties["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])

	assert.ElementsMatch(t, []string{"query", "exact"}, schema["required"])
}

func TestCreateSchema_PointerAndNonStruct(t *testing.T) {
	viaPointer := CreateSchema(&searchParams{})
	assert.Equal(t, "object", viaPointer["type"])
	assert.NotEmpty(t, viaPointer["properties"])

	degenerate := CreateSchema("not a struct")
	assert.Equal(t, "object", degenerate["type"])
	assert.Empty(t, degenerate["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(searchParams{})

	err := ValidateParameters(map[string]any{"query": "shipping", "exact": true}, schema)
	assert.NoError(t, err)

	err = ValidateParameters(map[string]any{"exact": true}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	err = ValidateParameters(map[string]any{"query": 7, "exact": true}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
}

func TestValidateParameters_JSONNumbers(t *testing.T) {
	schema := CreateSchema(searchParams{})

	// Decoded JSON yields float64 for numbers; whole floats satisfy integer.
	err := ValidateParameters(map[string]any{
		"query": "x", "exact": false, "limit": float64(5),
	}, schema)
	assert.NoError(t, err)

	err = ValidateParameters(map[string]any{
		"query": "x", "exact": false, "limit": 5.5,
	}, schema)
	assert.Error(t, err)
}

func TestValidateParameters_RequiredAfterJSONRoundTrip(t *testing.T) {
	schema := CreateSchema(searchParams{})

	// Serializing turns []string required into []any.
	data, err := json.Marshal(schema)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	err = ValidateParameters(map[string]any{"exact": true}, decoded)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidateParameters_ExtraFieldsAllowed(t *testing.T) {
	schema := CreateSchema(searchParams{})

	err := ValidateParameters(map[string]any{
		"query": "x", "exact": true, "unknown": "ignored",
	}, schema)
	assert.NoError(t, err)
}
