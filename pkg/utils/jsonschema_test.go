package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema(map[string]SchemaProperty{
		"a": {Type: "number", Description: "first operand"},
		"b": {Type: "number", Description: "second operand"},
	}, []string{"a", "b"})

	var decoded struct {
		Type       string                    `json:"type"`
		Properties map[string]SchemaProperty `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(schema, &decoded))

	assert.Equal(t, "object", decoded.Type)
	assert.Len(t, decoded.Properties, 2)
	assert.Equal(t, "number", decoded.Properties["a"].Type)
	assert.ElementsMatch(t, []string{"a", "b"}, decoded.Required)
}

func TestObjectSchemaNoRequired(t *testing.T) {
	schema := ObjectSchema(map[string]SchemaProperty{}, nil)
	assert.NotContains(t, string(schema), "required")
}

func TestDecodeArguments(t *testing.T) {
	var args struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}

	require.NoError(t, DecodeArguments(json.RawMessage(`{"a":2,"b":3}`), &args))
	assert.Equal(t, 2.0, args.A)
	assert.Equal(t, 3.0, args.B)
}

func TestDecodeArgumentsEmpty(t *testing.T) {
	var args map[string]interface{}
	require.NoError(t, DecodeArguments(nil, &args))
	assert.Empty(t, args)
}

func TestDecodeArgumentsInvalid(t *testing.T) {
	var args map[string]interface{}
	err := DecodeArguments(json.RawMessage(`{"a":`), &args)
	assert.ErrorContains(t, err, "invalid arguments")
}
