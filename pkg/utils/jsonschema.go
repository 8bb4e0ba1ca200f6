// Package utils holds small helpers shared across the server: JSON schema
// construction for tool descriptors and a goroutine leak detector for tests.
package utils

import (
	"encoding/json"
	"fmt"
)

// SchemaProperty describes one property of an object schema
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ObjectSchema builds a JSON schema for an object with the given properties
// and required keys. Tool input schemas are all flat objects, so this covers
// what the registry needs without a schema library.
func ObjectSchema(properties map[string]SchemaProperty, required []string) json.RawMessage {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, err := json.Marshal(schema)
	if err != nil {
		// The inputs are plain maps of plain structs; marshal cannot fail.
		panic(fmt.Sprintf("schema marshal failed: %v", err))
	}
	return data
}

// DecodeArguments unmarshals tool arguments into dst with a readable error.
// A nil or empty payload decodes as an empty object.
func DecodeArguments(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
