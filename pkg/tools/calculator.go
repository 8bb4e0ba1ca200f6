package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/utils"
)

// Operation is one of the supported calculator operations
type Operation string

const (
	OpSum      Operation = "sum"
	OpSubtract Operation = "subtract"
	OpMultiply Operation = "multiply"
	OpDivide   Operation = "divide"
)

// Operations lists every calculator operation, in registration order
var Operations = []Operation{OpSum, OpSubtract, OpMultiply, OpDivide}

var operationDescriptions = map[Operation]string{
	OpSum:      "Calculate the sum of two numbers",
	OpSubtract: "Subtract second number from first",
	OpMultiply: "Multiply two numbers",
	OpDivide:   "Divide first number by second",
}

type calculatorTool struct {
	operation  Operation
	descriptor protocol.Tool
}

// NewCalculatorTool builds the calculator tool for the given operation.
// The tool is named calculate_<operation>.
func NewCalculatorTool(op Operation) (Tool, error) {
	description, ok := operationDescriptions[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %s", op)
	}

	return &calculatorTool{
		operation: op,
		descriptor: protocol.Tool{
			Name:        fmt.Sprintf("calculate_%s", op),
			Description: description,
			InputSchema: utils.ObjectSchema(map[string]utils.SchemaProperty{
				"a": {Type: "number", Description: "First number"},
				"b": {Type: "number", Description: "Second number"},
			}, []string{"a", "b"}),
		},
	}, nil
}

func (t *calculatorTool) Descriptor() protocol.Tool { return t.descriptor }

type calculatorArgs struct {
	A *float64 `json:"a"`
	B *float64 `json:"b"`
}

func (t *calculatorTool) Execute(_ context.Context, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	var args calculatorArgs
	if err := utils.DecodeArguments(arguments, &args); err != nil {
		return nil, err
	}
	if args.A == nil || args.B == nil {
		return nil, fmt.Errorf("arguments must be numbers")
	}

	a, b := *args.A, *args.B
	var result float64
	switch t.operation {
	case OpSum:
		result = a + b
	case OpSubtract:
		result = a - b
	case OpMultiply:
		result = a * b
	case OpDivide:
		if b == 0 {
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.NewTextContent("Error: Division by zero")},
				IsError: true,
			}, nil
		}
		result = a / b
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(formatNumber(result))},
	}, nil
}

// formatNumber renders without a trailing .0 for whole values
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RegisterBuiltins registers the calculator tools and a get_server_info
// tool describing the running server.
func RegisterBuiltins(registry *Registry, serverName, version string) error {
	for _, op := range Operations {
		tool, err := NewCalculatorTool(op)
		if err != nil {
			return err
		}
		registry.Register(tool)
	}

	registry.Register(NewSimpleTool(
		"get_server_info",
		"Get information about the MCP server",
		map[string]utils.SchemaProperty{},
		nil,
		func(context.Context, map[string]interface{}) (string, error) {
			info := map[string]string{
				"server":  serverName,
				"version": version,
				"status":  "running",
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	))

	return nil
}
