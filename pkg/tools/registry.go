// Package tools provides the tool registry and the built-in tools exposed
// by the protocol server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/utils"
)

// Tool is one callable tool
type Tool interface {
	// Descriptor returns the tool's wire representation
	Descriptor() protocol.Tool

	// Execute runs the tool. Invalid arguments or execution failures are
	// returned as errors; domain-level failures (e.g. division by zero)
	// are returned as error-flagged content.
	Execute(ctx context.Context, arguments json.RawMessage) (*protocol.CallToolResult, error)
}

// Registry holds tools keyed by name. Safe for concurrent use; listing
// order is stable (sorted by name).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Descriptor().Name] = tool
}

// Get returns the named tool
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns descriptors for all registered tools, sorted by name
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named tool
func (r *Registry) Execute(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return tool.Execute(ctx, arguments)
}

// HandlerFunc is the execution body of a simple tool. It receives decoded
// arguments and returns the textual result.
type HandlerFunc func(ctx context.Context, arguments map[string]interface{}) (string, error)

type simpleTool struct {
	descriptor protocol.Tool
	handler    HandlerFunc
}

// NewSimpleTool builds a tool from a name, a flat object schema, and a
// handler function.
func NewSimpleTool(name, description string, properties map[string]utils.SchemaProperty, required []string, handler HandlerFunc) Tool {
	return &simpleTool{
		descriptor: protocol.Tool{
			Name:        name,
			Description: description,
			InputSchema: utils.ObjectSchema(properties, required),
		},
		handler: handler,
	}
}

func (t *simpleTool) Descriptor() protocol.Tool { return t.descriptor }

func (t *simpleTool) Execute(ctx context.Context, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	var args map[string]interface{}
	if err := utils.DecodeArguments(arguments, &args); err != nil {
		return nil, err
	}

	text, err := t.handler(ctx, args)
	if err != nil {
		return nil, err
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(text)},
	}, nil
}
