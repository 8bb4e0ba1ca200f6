package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/tools"
)

// ToolsProvider supplies the tools capability
type ToolsProvider interface {
	// ListTools returns the available tools
	ListTools(ctx context.Context) ([]protocol.Tool, error)

	// CallTool executes a tool and returns its result
	CallTool(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error)
}

// ResourcesProvider supplies the resources capability
type ResourcesProvider interface {
	// ListResources returns the available resources
	ListResources(ctx context.Context) ([]protocol.Resource, error)

	// ReadResource reads a resource by uri
	ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)
}

// PromptsProvider supplies the prompts capability
type PromptsProvider interface {
	// ListPrompts returns the available prompts
	ListPrompts(ctx context.Context) ([]protocol.Prompt, error)

	// GetPrompt expands a prompt template with the given arguments
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error)
}

// RegistryToolsProvider adapts a tools.Registry to the ToolsProvider interface
type RegistryToolsProvider struct {
	registry *tools.Registry
}

// NewRegistryToolsProvider wraps a tool registry as a provider
func NewRegistryToolsProvider(registry *tools.Registry) *RegistryToolsProvider {
	return &RegistryToolsProvider{registry: registry}
}

func (p *RegistryToolsProvider) ListTools(context.Context) ([]protocol.Tool, error) {
	return p.registry.List(), nil
}

func (p *RegistryToolsProvider) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	return p.registry.Execute(ctx, name, arguments)
}

// ResourceReader produces the textual contents of one resource
type ResourceReader func(ctx context.Context) (string, error)

// BaseResourcesProvider is a static in-memory ResourcesProvider
type BaseResourcesProvider struct {
	mu        sync.RWMutex
	resources map[string]protocol.Resource
	readers   map[string]ResourceReader
}

// NewBaseResourcesProvider creates an empty resources provider
func NewBaseResourcesProvider() *BaseResourcesProvider {
	return &BaseResourcesProvider{
		resources: make(map[string]protocol.Resource),
		readers:   make(map[string]ResourceReader),
	}
}

// Register adds a resource with its reader
func (p *BaseResourcesProvider) Register(resource protocol.Resource, reader ResourceReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[resource.URI] = resource
	p.readers[resource.URI] = reader
}

func (p *BaseResourcesProvider) ListResources(context.Context) ([]protocol.Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]protocol.Resource, 0, len(p.resources))
	for _, res := range p.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

func (p *BaseResourcesProvider) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	p.mu.RLock()
	resource, ok := p.resources[uri]
	reader := p.readers[uri]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("resource not found: %s", uri)
	}

	text, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	mimeType := resource.MimeType
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return &protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{{
			URI:      uri,
			MimeType: mimeType,
			Text:     text,
		}},
	}, nil
}

// PromptExpander expands one prompt template
type PromptExpander func(ctx context.Context, arguments map[string]string) (*protocol.GetPromptResult, error)

// BasePromptsProvider is a static in-memory PromptsProvider
type BasePromptsProvider struct {
	mu        sync.RWMutex
	prompts   map[string]protocol.Prompt
	expanders map[string]PromptExpander
}

// NewBasePromptsProvider creates an empty prompts provider
func NewBasePromptsProvider() *BasePromptsProvider {
	return &BasePromptsProvider{
		prompts:   make(map[string]protocol.Prompt),
		expanders: make(map[string]PromptExpander),
	}
}

// Register adds a prompt with its expander
func (p *BasePromptsProvider) Register(prompt protocol.Prompt, expander PromptExpander) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts[prompt.Name] = prompt
	p.expanders[prompt.Name] = expander
}

func (p *BasePromptsProvider) ListPrompts(context.Context) ([]protocol.Prompt, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]protocol.Prompt, 0, len(p.prompts))
	for _, prompt := range p.prompts {
		out = append(out, prompt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *BasePromptsProvider) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error) {
	p.mu.RLock()
	expander, ok := p.expanders[name]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}

	// Required arguments are enforced before expansion.
	p.mu.RLock()
	prompt := p.prompts[name]
	p.mu.RUnlock()
	for _, arg := range prompt.Arguments {
		if arg.Required {
			if _, present := arguments[arg.Name]; !present {
				return nil, fmt.Errorf("missing required argument %q for prompt %s", arg.Name, name)
			}
		}
	}

	return expander(ctx, arguments)
}

// RegisterGreetingPrompt installs the built-in greeting prompt
func RegisterGreetingPrompt(p *BasePromptsProvider) {
	p.Register(protocol.Prompt{
		Name:        "greeting",
		Description: "Generate a greeting",
		Arguments: []protocol.PromptArgument{{
			Name:        "name",
			Description: "Name of the person to greet",
			Required:    true,
		}},
	}, func(_ context.Context, arguments map[string]string) (*protocol.GetPromptResult, error) {
		who := arguments["name"]
		return &protocol.GetPromptResult{
			Description: "A friendly greeting",
			Messages: []protocol.PromptMessage{{
				Role:    "user",
				Content: protocol.NewTextContent(fmt.Sprintf("Hello, %s! How can I help you today?", who)),
			}},
		}, nil
	})
}
