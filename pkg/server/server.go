// Package server implements the MCP protocol server that sits behind the
// HTTP transport. It consumes raw JSON-RPC payloads handed over by the
// ingestion endpoint and emits responses through the session's outbound
// queue, never directly onto the wire.
package server

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
	"github.com/M1T8E6/sse-mcp-server/pkg/observability"
	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/session"
)

// Options configure a protocol server
type Options struct {
	// Name and Version identify this server in the initialize handshake
	Name    string
	Version string
	// Instructions is an optional hint surfaced to clients on initialize
	Instructions string

	// Providers back the advertised capabilities. A nil provider means the
	// capability is not advertised and its methods answer MethodNotFound.
	Tools     ToolsProvider
	Resources ResourcesProvider
	Prompts   PromptsProvider

	// Metrics, when set, records delivery rejections such as full
	// outbound queues.
	Metrics *observability.Metrics
}

// Server dispatches MCP requests and queues the responses for delivery.
// It is safe for concurrent use; each payload is handled independently.
type Server struct {
	name         string
	version      string
	instructions string

	tools     ToolsProvider
	resources ResourcesProvider
	prompts   PromptsProvider

	registry *session.Registry
	logger   logging.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// New creates a protocol server delivering through registry
func New(opts Options, registry *session.Registry, logger logging.Logger) *Server {
	return &Server{
		name:         opts.Name,
		version:      opts.Version,
		instructions: opts.Instructions,
		tools:        opts.Tools,
		resources:    opts.Resources,
		prompts:      opts.Prompts,
		registry:     registry,
		logger:       logger.WithFields(logging.String("component", "server")),
		metrics:      opts.Metrics,
		tracer:       otel.Tracer("sse-mcp-server/server"),
	}
}

// Handle processes one raw payload for the given session. Requests produce
// a response on the session's outbound queue; notifications produce none.
// The payload has already passed structural validation at the transport.
func (s *Server) Handle(ctx context.Context, sessionID string, payload json.RawMessage) {
	ctx = logging.ContextWithSessionID(ctx, sessionID)
	logger := s.logger.WithContext(ctx)

	switch {
	case protocol.IsRequest(payload):
		var req protocol.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warn("undecodable request", logging.ErrorField(err))
			return
		}

		ctx, span := s.tracer.Start(ctx, "mcp.request",
			trace.WithAttributes(
				attribute.String("rpc.method", req.Method),
				attribute.String("session.id", sessionID),
			))
		resp := s.dispatch(ctx, &req)
		span.End()

		s.deliver(sessionID, resp, logger)

	case protocol.IsNotification(payload):
		var note protocol.Notification
		if err := json.Unmarshal(payload, &note); err != nil {
			logger.Warn("undecodable notification", logging.ErrorField(err))
			return
		}
		s.handleNotification(&note, logger)

	case protocol.IsResponse(payload):
		// The server never issues requests to clients, so inbound responses
		// have nothing to correlate with.
		logger.Debug("ignoring client response")

	default:
		logger.Warn("payload is neither request, notification, nor response")
	}
}

func (s *Server) dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req)
	case protocol.MethodPing:
		return successResponse(req.ID, struct{}{})
	case protocol.MethodListTools:
		return s.handleListTools(ctx, req)
	case protocol.MethodCallTool:
		return s.handleCallTool(ctx, req)
	case protocol.MethodListResources:
		return s.handleListResources(ctx, req)
	case protocol.MethodReadResource:
		return s.handleReadResource(ctx, req)
	case protocol.MethodListPrompts:
		return s.handleListPrompts(ctx, req)
	case protocol.MethodGetPrompt:
		return s.handleGetPrompt(ctx, req)
	default:
		return errorResponse(req.ID, protocol.MethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) handleInitialize(req *protocol.Request) *protocol.Response {
	var params protocol.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, protocol.InvalidParams, "invalid initialize params", err.Error())
		}
	}

	caps := protocol.ServerCapabilities{}
	if s.tools != nil {
		caps.Tools = &protocol.ToolsCapability{}
	}
	if s.resources != nil {
		caps.Resources = &protocol.ResourcesCapability{}
	}
	if s.prompts != nil {
		caps.Prompts = &protocol.PromptsCapability{}
	}

	return successResponse(req.ID, protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		ServerInfo: protocol.Implementation{
			Name:    s.name,
			Version: s.version,
		},
		Capabilities: caps,
		Instructions: s.instructions,
	})
}

func (s *Server) handleListTools(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.tools == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "tools not supported", nil)
	}
	list, err := s.tools.ListTools(ctx)
	if err != nil {
		return errorResponse(req.ID, protocol.InternalError, err.Error(), nil)
	}
	if list == nil {
		list = []protocol.Tool{}
	}
	return successResponse(req.ID, protocol.ListToolsResult{Tools: list})
}

func (s *Server) handleCallTool(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.tools == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "tools not supported", nil)
	}
	var params protocol.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, "invalid tools/call params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, protocol.InvalidParams, "tool name is required", nil)
	}

	result, err := s.tools.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, err.Error(), nil)
	}
	return successResponse(req.ID, result)
}

func (s *Server) handleListResources(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.resources == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "resources not supported", nil)
	}
	list, err := s.resources.ListResources(ctx)
	if err != nil {
		return errorResponse(req.ID, protocol.InternalError, err.Error(), nil)
	}
	if list == nil {
		list = []protocol.Resource{}
	}
	return successResponse(req.ID, protocol.ListResourcesResult{Resources: list})
}

func (s *Server) handleReadResource(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.resources == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "resources not supported", nil)
	}
	var params protocol.ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, "invalid resources/read params", err.Error())
	}
	if params.URI == "" {
		return errorResponse(req.ID, protocol.InvalidParams, "resource uri is required", nil)
	}

	result, err := s.resources.ReadResource(ctx, params.URI)
	if err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, err.Error(), nil)
	}
	return successResponse(req.ID, result)
}

func (s *Server) handleListPrompts(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.prompts == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "prompts not supported", nil)
	}
	list, err := s.prompts.ListPrompts(ctx)
	if err != nil {
		return errorResponse(req.ID, protocol.InternalError, err.Error(), nil)
	}
	if list == nil {
		list = []protocol.Prompt{}
	}
	return successResponse(req.ID, protocol.ListPromptsResult{Prompts: list})
}

func (s *Server) handleGetPrompt(ctx context.Context, req *protocol.Request) *protocol.Response {
	if s.prompts == nil {
		return errorResponse(req.ID, protocol.MethodNotFound, "prompts not supported", nil)
	}
	var params protocol.GetPromptParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, "invalid prompts/get params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, protocol.InvalidParams, "prompt name is required", nil)
	}

	result, err := s.prompts.GetPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, protocol.InvalidParams, err.Error(), nil)
	}
	return successResponse(req.ID, result)
}

func (s *Server) handleNotification(note *protocol.Notification, logger logging.Logger) {
	switch note.Method {
	case protocol.MethodInitialized:
		logger.Info("client completed initialization")
	default:
		logger.Debug("ignoring notification", logging.String("method", note.Method))
	}
}

// deliver queues a response on the session's outbound channel. The session
// may have been torn down since the request was accepted; that is normal
// churn and only downgrades delivery, never other sessions.
func (s *Server) deliver(sessionID string, resp *protocol.Response, logger logging.Logger) {
	if resp == nil {
		return
	}

	sess, err := s.registry.Get(sessionID)
	if err != nil {
		logger.Debug("dropping response for vanished session")
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to marshal response", logging.ErrorField(err))
		return
	}

	if err := sess.Outbound().Enqueue(data); err != nil {
		switch {
		case bridgeerrors.IsChannelFull(err):
			if s.metrics != nil {
				s.metrics.ChannelFull()
			}
			logger.Warn("outbound channel full, dropping response",
				logging.Int("capacity", sess.Outbound().Capacity()))
		case bridgeerrors.IsChannelClosed(err):
			logger.Debug("outbound channel closed, dropping response")
		default:
			logger.Error("failed to enqueue response", logging.ErrorField(err))
		}
	}
}

func successResponse(id interface{}, result interface{}) *protocol.Response {
	resp, err := protocol.NewResponse(id, result)
	if err != nil {
		return errorResponse(id, protocol.InternalError, "failed to encode result", nil)
	}
	return resp
}

func errorResponse(id interface{}, code protocol.ErrorCode, message string, data interface{}) *protocol.Response {
	resp, err := protocol.NewErrorResponse(id, code, message, data)
	if err != nil {
		resp, _ = protocol.NewErrorResponse(id, protocol.InternalError, "failed to encode error", nil)
	}
	return resp
}
