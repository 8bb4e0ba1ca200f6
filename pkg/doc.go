// Package pkg contains the components of the SSE MCP server.
//
// The server bridges plain HTTP to the Model Context Protocol: a long-lived
// Server-Sent Events stream carries server-to-client messages while client
// messages arrive through a separate POST endpoint correlated by session id.
//
// # Sub-packages
//
//   - config: environment-driven application settings
//   - errors: structured error types shared across the bridge
//   - logging: structured logger with pluggable formatters
//   - protocol: JSON-RPC 2.0 message types and MCP methods
//   - session: session registry and per-session bounded outbound channels
//   - sse: the HTTP transport bridge (stream handler, message ingestion)
//   - server: MCP protocol server dispatching to capability providers
//   - tools: tool registry and built-in tools
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - utils: JSON schema helpers and test utilities
package pkg
