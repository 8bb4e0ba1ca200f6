// Package protocol defines the JSON-RPC 2.0 message types and the MCP
// methods, parameters, and results exchanged over the bridge.
//
// The bridge itself treats payloads as opaque; these types are used by the
// protocol server and by clients constructing messages. Message shape
// sniffers (IsRequest, IsNotification, IsResponse) let the ingestion path
// validate structure without interpreting content.
package protocol
