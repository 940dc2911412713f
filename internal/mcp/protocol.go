// Package mcp exposes the log store as callable tools over a stdio
// JSON-RPC 2.0 protocol, consumable by AI assistant clients.
package mcp

import "encoding/json"

// protocolVersion is the protocol revision reported to clients during
// initialize. Tool names and input schemas are wire contract and must not
// change without a version bump.
const protocolVersion = "2024-11-05"

// request is an incoming JSON-RPC 2.0 request. ID may be a string, a
// number, or absent (a notification).
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is an outgoing JSON-RPC 2.0 response.
type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Tool describes one callable tool: its name and a JSON-schema for its
// arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is a single item in a tool call result. Only text content is
// produced here.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the envelope returned for every tool invocation: one text
// item plus an error flag. Tool failures are reported through IsError,
// never as protocol-level faults.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// textResult wraps text into a success envelope.
func textResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}}
}

// errorResult wraps text into an error-flagged envelope.
func errorResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}
