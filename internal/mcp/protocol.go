package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petasbytes/mcp-chat/tools"
)

const JSONRPCVersion = "2.0"

// ProtocolVersion is reported by initialize.
const ProtocolVersion = "0.1.0"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Method names.
const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	NotifyInitialized = "notifications/initialized"
)

// UnknownID is echoed when a request's id is missing or unreadable.
var UnknownID = json.RawMessage(`"unknown"`)

// ErrMismatchedID is returned by clients when a response answers a different request.
var ErrMismatchedID = errors.New("mcp: response id does not match request id")

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request carries a usable id.
func (r Request) HasID() bool {
	id := bytes.TrimSpace(r.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Validate checks the exactly-one-of invariant.
func (r Response) Validate() error {
	hasResult := len(r.Result) > 0
	hasError := r.Error != nil
	if hasResult == hasError {
		return fmt.Errorf("mcp: response must carry exactly one of result or error")
	}
	return nil
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewResult builds a success response. A nil v encodes as an empty object.
func NewResult(id json.RawMessage, v any) (Response, error) {
	if v == nil {
		v = struct{}{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encode result: %w", err)
	}
	return Response{JSONRPC: JSONRPCVersion, ID: id, Result: b}, nil
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, msg string) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: msg}}
}

type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion,omitempty"`
	Capabilities    map[string]any     `json:"capabilities,omitempty"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

type ServerCapabilities struct {
	Tools map[string]any `json:"tools"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
}

type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text joins the text items of the result.
func (r CallToolResult) Text() string {
	var b bytes.Buffer
	for i, c := range r.Content {
		if c.Type != "text" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
