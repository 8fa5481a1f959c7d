package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// RequestID is a JSON-RPC request identifier. It keeps the raw JSON token so that the
// response echoes the identifier verbatim: a string stays a string, a number stays the
// same number, and null or an absent id is answered with null.
type RequestID struct {
	raw json.RawMessage
}

// Request is an inbound JSON-RPC 2.0 envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound JSON-RPC 2.0 envelope. Exactly one of Result or Error is set;
// build responses with newResult and newError to keep it that way.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	// Code indicates the error type that occurred.
	Code int `json:"code"`
	// Message provides a short description of the error.
	Message string `json:"message"`
	// Data contains additional information about the error and may be omitted.
	Data any `json:"data,omitempty"`
}

// ServerCapabilities is the capability object advertised by initialize.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability declares that the server serves tools.
type ToolsCapability struct{}

// ResourcesCapability declares that the server serves resources.
type ResourcesCapability struct{}

// ServerInfo identifies an MCP implementation by name and version.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// Tool describes a tool served by the HTTP channel.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams are the parameters of tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one item of tool output.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// ContentType represents the type of content in tool output.
type ContentType string

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Resource describes a resource served by the HTTP channel.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceParams are the parameters of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is the body of a read resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision announced by initialize.
	ProtocolVersion = "2024-11-05"

	// MethodInitialize is the method name of the initialization handshake.
	MethodInitialize = "initialize"
	// MethodToolsList is the method name for retrieving a list of available tools.
	MethodToolsList = "tools/list"
	// MethodToolsCall is the method name for invoking a specific tool.
	MethodToolsCall = "tools/call"
	// MethodResourcesList is the method name for listing available resources.
	MethodResourcesList = "resources/list"
	// MethodResourcesRead is the method name for reading the content of a specific resource.
	MethodResourcesRead = "resources/read"

	// ContentTypeText marks plain text tool output.
	ContentTypeText ContentType = "text"

	// CodeParseError is returned when the request body is not valid JSON.
	CodeParseError = -32700
	// CodeInvalidRequest is returned when the body is JSON but not a valid request envelope.
	CodeInvalidRequest = -32600
	// CodeMethodNotFound is returned for methods or tools the channel does not serve.
	CodeMethodNotFound = -32601
	// CodeInvalidParams is returned when method parameters cannot be used.
	CodeInvalidParams = -32602
	// CodeInternalError is returned when dispatch fails unexpectedly.
	CodeInternalError = -32603

	errMsgParseError     = "Parse error"
	errMsgInvalidRequest = "Invalid Request"
	errMsgInternalError  = "Internal error"
)

var (
	nullID = json.RawMessage("null")

	errInvalidID = errors.New("id must be a string, a number or null")
)

// StringID returns a RequestID holding the string s.
func StringID(s string) RequestID {
	bs, _ := json.Marshal(s)
	return RequestID{raw: bs}
}

// NumberID returns a RequestID holding the integer n.
func NumberID(n int64) RequestID {
	return RequestID{raw: json.RawMessage(fmt.Sprintf("%d", n))}
}

// IsNull reports whether the identifier is null or absent.
func (id RequestID) IsNull() bool {
	return len(id.raw) == 0 || bytes.Equal(id.raw, nullID)
}

// String returns the raw JSON token of the identifier.
func (id RequestID) String() string {
	if len(id.raw) == 0 {
		return string(nullID)
	}
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler by writing the identifier token unchanged.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return nullID, nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting only strings, numbers and null.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	raw, err := parseRequestID(data)
	if err != nil {
		return err
	}
	id.raw = raw
	return nil
}

func parseRequestID(data []byte) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case nil, string, json.Number:
		return append(json.RawMessage(nil), data...), nil
	default:
		return nil, errInvalidID
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s, data: %v", e.Code, e.Message, e.Data)
}

func newResult(id RequestID, result any) Response {
	bs, err := json.Marshal(result)
	if err != nil {
		return newError(id, CodeInternalError, errMsgInternalError, err.Error())
	}
	return Response{JSONRPC: JSONRPCVersion, ID: id, Result: bs}
}

func newError(id RequestID, code int, message string, data any) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}
