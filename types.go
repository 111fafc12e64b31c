package main

import (
	"encoding/json"
	"strings"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "readonly-datasource"
	ServerVersion   = "1.0.0"
)

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Tools served by tools/call. Each maps onto one facade operation.
const (
	ToolQuery          = "query"
	ToolListTables     = "list_tables"
	ToolListTablesInfo = "list_tables_info"
	ToolDescribeTable  = "describe_table"
	ToolTableInfo      = "table_info"
	ToolListDatabases  = "list_databases"
	ToolTestConnection = "test_connection"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func invalidParams(message string, data any) *Error {
	return &Error{Code: InvalidParams, Message: message, Data: data}
}

// Implementation names either side of the session.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    any            `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// objectSchema describes an argument object; every name in required must be
// a key of props.
func objectSchema(props map[string]Property, required ...string) InputSchema {
	if props == nil {
		props = map[string]Property{}
	}
	if required == nil {
		required = []string{}
	}
	return InputSchema{Type: "object", Properties: props, Required: required}
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams keeps the arguments raw; each tool decodes its own shape.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// QueryArguments are the arguments of the query tool. Absent paging fields
// fall back to the server defaults.
type QueryArguments struct {
	SQL      string `json:"sql"`
	PageSize *int   `json:"page_size,omitempty"`
	Offset   *int   `json:"offset,omitempty"`
}

func (a QueryArguments) validate() *Error {
	switch {
	case strings.TrimSpace(a.SQL) == "":
		return invalidParams("Missing or invalid 'sql' parameter", nil)
	case a.PageSize != nil && *a.PageSize < 0:
		return invalidParams("'page_size' must be a non-negative integer", *a.PageSize)
	case a.Offset != nil && *a.Offset < 0:
		return invalidParams("'offset' must be a non-negative integer", *a.Offset)
	}
	return nil
}

// TableArguments are the arguments of describe_table and table_info.
type TableArguments struct {
	Table string `json:"table"`
}

func (a TableArguments) validate() *Error {
	if strings.TrimSpace(a.Table) == "" {
		return invalidParams("Missing or invalid 'table' parameter", nil)
	}
	return nil
}

// ConnectionStatus is the test_connection payload.
type ConnectionStatus struct {
	OK bool `json:"ok"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}
