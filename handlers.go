package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shakram02/readonly-datasource/datasource"
)

var tableProperties = map[string]Property{
	"table": {Type: "string", Description: "Table name"},
}

func (s *MCPServer) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	s.initialized = true
	s.log.Info("client initialized",
		zap.String("client", initParams.ClientInfo.Name),
		zap.String("clientVersion", initParams.ClientInfo.Version))

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
	}, nil
}

func (s *MCPServer) handleListTools() (*ListToolsResult, *Error) {
	queryProperties := map[string]Property{
		"sql": {
			Type:        "string",
			Description: "The SQL query to execute",
		},
		"page_size": {
			Type:        "integer",
			Description: fmt.Sprintf("Rows per page (default %d, 0 disables paging)", s.maxRows),
		},
		"offset": {
			Type:        "integer",
			Description: "Rows to skip (default 0)",
		},
	}

	return &ListToolsResult{
		Tools: []Tool{
			{
				Name:        ToolQuery,
				Description: "Execute a read-only SQL query (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN only)",
				InputSchema: objectSchema(queryProperties, "sql"),
			},
			{
				Name:        ToolListTables,
				Description: "List the tables of the datasource",
				InputSchema: objectSchema(nil),
			},
			{
				Name:        ToolListTablesInfo,
				Description: "List tables with comment, creation and update time where the engine reports them",
				InputSchema: objectSchema(nil),
			},
			{
				Name:        ToolDescribeTable,
				Description: "Describe the columns of a table",
				InputSchema: objectSchema(tableProperties, "table"),
			},
			{
				Name:        ToolTableInfo,
				Description: "Show comment, creation and update time of a table",
				InputSchema: objectSchema(tableProperties, "table"),
			},
			{
				Name:        ToolListDatabases,
				Description: "List the databases or schemas visible to the connection",
				InputSchema: objectSchema(nil),
			},
			{
				Name:        ToolTestConnection,
				Description: "Check that the datasource answers",
				InputSchema: objectSchema(nil),
			},
		},
	}, nil
}

func (s *MCPServer) handleCallTool(params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, invalidParams("Invalid parameters", err.Error())
	}

	ctx, cancel := s.callContext()
	defer cancel()

	switch callParams.Name {
	case ToolQuery:
		args, rpcErr := decodeArguments[QueryArguments](callParams.Arguments)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.executeQuery(ctx, args)
	case ToolListTables:
		return toolResult(s.facade.ListTables(ctx, s.profile))
	case ToolListTablesInfo:
		return toolResult(s.facade.ListTablesInfo(ctx, s.profile))
	case ToolDescribeTable:
		args, rpcErr := decodeArguments[TableArguments](callParams.Arguments)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return toolResult(s.facade.GetTableSchema(ctx, s.profile, args.Table))
	case ToolTableInfo:
		args, rpcErr := decodeArguments[TableArguments](callParams.Arguments)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return toolResult(s.facade.GetTableInfo(ctx, s.profile, args.Table))
	case ToolListDatabases:
		return toolResult(s.facade.GetDatabases(ctx, s.profile))
	case ToolTestConnection:
		ok, err := s.facade.TestConnection(ctx, s.profile)
		return toolResult(ConnectionStatus{OK: ok}, err)
	default:
		return nil, &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
		}
	}
}

// executeQuery runs under the deadline of the tool call in ctx.
func (s *MCPServer) executeQuery(ctx context.Context, args QueryArguments) (*CallToolResult, *Error) {
	page := &datasource.Page{Size: s.maxRows}
	if args.PageSize != nil {
		page.Size = *args.PageSize
	}
	if args.Offset != nil {
		page.Offset = *args.Offset
	}

	res, err := s.facade.ExecuteQuery(ctx, s.profile, args.SQL, nil, page)
	if errors.Is(err, datasource.ErrInvalidQuery) {
		return errorResult(fmt.Sprintf("Query rejected: %v", err)), nil
	}
	if err != nil {
		s.log.Debug("query failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Query error: %v", err)), nil
	}
	return toolResult(res, nil)
}

func (s *MCPServer) handleListResources() (*ListResourcesResult, *Error) {
	ctx, cancel := s.callContext()
	defer cancel()

	tables, err := s.facade.ListTables(ctx, s.profile)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to list tables: %v", err),
		}
	}

	resources := make([]Resource, 0, len(tables))
	for _, table := range tables {
		resources = append(resources, Resource{
			URI:      s.schemaURI(table),
			Name:     fmt.Sprintf("Schema for table '%s'", table),
			MimeType: "application/json",
		})
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *MCPServer) handleReadResource(params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	uri := readParams.URI
	table, ok := s.tableFromURI(uri)
	if !ok {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI format: expected %s", s.schemaURI("<table>")),
		}
	}

	ctx, cancel := s.callContext()
	defer cancel()

	columns, err := s.facade.GetTableSchema(ctx, s.profile, table)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to get schema: %v", err),
		}
	}

	schemaJSON, err := json.MarshalIndent(columns, "", "  ")
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to marshal schema: %v", err),
		}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{
			{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(schemaJSON),
			},
		},
	}, nil
}

// schemaURI is <type>://<database>/<table>/schema.
func (s *MCPServer) schemaURI(table string) string {
	return fmt.Sprintf("%s://%s/%s/schema", s.uriScheme(), s.profile.Database, table)
}

func (s *MCPServer) uriScheme() string {
	return strings.ToLower(strings.TrimSpace(string(s.profile.Type)))
}

// tableFromURI takes the segment before /schema. The database part is not
// parsed because SQLite paths contain slashes.
func (s *MCPServer) tableFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, s.uriScheme()+"://")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, "/schema")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, "/")
	if i < 0 || i == len(rest)-1 {
		return "", false
	}
	return rest[i+1:], true
}

// toolResult renders v as indented JSON, or err as an error result.
func toolResult(v any, err error) (*CallToolResult, *Error) {
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to marshal results: %v", err)), nil
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: string(out)}},
	}, nil
}

func errorResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
		IsError: true,
	}
}

// decodeArguments reads tool arguments into T. Missing arguments decode to
// the zero value, which validate then judges.
func decodeArguments[T interface{ validate() *Error }](raw json.RawMessage) (T, *Error) {
	var args T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return args, invalidParams("Invalid tool arguments", err.Error())
		}
	}
	return args, args.validate()
}
