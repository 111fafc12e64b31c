package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shakram02/readonly-datasource/datasource"
)

// MCPServer serves one datasource profile over stdio JSON-RPC. Each tool call
// runs on a fresh connector through the facade.
type MCPServer struct {
	facade       *datasource.Facade
	profile      datasource.Profile
	queryTimeout time.Duration
	maxRows      int
	log          *zap.Logger
	initialized  bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewMCPServer checks that the datasource answers before serving.
func NewMCPServer(ctx context.Context, cfg *Config, log *zap.Logger) (*MCPServer, error) {
	opts := append(cfg.connectorOptions(), datasource.WithLogger(log))
	s := &MCPServer{
		facade:       datasource.NewFacade(opts...),
		profile:      cfg.Datasource,
		queryTimeout: cfg.QueryTimeout,
		maxRows:      cfg.MaxRows,
		log:          log,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer pingCancel()
	if _, err := s.facade.TestConnection(pingCtx, s.profile); err != nil {
		return nil, fmt.Errorf("failed to connect to datasource: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	return s, nil
}

// Run reads requests line by line from in and writes responses to out.
func (s *MCPServer) Run(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	enc := json.NewEncoder(out)

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if response := s.handleMessage([]byte(trimmed)); response != nil {
				if encErr := enc.Encode(response); encErr != nil {
					s.log.Error("failed to write response", zap.Error(encErr))
				}
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func (s *MCPServer) handleMessage(data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &Error{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	return s.handleRequest(&req)
}

func (s *MCPServer) handleRequest(req *JSONRPCRequest) *JSONRPCResponse {
	var result any
	var err *Error

	s.log.Debug("request", zap.String("method", req.Method), zap.Any("id", req.ID))

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
		return nil
	case "tools/list":
		result, err = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(req.Params)
	case "resources/list":
		result, err = s.handleListResources()
	case "resources/read":
		result, err = s.handleReadResource(req.Params)
	case "ping":
		result = map[string]any{}
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   err,
	}
}

// callContext bounds one tool call or resource read.
func (s *MCPServer) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.queryTimeout)
}

// Shutdown stops Run after the request in flight.
func (s *MCPServer) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}
