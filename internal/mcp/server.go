// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package mcp serves the operation catalog as MCP tools over
// newline-delimited JSON-RPC 2.0 on stdio.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"agentbridge/internal/dispatch"
	"agentbridge/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// latestProtocolVersion is the version we advertise when the client asks
// for one we do not know.
const latestProtocolVersion = "2025-06-18"

// MaxMessageSize bounds a single inbound line.
const MaxMessageSize = 8 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content           []MCPContent       `json:"content"`
	StructuredContent *dispatch.Response `json:"structuredContent,omitempty"`
	IsError           bool               `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type cancelledParams struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitempty"`
}

// Dispatcher runs tool requests. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Response
	Catalog() *tools.Catalog
}

// Info identifies the server in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server handles one stdio session.
type Server struct {
	dispatcher Dispatcher
	info       Info
	logger     zerolog.Logger

	writeMu sync.Mutex
	out     io.Writer

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server for dispatcher.
func NewServer(dispatcher Dispatcher, info Info, logger zerolog.Logger) *Server {
	if info.Name == "" {
		info.Name = "agentbridge"
	}
	return &Server{
		dispatcher: dispatcher,
		info:       info,
		logger:     logger.With().Str("component", "mcp").Logger(),
		inflight:   make(map[string]context.CancelFunc),
	}
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is done. Either way every in-flight call is canceled
// and awaited before Serve returns.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.out = w
	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-sessionCtx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				s.logger.Error().Err(err).Msg("reading stdin failed")
				return err
			}
			s.logger.Debug().Msg("stdin closed, canceling in-flight calls")
			return nil
		case line := <-lines:
			s.handleLine(sessionCtx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.sendError(nil, JSONRPCParseError, "parse error", nil)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if !isNotification(req) {
			s.sendError(req.ID, JSONRPCInvalidRequest, "invalid request", nil)
		}
		return
	}

	if isNotification(req) {
		s.handleNotification(req)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "ping":
		s.sendResult(req.ID, map[string]any{})
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		s.sendError(req.ID, JSONRPCMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func isNotification(req JSONRPCRequest) bool {
	return len(req.ID) == 0 || string(req.ID) == "null"
}

func (s *Server) handleNotification(req JSONRPCRequest) {
	switch req.Method {
	case "notifications/cancelled":
		var params cancelledParams
		if err := json.Unmarshal(req.Params, &params); err != nil || len(params.RequestID) == 0 {
			s.logger.Debug().Msg("ignoring malformed cancel notification")
			return
		}
		if s.cancel(params.RequestID) {
			s.logger.Info().Str("id", idKey(params.RequestID)).Str("reason", params.Reason).Msg("call canceled by client")
		}
	case "notifications/initialized":
	default:
		s.logger.Debug().Str("method", req.Method).Msg("ignoring notification")
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	_ = json.Unmarshal(req.Params, &params)
	version := latestProtocolVersion
	if supportedProtocolVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}
	s.logger.Info().Str("protocol_version", version).Msg("MCP session initialized")

	s.sendResult(req.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.info.Name,
			"version": s.info.Version,
		},
	})
}

func (s *Server) handleToolsList(req JSONRPCRequest) {
	s.sendResult(req.ID, ToolList(s.dispatcher.Catalog()))
}

// ToolList describes every enabled operation as an MCP tool.
func ToolList(catalog *tools.Catalog) MCPListToolsResult {
	ops := catalog.Operations()
	result := MCPListToolsResult{Tools: make([]MCPToolInfo, 0, len(ops))}
	for _, op := range ops {
		result.Tools = append(result.Tools, MCPToolInfo{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: tools.JSONSchema(op.Fields),
		})
	}
	return result
}

func (s *Server) handleToolsCall(ctx context.Context, req JSONRPCRequest) {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendError(req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return
	}
	args, err := tools.ParseArguments(string(params.Arguments))
	if err != nil {
		s.sendError(req.ID, JSONRPCInvalidParams, err.Error(), nil)
		return
	}

	key := idKey(req.ID)
	callCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if _, dup := s.inflight[key]; dup {
		s.mu.Unlock()
		cancel()
		s.sendError(req.ID, JSONRPCInvalidRequest, "duplicate request id", nil)
		return
	}
	s.inflight[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(key)

		resp := s.dispatcher.Dispatch(callCtx, dispatch.Request{Operation: params.Name, Arguments: args})
		s.sendResult(req.ID, callResult(resp))
	}()
}

func callResult(resp dispatch.Response) MCPCallToolResult {
	return MCPCallToolResult{
		Content:           []MCPContent{{Type: "text", Text: responseText(resp)}},
		StructuredContent: &resp,
		IsError:           !resp.Success,
	}
}

// responseText renders a response for clients that only read text content.
func responseText(resp dispatch.Response) string {
	if resp.Success {
		if resp.Output == "" && resp.Data != nil {
			if data, err := json.MarshalIndent(resp.Data, "", "  "); err == nil {
				return string(data)
			}
		}
		return resp.Output
	}
	var b strings.Builder
	if resp.Error != nil {
		fmt.Fprintf(&b, "Error [%s]: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Stderr != "" {
		b.WriteString("\n\n")
		b.WriteString(resp.Stderr)
	}
	if resp.Output != "" {
		b.WriteString("\n\n")
		b.WriteString(resp.Output)
	}
	return b.String()
}

func (s *Server) cancel(id json.RawMessage) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[idKey(id)]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Server) release(key string) {
	s.mu.Lock()
	cancel, ok := s.inflight[key]
	delete(s.inflight, key)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// idKey normalizes a JSON id so 7 and "7" stay distinct but whitespace
// differences do not.
func idKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}

func (s *Server) sendResult(id json.RawMessage, result any) {
	s.write(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id json.RawMessage, code int, message string, data any) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	s.write(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	})
}

func (s *Server) write(resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		data, _ = json.Marshal(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   &JSONRPCError{Code: JSONRPCInternalError, Message: "internal error"},
		})
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}
