package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/log"
)

// ServerConfig is reported to clients in the initialize handshake.
type ServerConfig struct {
	Name    string
	Version string
}

// Server speaks MCP over newline-delimited JSON-RPC.
type Server struct {
	logger  *slog.Logger
	handler *Handler
	info    peerInfo
	methods map[string]func(context.Context, *request) *response
}

func NewServer(engine *matching.Engine, config ServerConfig) *Server {
	s := &Server{
		logger:  log.Logger("mcp"),
		handler: NewHandler(engine),
		info:    peerInfo{Name: config.Name, Version: config.Version},
	}
	s.methods = map[string]func(context.Context, *request) *response{
		"initialize": s.initialize,
		"tools/list": s.listTools,
		"tools/call": s.callTool,
		"ping":       s.ping,
	}
	return s
}

// RunStdio serves stdin/stdout until stdin closes or ctx is done.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve handles one request per line from r, writing replies to w.
// A final line without a trailing newline is still handled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("mcp server started", "name", s.info.Name, "version", s.info.Version)

	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return errors.Wrap(readErr, "read request")
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			if err := s.write(w, s.dispatch(ctx, line)); err != nil {
				s.logger.Error("write response failed", "error", err)
			}
		}

		if readErr != nil {
			s.logger.Info("input closed")
			return nil
		}
	}
}

func (s *Server) dispatch(ctx context.Context, line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(nil, codeParseError, "Parse error", err.Error())
	}

	if req.notification() {
		s.logger.Debug("notification", "method", req.Method)
		return nil
	}

	method, ok := s.methods[req.Method]
	if !ok {
		return failure(req.ID, codeMethodNotFound, "Method not found", req.Method)
	}
	return method(ctx, &req)
}

func (s *Server) initialize(_ context.Context, req *request) *response {
	var params initializeParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}

	s.logger.Info("client connected",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion,
	)

	return result(req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      s.info,
	})
}

func (s *Server) ping(_ context.Context, req *request) *response {
	return result(req.ID, struct{}{})
}

func (s *Server) listTools(_ context.Context, req *request) *response {
	return result(req.ID, toolsListResult{Tools: MatchingTools})
}

func (s *Server) callTool(ctx context.Context, req *request) *response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return failure(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	s.logger.Info("tool call", "tool", params.Name)
	return result(req.ID, s.handler.HandleToolCall(ctx, ToolCallRequest{
		Name:      params.Name,
		Arguments: params.Arguments,
	}))
}

func (s *Server) write(w io.Writer, resp *response) error {
	if resp == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
