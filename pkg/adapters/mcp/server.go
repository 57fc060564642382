// Package mcp serves the capability registry itself as an MCP server, so any MCP host
// can use the built-in tools.
package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Dispatcher is what the MCP server needs from the toolbox.
type Dispatcher interface {
	Definitions() []domain.Definition
	Dispatch(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) (domain.Result, error)
}

// Server wraps a Dispatcher and exposes it as an MCP Server.
// Every call runs with the same sandboxing context, fixed at construction.
type Server struct {
	dispatcher Dispatcher
	tc         domain.ToolContext
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// NewServer creates a new MCP Server instance and publishes the current definitions.
func NewServer(d Dispatcher, tc domain.ToolContext, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		dispatcher: d,
		tc:         tc,
		mcpServer:  server.NewMCPServer(name, version, server.WithToolCapabilities(true)),
		logger:     logger.With("component", "mcp_server"),
	}
	s.Sync()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Sync republishes the dispatcher's definitions, replacing the previous tool set.
func (s *Server) Sync() {
	defs := s.dispatcher.Definitions()
	tools := make([]server.ServerTool, 0, len(defs))
	for _, def := range defs {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			s.logger.Warn("Skipping tool with unencodable schema", "tool", def.Name, "err", err)
			continue
		}
		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(def.Name, def.Description, schema),
			Handler: s.handler(def.Name),
		})
	}
	s.mcpServer.SetTools(tools...)
	s.logger.Debug("Published tools", "count", len(tools))
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := req.GetArguments()
		if params == nil {
			params = map[string]any{}
		}
		res, err := s.dispatcher.Dispatch(ctx, name, params, s.tc)
		if err != nil {
			// Protocol errors still reach the model, flagged as errors.
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.IsError {
			return mcp.NewToolResultError(res.Output), nil
		}
		return mcp.NewToolResultText(res.Output), nil
	}
}

// Serve speaks the protocol on in/out until ctx is done or the input closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}
