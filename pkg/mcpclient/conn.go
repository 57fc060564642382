package mcpclient

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClientInfo identifies this process to the servers it connects to.
var ClientInfo = mcp.Implementation{Name: "toolbox", Version: "dev"}

type sessionConn struct {
	c *client.Client
}

// NewConn wraps an initialized mcp-go client.
func NewConn(c *client.Client) Conn {
	return &sessionConn{c: c}
}

func (s *sessionConn) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var (
		req   mcp.ListToolsRequest
		tools []mcp.Tool
	)
	for {
		res, err := s.c.ListTools(ctx, req)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		req.Params.Cursor = res.NextCursor
	}
}

func (s *sessionConn) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return s.c.CallTool(ctx, req)
}

func (s *sessionConn) Close() error {
	return s.c.Close()
}

// Initialize performs the protocol handshake on a started client.
func Initialize(ctx context.Context, c *client.Client) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = ClientInfo
	req.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := c.Initialize(ctx, req); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// StdioDialer launches the server as a child process speaking the protocol on stdio.
// The process ends when the connection is closed.
func StdioDialer(ctx context.Context, server ServerConfig) (Conn, error) {
	command, args, env, err := server.Launch()
	if err != nil {
		return nil, err
	}

	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", command, err)
	}
	if err := Initialize(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return NewConn(c), nil
}
