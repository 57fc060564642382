package mcp_test

import (
	"context"
	"testing"

	mcpadapter "github.com/aretw0/toolbox/pkg/adapters/mcp"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upperCapability struct{ name string }

func (c upperCapability) Name() string        { return c.name }
func (c upperCapability) Description() string { return "Upper-case text" }
func (c upperCapability) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []any{"text"},
	}
}

func (c upperCapability) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return domain.Result{}, domain.InvalidParams("text is required")
	}
	if text == "fail" {
		return domain.Failure("refusing %q for %s", text, tc.UserID), nil
	}
	return domain.Success("OK:" + text + ":" + tc.UserID), nil
}

func connect(t *testing.T, s *mcpadapter.Server) *client.Client {
	t.Helper()
	ctx := context.Background()
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, req)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestServer_ListsAndCallsCapabilities(t *testing.T) {
	reg := registry.New()
	reg.Register(upperCapability{name: "upper"})
	s := mcpadapter.NewServer(reg, domain.ToolContext{UserID: "mcp-user"}, "toolbox", "test", nil)
	c := connect(t, s)

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "upper", tools.Tools[0].Name)
	assert.Equal(t, "Upper-case text", tools.Tools[0].Description)

	res := call(t, c, "upper", map[string]any{"text": "abc"})
	assert.False(t, res.IsError)
	assert.Equal(t, "OK:abc:mcp-user", text(t, res))

	res = call(t, c, "upper", map[string]any{"text": "fail"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "refusing")

	res = call(t, c, "upper", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid parameters")
}

func TestServer_SyncReplacesTools(t *testing.T) {
	reg := registry.New()
	reg.Register(upperCapability{name: "upper"})
	s := mcpadapter.NewServer(reg, domain.ToolContext{}, "toolbox", "test", nil)
	c := connect(t, s)

	reg.ReplacePrefix("upper", []registry.Capability{upperCapability{name: "upper_v2"}})
	s.Sync()

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "upper_v2", tools.Tools[0].Name)
}
