/*
Package toolbox is a tool execution subsystem for conversational agents.

It gives an agent a uniform catalogue of capabilities (shell, sandboxed files, search,
web fetch, memory) and extends that catalogue at runtime with tools discovered on external
Model Context Protocol servers. Every call is dispatched by name with a parameter map and a
sandboxing context that scopes file access to a per-user output directory.

# Concept

Capabilities never raise for ordinary failures. A missing file, a failing command or an
empty search comes back as a Result with IsError set, which the agent reads like any other
output. Only protocol problems (unknown name, malformed parameters, a broken external
connection, a path outside the sandbox) are returned as errors, carrying a domain.ErrorKind.

External servers are declared in a YAML, JSON or TOML file, launched as child processes on
first use and kept in an idle-evicting pool. Their tools are registered as mcp_<server>_<tool>.

# Usage

	tb := toolbox.New(
		toolbox.WithOutputRoot("/var/lib/agent/output"),
		toolbox.WithServerConfig(config),
	)
	defer tb.Close()

	if err := tb.Start(ctx); err != nil {
		log.Printf("some servers failed discovery: %v", err)
	}

	res, err := tb.Dispatch(ctx, "file_list", map[string]any{"path": "."}, domain.ToolContext{
		UserID:      "42",
		DisplayName: "ada",
	})

# Adapters

The registry can be served to other agents as an MCP server (pkg/adapters/mcp) or over HTTP
(pkg/adapters/http). Memory capabilities persist through any ports.MemoryStore; in-memory,
SQLite and Redis stores are provided under pkg/adapters.
*/
package toolbox
