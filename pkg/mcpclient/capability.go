package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Capability exposes one cached external tool through the registry.
// Arguments are validated against the tool's declared input schema before the call.
type Capability struct {
	client    *Client
	entry     CachedTool
	schema    map[string]any
	validator *jsonschema.Schema
}

var _ registry.Capability = (*Capability)(nil)

// NewCapability adapts entry. A schema the validator cannot compile is still advertised,
// but arguments are then forwarded unchecked.
func NewCapability(client *Client, entry CachedTool, logger *slog.Logger) *Capability {
	c := &Capability{client: client, entry: entry}

	raw, err := inputSchemaOf(entry)
	if err == nil {
		c.schema, err = decodeObject(raw)
	}
	if err == nil {
		c.validator, err = compileSchema(entry.Name, raw)
	}
	if err != nil && logger != nil {
		logger.Warn("Input schema unusable, arguments will not be validated", "tool", entry.Name, "err", err)
	}
	if c.schema == nil {
		c.schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return c
}

// Capabilities adapts every cached tool.
func (c *Client) Capabilities() []registry.Capability {
	tools := c.Tools()
	caps := make([]registry.Capability, 0, len(tools))
	for _, t := range tools {
		caps = append(caps, NewCapability(c, t, c.logger))
	}
	return caps
}

func (c *Capability) Name() string { return c.entry.Name }

func (c *Capability) Description() string {
	desc := strings.TrimSpace(c.entry.Tool.Description)
	if desc == "" {
		desc = c.entry.Tool.Name
	}
	return fmt.Sprintf("[%s] %s", c.entry.Server, desc)
}

func (c *Capability) Schema() map[string]any { return c.schema }

// Server returns the name of the server providing the tool.
func (c *Capability) Server() string { return c.entry.Server }

func (c *Capability) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	if params == nil {
		params = map[string]any{}
	}
	if c.validator != nil {
		if err := c.validator.Validate(normalize(params)); err != nil {
			return domain.Result{}, domain.InvalidParams("arguments for %s: %v", c.entry.Name, err)
		}
	}
	res, err := c.client.Invoke(ctx, c.entry.Server, c.entry.Tool.Name, params)
	if err != nil {
		return domain.Result{}, err
	}
	return ToResult(res), nil
}

// inputSchemaOf returns the tool's input schema exactly as it goes over the wire.
func inputSchemaOf(entry CachedTool) ([]byte, error) {
	data, err := json.Marshal(entry.Tool)
	if err != nil {
		return nil, err
	}
	var wire struct {
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(wire.InputSchema)) == 0 || string(wire.InputSchema) == "null" {
		return nil, fmt.Errorf("tool declares no input schema")
	}
	return wire.InputSchema, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "toolbox://schemas/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// normalize round-trips params through JSON so Go-typed values (ints, structs, typed
// slices) become the plain JSON values the validator understands.
func normalize(params map[string]any) any {
	data, err := json.Marshal(params)
	if err != nil {
		return params
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return params
	}
	return doc
}
