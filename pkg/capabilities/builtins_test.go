package capabilities_test

import (
	"testing"

	"github.com/aretw0/toolbox/pkg/adapters/memory"
	"github.com/aretw0/toolbox/pkg/capabilities"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Builtins(t *testing.T) {
	reg := registry.New()
	capabilities.Register(reg)

	assert.Equal(t, []string{
		"file_delete", "file_edit", "file_list", "file_read", "file_write",
		"glob_search", "grep_search", "shell_execute", "web_fetch",
	}, reg.Names())
}

func TestRegister_WithMemoryStore(t *testing.T) {
	reg := registry.New()
	capabilities.Register(reg, capabilities.WithMemoryStore(memory.NewStore()))

	for _, name := range []string{"remember", "recall", "forget"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, name)
	}
}

func TestBuiltins_SchemasAreObjects(t *testing.T) {
	for _, c := range capabilities.Builtins(capabilities.WithMemoryStore(memory.NewStore())) {
		schema := c.Schema()
		assert.Equal(t, "object", schema["type"], c.Name())
		assert.NotContains(t, schema, "$schema", c.Name())
		assert.NotEmpty(t, c.Description(), c.Name())
	}
}

func TestBuiltins_RequiredFields(t *testing.T) {
	byName := map[string]registry.Capability{}
	for _, c := range capabilities.Builtins(capabilities.WithMemoryStore(memory.NewStore())) {
		byName[c.Name()] = c
	}

	assert.ElementsMatch(t, []any{"path", "content"}, byName["file_write"].Schema()["required"])
	assert.ElementsMatch(t, []any{"path", "old_text"}, byName["file_edit"].Schema()["required"])
	assert.ElementsMatch(t, []any{"url"}, byName["web_fetch"].Schema()["required"])
	assert.NotContains(t, byName["recall"].Schema(), "required")
}
