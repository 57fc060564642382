package capabilities

import (
	"encoding/json"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	Anonymous:      true,
}

// schemaOf reflects the JSON schema of a parameter struct.
// Fields without omitempty are required.
func schemaOf(v any) map[string]any {
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic("capabilities: cannot marshal schema: " + err.Error())
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic("capabilities: cannot unmarshal schema: " + err.Error())
	}
	delete(schema, "$schema")
	return schema
}

// decode copies params into the struct pointed to by out, using json tags.
// Numbers may arrive as float64 or strings; both are accepted.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return domain.ExecutionFailed("building decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return domain.InvalidParams("%v", err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidParams("missing required parameter %q", name)
	}
	return nil
}

// meta carries the static description of a capability.
type meta struct {
	name        string
	description string
	schema      map[string]any
}

func (m meta) Name() string           { return m.name }
func (m meta) Description() string    { return m.description }
func (m meta) Schema() map[string]any { return m.schema }
