package tools

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// Property describes one input field.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// InputSchema is the object schema advertised for a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// GenerateSchema derives an InputSchema from T's json and jsonschema tags.
// Fields without omitempty are required.
func GenerateSchema[T any]() InputSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	out := InputSchema{
		Type:       "object",
		Properties: make(map[string]Property, schema.Properties.Len()),
		Required:   schema.Required,
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p := Property{
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
			Default:     pair.Value.Default,
		}
		for _, e := range pair.Value.Enum {
			p.Enum = append(p.Enum, fmt.Sprint(e))
		}
		out.Properties[pair.Key] = p
	}
	return out
}
