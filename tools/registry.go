package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petasbytes/mcp-chat/internal/fsops"
)

// Handler runs a tool against its JSON-encoded, already validated arguments.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Definition is a tool: its advertised descriptor plus the handler.
type Definition struct {
	Name        string
	Description string
	InputSchema InputSchema
	Handler     Handler
}

// Descriptor is the wire form of a tool in tools/list.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// Descriptor returns the advertised form of d.
func (d Definition) Descriptor() Descriptor {
	return Descriptor{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
}

// Registry is a fixed, ordered catalogue of tools.
type Registry struct {
	defs   []Definition
	byName map[string]int
}

// NewRegistry builds a registry in the given order. Duplicate names panic:
// the catalogue is assembled at startup from compiled-in definitions.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make([]Definition, 0, len(defs)), byName: make(map[string]int, len(defs))}
	for _, d := range defs {
		if _, dup := r.byName[d.Name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool name %q", d.Name))
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r
}

// Default returns the standard catalogue bound to a sandboxed filesystem.
func Default(fs *fsops.FS) *Registry {
	return NewRegistry(
		CalculatorDefinition,
		FileReaderDefinition(fs),
		FileWriterDefinition(fs),
		ListFilesDefinition(fs),
		SystemInfoDefinition(time.Now),
	)
}

// Describe returns all descriptors in registration order.
func (r *Registry) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Descriptor())
	}
	return out
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}
