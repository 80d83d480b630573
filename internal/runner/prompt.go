package runner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/petasbytes/mcp-chat/internal/toolcall"
	"github.com/petasbytes/mcp-chat/tools"
)

// ToolPrompt renders the system message that tells the model which tools
// exist and how to request one.
func ToolPrompt(descs []tools.Descriptor) string {
	var b strings.Builder
	b.WriteString("You can use the following tools. To call a tool, write a line on its own of the form\n\n")
	b.WriteString(toolcall.Marker + ` {"name": "<tool name>", "arguments": {<arguments as JSON>}}`)
	b.WriteString("\n\nThe tool output will be shown after your reply. Available tools:\n")

	for _, d := range descs {
		fmt.Fprintf(&b, "\n- %s: %s\n", d.Name, d.Description)
		required := map[string]bool{}
		for _, r := range d.InputSchema.Required {
			required[r] = true
		}
		names := make([]string, 0, len(d.InputSchema.Properties))
		for name := range d.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := d.InputSchema.Properties[name]
			opt := "optional"
			if required[name] {
				opt = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s)", name, p.Type, opt)
			if p.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Description)
			}
			if len(p.Enum) > 0 {
				fmt.Fprintf(&b, " One of: %s.", strings.Join(p.Enum, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("  Example: " + toolcall.FormatCall(exampleCall(d, required)) + "\n")
	}
	return b.String()
}

func exampleCall(d tools.Descriptor, required map[string]bool) toolcall.Call {
	args := map[string]any{}
	for name, p := range d.InputSchema.Properties {
		if !required[name] {
			continue
		}
		switch {
		case len(p.Enum) > 0:
			args[name] = p.Enum[0]
		case p.Type == "number" || p.Type == "integer":
			args[name] = 1
		default:
			args[name] = "..."
		}
	}
	return toolcall.Call{Name: d.Name, Arguments: args}
}
