package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/petasbytes/mcp-chat/tools"
)

type toolClient interface {
	ListTools(ctx context.Context) ([]tools.Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// callTool invokes one tool with JSON-encoded arguments and prints its output.
func callTool(ctx context.Context, client toolClient, name, argsJSON string, out io.Writer) error {
	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return fmt.Errorf("--args must be a JSON object: %w", err)
		}
	}
	text, err := client.CallTool(ctx, name, args)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

func listTools(ctx context.Context, client toolClient, out io.Writer) error {
	descs, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	for _, d := range descs {
		fmt.Fprintf(out, "%s\n    %s\n", d.Name, d.Description)
		names := make([]string, 0, len(d.InputSchema.Properties))
		for name := range d.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := d.InputSchema.Properties[name]
			fmt.Fprintf(out, "    - %s (%s): %s\n", name, p.Type, p.Description)
		}
	}
	return nil
}
