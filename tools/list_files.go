package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/petasbytes/mcp-chat/internal/fsops"
)

type ListFilesInput struct {
	Directory string `json:"directory,omitempty" jsonschema:"default=." jsonschema_description:"Directory to list, relative to the workspace (defaults to the current directory)."`
}

var ListFilesInputSchema = GenerateSchema[ListFilesInput]()

// ListFilesDefinition lists a directory non-recursively, sorted by name.
func ListFilesDefinition(fs *fsops.FS) Definition {
	return Definition{
		Name:        "list_files",
		Description: "List the entries of a directory within the workspace (non-recursive). Each entry is tagged [dir] or [file].",
		InputSchema: ListFilesInputSchema,
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			var in ListFilesInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			dir := in.Directory
			if dir == "" {
				dir = "."
			}
			entries, err := fs.List(dir)
			if err != nil {
				return "", err
			}
			return formatListing(dir, entries), nil
		},
	}
}

func formatListing(dir string, entries []fsops.Entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("Directory '%s' is empty", dir)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Files in '%s':", dir)
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(&b, "\n  [dir] %s/", e.Name)
		} else {
			fmt.Fprintf(&b, "\n  [file] %s", e.Name)
		}
	}
	return b.String()
}
