package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petasbytes/mcp-chat/internal/fsops"
)

type FileWriterInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Destination path relative to the workspace. Parent directories are created."`
	Content  string `json:"content" jsonschema_description:"Full text to write; replaces any existing file."`
}

var FileWriterInputSchema = GenerateSchema[FileWriterInput]()

// FileWriterDefinition writes files atomically inside the sandbox.
func FileWriterDefinition(fs *fsops.FS) Definition {
	return Definition{
		Name:        "file_writer",
		Description: "Write text content to a file within the workspace, creating parent directories and replacing the file atomically.",
		InputSchema: FileWriterInputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in FileWriterInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			n, err := fs.WriteAtomic(ctx, in.FilePath, in.Content)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Successfully wrote %d characters to '%s'", n, in.FilePath), nil
		},
	}
}
