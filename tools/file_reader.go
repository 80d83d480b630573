package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petasbytes/mcp-chat/internal/fsops"
)

type FileReaderInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Path of the text file to read, relative to the workspace."`
}

var FileReaderInputSchema = GenerateSchema[FileReaderInput]()

// FileReaderDefinition reads whole UTF-8 text files inside the sandbox.
func FileReaderDefinition(fs *fsops.FS) Definition {
	return Definition{
		Name:        "file_reader",
		Description: "Read the contents of a text file within the workspace. Directories and binary files are rejected.",
		InputSchema: FileReaderInputSchema,
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			var in FileReaderInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			content, err := fs.ReadText(in.FilePath)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("File contents of '%s':\n\n%s", in.FilePath, content), nil
		},
	}
}
