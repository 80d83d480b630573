package fsops

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/petasbytes/mcp-chat/internal/safety"
)

// ReadText reads a UTF-8 text file under the read root. Missing paths,
// directories and binary content are reported as safety.ToolError values.
func (f *FS) ReadText(path string) (string, error) {
	absPath, err := safety.ValidateRelPath(f.readRoot, path)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", safety.ToolError{Code: safety.CodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
		return "", safety.ToolError{Code: safety.CodeNotText, Message: fmt.Sprintf("file is not valid UTF-8 text: %s", path)}
	}
	return string(b), nil
}
