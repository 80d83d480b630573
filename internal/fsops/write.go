package fsops

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/petasbytes/mcp-chat/internal/safety"
)

// WriteAtomic replaces the file at path with content, creating parent
// directories as needed. Content is staged in a temp file in the target
// directory and renamed into place, so readers never observe a partial file.
// It returns the number of characters written. Once ctx is done the rename is
// not attempted and the existing file is left as it was.
func (f *FS) WriteAtomic(ctx context.Context, path, content string) (int, error) {
	absPath, err := safety.ValidateWritePath(f.writeRoot, path)
	if err != nil {
		return 0, err
	}
	if fi, err := os.Stat(absPath); err == nil && fi.IsDir() {
		return 0, safety.ToolError{Code: safety.CodeNotAFile, Message: "path is a directory"}
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		return 0, err
	}
	committed = true
	return utf8.RuneCountInString(content), nil
}
