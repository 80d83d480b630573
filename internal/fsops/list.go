package fsops

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/petasbytes/mcp-chat/internal/safety"
)

// Entry is one non-recursive directory entry.
type Entry struct {
	Name  string
	IsDir bool
}

// List returns the entries of dir under the read root, sorted by name.
func (f *FS) List(dir string) ([]Entry, error) {
	if dir == "" {
		dir = "."
	}
	absDir, err := safety.ValidateRelPath(f.readRoot, dir)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(absDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, safety.ToolError{Code: safety.CodeNotFound, Message: fmt.Sprintf("directory not found: %s", dir)}
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, safety.ToolError{Code: safety.CodeNotADir, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	dirEntries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entries = append(entries, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
