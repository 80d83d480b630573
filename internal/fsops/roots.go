package fsops

import (
	"github.com/petasbytes/mcp-chat/internal/safety"
)

// FS performs sandboxed file operations under fixed read and write roots.
type FS struct {
	readRoot  string
	writeRoot string
}

// New resolves the sandbox roots once. Empty roots default to the working
// directory (read) and the read root (write).
func New(readRoot, writeRoot string) (*FS, error) {
	r, w, err := safety.InitSandboxRoot(readRoot, writeRoot)
	if err != nil {
		return nil, err
	}
	return &FS{readRoot: r, writeRoot: w}, nil
}

// ReadRoot returns the absolute read root.
func (f *FS) ReadRoot() string { return f.readRoot }

// WriteRoot returns the absolute write root.
func (f *FS) WriteRoot() string { return f.writeRoot }
