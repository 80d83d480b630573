// Package safety confines tool file access to sandbox roots.
package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Error codes carried by ToolError.
const (
	CodeOutsideSandbox = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead     = "ERR_DENIED_READ"
	CodeDeniedWrite    = "ERR_DENIED_WRITE"
	CodeNotFound       = "ERR_NOT_FOUND"
	CodeNotAFile       = "ERR_NOT_A_FILE"
	CodeNotADir        = "ERR_NOT_A_DIRECTORY"
	CodeNotText        = "ERR_NOT_TEXT"
)

// StateDir is the agent's own state directory; tools may neither read nor write it.
const StateDir = ".agent"

// ToolError is a machine-readable policy or filesystem failure.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns compact single-line JSON.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// InitSandboxRoot resolves absolute sandbox roots for read and write operations.
// An empty readRoot means the working directory; an empty writeRoot means readRoot.
func InitSandboxRoot(readRoot, writeRoot string) (absRead string, absWrite string, err error) {
	if readRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("getwd: %w", err)
		}
		readRoot = cwd
	}
	if writeRoot == "" {
		writeRoot = readRoot
	}

	readRoot, err = filepath.Abs(readRoot)
	if err != nil {
		return "", "", fmt.Errorf("abs(readRoot): %w", err)
	}
	writeRoot, err = filepath.Abs(writeRoot)
	if err != nil {
		return "", "", fmt.Errorf("abs(writeRoot): %w", err)
	}

	// Roots that do not exist yet keep their absolute form.
	if r, err := filepath.EvalSymlinks(readRoot); err == nil {
		readRoot = r
	}
	if w, err := filepath.EvalSymlinks(writeRoot); err == nil {
		writeRoot = w
	}
	return readRoot, writeRoot, nil
}

// ValidateRelPath resolves p against absRoot for reading and returns an absolute
// path inside the sandbox. Absolute inputs are accepted only when they already
// lie under absRoot. Traversal, symlink escapes and reads under .git/ or the
// state dir are rejected with a ToolError.
func ValidateRelPath(absRoot, p string) (string, error) {
	candidate, rel, err := resolve(absRoot, p)
	if err != nil {
		return "", err
	}
	if underDir(rel, ".git") || underDir(rel, StateDir) {
		return "", ToolError{Code: CodeDeniedRead, Message: "reads under .git/ or " + StateDir + "/ are not allowed"}
	}
	return candidate, nil
}

// ValidateWritePath is the write-side counterpart of ValidateRelPath. Besides
// the read rules it denies go.mod and go.sum at any depth.
func ValidateWritePath(absRoot, p string) (string, error) {
	candidate, rel, err := resolve(absRoot, p)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", ToolError{Code: CodeNotAFile, Message: "path is the sandbox root"}
	}
	if underDir(rel, ".git") || underDir(rel, StateDir) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes under .git/ or " + StateDir + "/ are not allowed"}
	}
	switch filepath.Base(rel) {
	case "go.mod", "go.sum":
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes to module files are not allowed"}
	}
	return candidate, nil
}

// resolve returns the symlink-resolved candidate and its slash-separated form
// relative to absRoot.
func resolve(absRoot, p string) (string, string, error) {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(absRoot, filepath.Clean(p))
		if err != nil || escapes(r) {
			return "", "", ToolError{Code: CodeOutsideSandbox, Message: "absolute path lies outside the sandbox root"}
		}
		p = r
	}

	candidate := filepath.Join(absRoot, filepath.Clean(p))

	// Resolve the whole path when it exists, else the deepest existing
	// ancestor, so a symlinked parent cannot hide an escape.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		candidate = resolveAncestor(candidate)
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || escapes(rel) {
		return "", "", ToolError{Code: CodeOutsideSandbox, Message: "requested path resolves outside the sandbox root"}
	}
	return candidate, filepath.ToSlash(rel), nil
}

func resolveAncestor(path string) string {
	var tail []string
	cur := path
	for {
		parent := filepath.Dir(cur)
		tail = append([]string{filepath.Base(cur)}, tail...)
		if parent == cur {
			return path
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
		cur = parent
	}
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

func underDir(rel, dir string) bool {
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}
