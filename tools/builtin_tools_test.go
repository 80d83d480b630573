package tools_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/mcp-chat/tools"
)

func call(t *testing.T, name string, args map[string]any) (string, error) {
	t.Helper()
	return newExecutor().Execute(context.Background(), name, args)
}

func TestCalculator(t *testing.T) {
	cases := map[string]string{
		"2 + 3 * 4":     "Result: 14",
		"sqrt(16) + pi": "Result: 7.141592653589793",
		"10 / 4":        "Result: 2.5",
	}
	for expr, want := range cases {
		out, err := call(t, "calculator", map[string]any{"expression": expr})
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", expr, err)
		}
		if out != want {
			t.Fatalf("%s: got %q want %q", expr, out, want)
		}
	}
}

func TestCalculator_RejectsHostAccess(t *testing.T) {
	for _, expr := range []string{"__import__('os')", "open('/etc/passwd')", "x"} {
		if _, err := call(t, "calculator", map[string]any{"expression": expr}); !errors.Is(err, tools.ErrExecutionFailure) {
			t.Fatalf("%s: expected execution failure, got %v", expr, err)
		}
	}
}

func TestFileWriterThenReader_RoundTrip(t *testing.T) {
	path := rel(t, "notes", "a.txt")
	content := "line one\nline two ✓"

	out, err := call(t, "file_writer", map[string]any{"file_path": path, "content": content})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out != "Successfully wrote 19 characters to '"+path+"'" {
		t.Fatalf("unexpected write output: %q", out)
	}

	out, err = call(t, "file_reader", map[string]any{"file_path": path})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != "File contents of '"+path+"':\n\n"+content {
		t.Fatalf("unexpected read output: %q", out)
	}
}

func TestFileReader_MissingNamesPath(t *testing.T) {
	path := rel(t, "missing.txt")
	_, err := call(t, "file_reader", map[string]any{"file_path": path})
	if !errors.Is(err, tools.ErrExecutionFailure) {
		t.Fatalf("expected execution failure, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name %q: %v", path, err)
	}
}

func TestFileWriter_ExpiredContextKeepsPriorContent(t *testing.T) {
	path := rel(t, "kept.txt")
	if _, err := call(t, "file_writer", map[string]any{"file_path": path, "content": "before"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := newExecutor().Execute(ctx, "file_writer", map[string]any{"file_path": path, "content": "after"})
	if !errors.Is(err, tools.ErrExecutionFailure) {
		t.Fatalf("expected ErrExecutionFailure, got %v", err)
	}

	b, err := os.ReadFile(filepath.Join(sharedDir, path))
	if err != nil || string(b) != "before" {
		t.Fatalf("file changed: got %q, %v", b, err)
	}
}

func TestFileWriter_DenyGit(t *testing.T) {
	_, err := call(t, "file_writer", map[string]any{"file_path": ".git/HEAD", "content": "x"})
	if err == nil || !strings.Contains(err.Error(), "ERR_DENIED_WRITE") {
		t.Fatalf("expected ERR_DENIED_WRITE, got %v", err)
	}
}

func TestListFiles_SortedTaggedAndEmpty(t *testing.T) {
	dir := filepath.Join(sharedDir, rel(t))
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("prepare: %v", err)
		}
	}

	out, err := call(t, "list_files", map[string]any{"directory": rel(t)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "Files in '" + rel(t) + "':\n  [file] a.txt\n  [file] b.txt\n  [dir] sub/"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}

	out, err = call(t, "list_files", map[string]any{"directory": rel(t, "sub")})
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if out != "Directory '"+rel(t, "sub")+"' is empty" {
		t.Fatalf("unexpected empty output: %q", out)
	}

	if _, err := call(t, "list_files", map[string]any{"directory": rel(t, "nope")}); !errors.Is(err, tools.ErrExecutionFailure) {
		t.Fatalf("expected execution failure for missing dir, got %v", err)
	}
}

func TestSystemInfo(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	ex := tools.NewExecutor(tools.NewRegistry(tools.SystemInfoDefinition(func() time.Time { return fixed })))
	ctx := context.Background()

	out, err := ex.Execute(ctx, "system_info", map[string]any{"info_type": "time"})
	if err != nil || out != "Current time: 2024-03-09 14:05:07" {
		t.Fatalf("time: got %q, %v", out, err)
	}

	cwd, _ := os.Getwd()
	out, err = ex.Execute(ctx, "system_info", map[string]any{"info_type": "cwd"})
	if err != nil || out != "Current directory: "+cwd {
		t.Fatalf("cwd: got %q, %v", out, err)
	}

	t.Setenv("HOME", "/home/tester")
	t.Setenv("LANG", "")
	os.Unsetenv("LANG")
	out, err = ex.Execute(ctx, "system_info", map[string]any{"info_type": "env"})
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	if !strings.HasPrefix(out, "Environment variables:") ||
		!strings.Contains(out, "\n  HOME: /home/tester") ||
		!strings.Contains(out, "\n  LANG: Not set") {
		t.Fatalf("unexpected env output: %q", out)
	}
}
