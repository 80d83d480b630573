package tools

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is on the typed failures below.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrExecutionFailure = errors.New("tool execution failed")
)

// UnknownToolError is returned before any tool body runs.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string { return fmt.Sprintf("Unknown tool: %s", e.Name) }

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// InvalidArgumentsError reports arguments that do not satisfy the tool's schema.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

func (e *InvalidArgumentsError) Is(target error) bool { return target == ErrInvalidArguments }

// ExecutionFailureError wraps a failure raised by a tool body.
type ExecutionFailureError struct {
	Tool  string
	Cause error
}

func (e *ExecutionFailureError) Error() string {
	return fmt.Sprintf("Tool execution failed: %v", e.Cause)
}

func (e *ExecutionFailureError) Unwrap() error { return e.Cause }

func (e *ExecutionFailureError) Is(target error) bool { return target == ErrExecutionFailure }

func invalidArgs(tool, format string, args ...any) error {
	return &InvalidArgumentsError{Tool: tool, Reason: fmt.Sprintf(format, args...)}
}
