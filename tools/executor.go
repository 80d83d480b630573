package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"

	"github.com/petasbytes/mcp-chat/internal/metrics"
	"github.com/petasbytes/mcp-chat/internal/telemetry"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// Executor validates and runs tool calls against a Registry.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	recorder *metrics.Recorder
}

type ExecutorOption func(*Executor)

// WithTimeout bounds each execution; zero or negative disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithRecorder reports executions to Prometheus collectors.
func WithRecorder(r *metrics.Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

func NewExecutor(reg *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: reg, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the catalogue the executor dispatches to.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute runs the named tool. Failures are *UnknownToolError,
// *InvalidArgumentsError or *ExecutionFailureError.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	logger := lagerctx.FromContext(ctx).Session("execute", lager.Data{"tool": name})
	start := time.Now()

	if args == nil {
		args = map[string]any{}
	}
	input, err := json.Marshal(args)
	if err != nil {
		return "", e.finish(ctx, logger, name, start, 0, "", invalidArgs(name, "arguments are not JSON-encodable: %v", err))
	}

	def, ok := e.registry.Lookup(name)
	if !ok {
		return "", e.finish(ctx, logger, name, start, len(input), "", &UnknownToolError{Name: name})
	}
	if err := validateArgs(name, def.InputSchema, args); err != nil {
		return "", e.finish(ctx, logger, name, start, len(input), "", err)
	}

	out, err := e.run(ctx, def, input)
	if err != nil {
		var invalid *InvalidArgumentsError
		if !errors.As(err, &invalid) {
			err = &ExecutionFailureError{Tool: name, Cause: err}
		}
	}
	return out, e.finish(ctx, logger, name, start, len(input), out, err)
}

func (e *Executor) run(ctx context.Context, def Definition, input json.RawMessage) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := def.Handler(ctx, input)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
			return "", fmt.Errorf("timed out after %s", e.timeout)
		}
		return "", ctx.Err()
	}
}

func (e *Executor) finish(ctx context.Context, logger lager.Logger, name string, start time.Time, inSize int, out string, err error) error {
	elapsed := time.Since(start)
	class := errorClass(err)

	fields := map[string]any{
		"tool_name":   name,
		"duration_ms": elapsed.Milliseconds(),
		"input_size":  inSize,
		"output_size": len(out),
		"error":       nil,
	}
	if turnID, ok := telemetry.TurnIDFromContext(ctx); ok {
		fields["turn_id"] = turnID
	}
	if err != nil {
		// Class only; messages may echo tool input.
		fields["error"] = class
		logger.Error("failed", err, lager.Data{"class": class, "duration": elapsed.String()})
	} else {
		logger.Debug("done", lager.Data{"duration": elapsed.String(), "output-size": len(out)})
	}
	telemetry.Emit("tool_exec", fields)

	label := name
	if class == "unknown_tool" {
		label = "unknown"
	}
	e.recorder.ObserveTool(label, class, elapsed)
	return err
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrInvalidArguments):
		return "invalid_arguments"
	default:
		return "execution_failure"
	}
}
