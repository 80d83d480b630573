package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"
	"github.com/hashicorp/go-multierror"

	"github.com/petasbytes/mcp-chat/internal/metrics"
	"github.com/petasbytes/mcp-chat/internal/provider"
	"github.com/petasbytes/mcp-chat/internal/telemetry"
	"github.com/petasbytes/mcp-chat/internal/toolcall"
	"github.com/petasbytes/mcp-chat/internal/windowing"
	"github.com/petasbytes/mcp-chat/memory"
	"github.com/petasbytes/mcp-chat/tools"
)

// Phase is the orchestrator's position within a turn.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseStreaming
	PhaseFinalizing
	PhaseToolDispatch
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseToolDispatch:
		return "tool-dispatch"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ErrTurnInProgress is returned when RunTurn is called while another turn runs.
var ErrTurnInProgress = errors.New("runner: a turn is already in progress")

// ToolInvoker is the tool client used during a turn.
type ToolInvoker interface {
	ListTools(ctx context.Context) ([]tools.Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// ToolResult is the outcome of one requested call. Err is set on failure.
type ToolResult struct {
	ToolName string
	Text     string
	Err      error
}

// TurnResult describes a finished turn.
type TurnResult struct {
	TurnID  string
	Reply   memory.Message
	Calls   []toolcall.Call
	Results []ToolResult
	// Err aggregates what went wrong; the turn itself still completed.
	Err error
}

// Failed reports whether the reply is an error message rather than model output.
func (r TurnResult) Failed() bool {
	var oe *OrchestratorError
	return errors.As(r.Err, &oe) && oe.Fatal
}

// OrchestratorError wraps a generator or tool transport failure.
type OrchestratorError struct {
	Op    string
	Err   error
	Fatal bool // the turn produced no model reply
}

func (e *OrchestratorError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *OrchestratorError) Unwrap() error { return e.Err }

// Runner is the chat orchestrator for one session.
type Runner struct {
	gen     provider.Generator
	tools   ToolInvoker
	display io.Writer
	logger  lager.Logger
	budget  int
	counter windowing.TokenCounter

	turn  sync.Mutex
	phase atomic.Int32
}

type Option func(*Runner)

// WithTools enables tool integration through inv.
func WithTools(inv ToolInvoker) Option {
	return func(r *Runner) { r.tools = inv }
}

// WithDisplay sends streamed text and tool results to w as they arrive.
func WithDisplay(w io.Writer) Option {
	return func(r *Runner) { r.display = w }
}

// WithTokenBudget windows history to an estimated budget; 0 sends everything.
func WithTokenBudget(budget int) Option {
	return func(r *Runner) { r.budget = budget }
}

func WithLogger(l lager.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func New(gen provider.Generator, opts ...Option) *Runner {
	r := &Runner{
		gen:     gen,
		display: io.Discard,
		logger:  lager.NewLogger("runner"),
		counter: windowing.HeuristicCounter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase returns the current phase.
func (r *Runner) Phase() Phase { return Phase(r.phase.Load()) }

func (r *Runner) setPhase(p Phase) { r.phase.Store(int32(p)) }

// RunTurn appends userText to conv, streams and stores the assistant reply.
// Generator and tool failures never abort the session: the stored reply
// becomes "Error: <message>" and TurnResult.Err carries the cause.
func (r *Runner) RunTurn(ctx context.Context, conv *memory.Conversation, userText string) (TurnResult, error) {
	if !r.turn.TryLock() {
		return TurnResult{}, ErrTurnInProgress
	}
	defer r.turn.Unlock()
	defer r.setPhase(PhaseIdle)

	start := time.Now()
	turnID := telemetry.NewTurnID()
	logger := r.logger.Session("turn", lager.Data{"turn_id": turnID})
	ctx = telemetry.WithTurnID(lagerctx.NewContext(ctx, logger), turnID)

	conv.Append(memory.UserMessage(userText))
	res := TurnResult{TurnID: turnID}
	var errs *multierror.Error
	chunks := 0

	reply, err := r.stream(ctx, logger, conv, &chunks, &errs)
	if err != nil {
		errs = multierror.Append(errs, err)
		reply = "Error: " + err.Error()
		r.write(reply)
	} else if r.tools != nil {
		r.setPhase(PhaseFinalizing)
		res.Calls = toolcall.Extract(reply)
		if len(res.Calls) > 0 {
			r.setPhase(PhaseToolDispatch)
			res.Results = r.dispatch(ctx, logger, res.Calls, &errs)
			if block := renderResults(res.Results); block != "" {
				r.write(block)
				reply += block
			}
		}
	}

	res.Reply = memory.AssistantMessage(reply)
	conv.Append(res.Reply)
	res.Err = errs.ErrorOrNil()

	toolErrors := 0
	for _, tr := range res.Results {
		if tr.Err != nil {
			toolErrors++
		}
	}
	telemetry.EmitTurnCompleted(ctx, telemetry.TurnSummary{
		User:       metrics.CountFeatures(userText),
		Assistant:  metrics.CountFeatures(reply),
		Chunks:     chunks,
		ToolCalls:  len(res.Calls),
		ToolErrors: toolErrors,
		Duration:   time.Since(start),
		Failed:     res.Failed(),
	})
	if res.Err != nil {
		logger.Error("turn-completed-with-errors", res.Err)
	} else {
		logger.Info("turn-completed", lager.Data{"chunks": chunks, "tool_calls": len(res.Calls)})
	}
	return res, nil
}

// stream prepares the outbound messages and accumulates the reply.
func (r *Runner) stream(ctx context.Context, logger lager.Logger, conv *memory.Conversation, chunks *int, errs **multierror.Error) (string, error) {
	outbound, err := r.outbound(ctx, logger, conv.Messages(), errs)
	if err != nil {
		return "", err
	}

	r.setPhase(PhaseStreaming)
	ch, err := r.gen.Stream(ctx, outbound)
	if err != nil {
		return "", &OrchestratorError{Op: "generate", Err: err, Fatal: true}
	}

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", &OrchestratorError{Op: "generate", Err: ctx.Err(), Fatal: true}
		case c, ok := <-ch:
			if !ok {
				return buf.String(), nil
			}
			if c.Err != nil {
				return "", &OrchestratorError{Op: "generate", Err: c.Err, Fatal: true}
			}
			if c.Delta != "" {
				*chunks++
				buf.WriteString(c.Delta)
				r.write(c.Delta)
			}
			if c.Done {
				return buf.String(), nil
			}
		}
	}
}

// outbound windows the stored history and prepends the transient tool prompt.
func (r *Runner) outbound(ctx context.Context, logger lager.Logger, history []memory.Message, errs **multierror.Error) ([]memory.Message, error) {
	window := history
	if r.budget > 0 {
		var stats windowing.Stats
		window, stats = windowing.PrepareSendWindow(history, r.budget, r.counter)
		turnID, _ := telemetry.TurnIDFromContext(ctx)
		telemetry.Emit("window_prepared", map[string]any{
			"turn_id":            turnID,
			"budget":             stats.Budget,
			"total_estimated":    stats.Total,
			"included_groups":    stats.IncludedGroups,
			"skipped_groups":     stats.SkippedGroups,
			"over_budget_newest": stats.OverBudgetNewest,
		})
		logger.Debug("window-prepared", lager.Data{"included": stats.IncludedGroups, "skipped": stats.SkippedGroups, "total": stats.Total})
		if stats.OverBudgetNewest {
			return nil, &OrchestratorError{
				Op:    "window",
				Err:   fmt.Errorf("newest message exceeds token budget %d", r.budget),
				Fatal: true,
			}
		}
	}

	if r.tools == nil {
		return window, nil
	}
	descs, err := r.tools.ListTools(ctx)
	if err != nil {
		logger.Error("list-tools", err)
		*errs = multierror.Append(*errs, &OrchestratorError{Op: "list tools", Err: err})
		return window, nil
	}
	if len(descs) == 0 {
		return window, nil
	}
	out := make([]memory.Message, 0, len(window)+1)
	out = append(out, memory.SystemMessage(ToolPrompt(descs)))
	return append(out, window...), nil
}

// dispatch runs calls in order. Each failure becomes an inline error result.
func (r *Runner) dispatch(ctx context.Context, logger lager.Logger, calls []toolcall.Call, errs **multierror.Error) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, c := range calls {
		out, err := r.tools.CallTool(ctx, c.Name, c.Arguments)
		if err != nil {
			logger.Info("tool-call-failed", lager.Data{"tool": c.Name, "error": err.Error()})
			*errs = multierror.Append(*errs, &OrchestratorError{Op: "call " + c.Name, Err: err})
		}
		results = append(results, ToolResult{ToolName: c.Name, Text: out, Err: err})
	}
	return results
}

// renderResults formats the results block appended to a reply. Empty
// successful results are left out.
func renderResults(results []ToolResult) string {
	var lines []string
	for _, tr := range results {
		switch {
		case tr.Err != nil:
			lines = append(lines, fmt.Sprintf("[%s] error: %v", tr.ToolName, tr.Err))
		case tr.Text != "":
			lines = append(lines, fmt.Sprintf("[%s] %s", tr.ToolName, tr.Text))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\nTool results:\n" + strings.Join(lines, "\n")
}

func (r *Runner) write(s string) {
	_, _ = io.WriteString(r.display, s)
}
