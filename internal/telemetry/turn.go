package telemetry

import (
	"context"
	"time"

	"github.com/petasbytes/mcp-chat/internal/metrics"
)

// TurnSummary describes a finished chat turn without its text.
type TurnSummary struct {
	User       metrics.Features
	Assistant  metrics.Features
	Chunks     int
	ToolCalls  int
	ToolErrors int
	Duration   time.Duration
	Failed     bool
}

// EmitTurnCompleted records a turn_completed event for the turn in ctx.
func EmitTurnCompleted(ctx context.Context, s TurnSummary) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	Emit("turn_completed", map[string]any{
		"turn_id":     turnID,
		"duration_ms": s.Duration.Milliseconds(),
		"chunks":      s.Chunks,
		"tool_calls":  s.ToolCalls,
		"tool_errors": s.ToolErrors,
		"failed":      s.Failed,
		"user":        featureFields(s.User),
		"assistant":   featureFields(s.Assistant),
	})
}

func featureFields(f metrics.Features) map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}
