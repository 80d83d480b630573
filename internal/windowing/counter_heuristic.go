package windowing

import (
	"unicode/utf8"

	"github.com/petasbytes/mcp-chat/memory"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m memory.Message) int
	CountGroup(g Group, all []memory.Message) int
}

// HeuristicCounter is the default deterministic estimator: the rune count of
// the message content plus a small fixed overhead per message.
type HeuristicCounter struct{}

// Fixed per-message overhead for deterministic counts; changing this requires updating the guard test.
const messageOverhead = 4

func (HeuristicCounter) CountMessage(m memory.Message) int {
	return utf8.RuneCountInString(m.Content) + messageOverhead
}

func (h HeuristicCounter) CountGroup(g Group, all []memory.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}
