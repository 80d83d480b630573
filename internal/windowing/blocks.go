package windowing

import "github.com/petasbytes/mcp-chat/memory"

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupTurn
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
// Kind indicates whether it is a singleton or a complete user/assistant turn.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupBlocks groups messages into atomic units so that a window never keeps
// an assistant reply without the user message it answers.
// Invariants:
// - A turn is exactly two adjacent messages: user then assistant.
// - An assistant reply folds in its tool results, so the turn is never split.
// - Everything else (system messages, a trailing unanswered user message,
// consecutive assistant messages) is a singleton.
func GroupBlocks(msgs []memory.Message) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if msgs[i].Role == memory.RoleUser && i+1 < len(msgs) && msgs[i+1].Role == memory.RoleAssistant {
			groups = append(groups, Group{Kind: GroupTurn, Start: i, End: i + 2})
			i += 2
			continue
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}
