// Package windowing trims conversation history to an estimated token budget
// before it is sent to a text generator.
package windowing

import "github.com/petasbytes/mcp-chat/memory"

// Stats summarizes the result of window preparation.
//
// Fields:
// - Total: estimated tokens for included groups only.
// - Budget: the input token budget used.
// - IncludedGroups: number of groups included.
// - SkippedGroups: total groups minus IncludedGroups.
// - OverBudgetNewest: true when the newest single group alone exceeds Budget.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the newest suffix of msgs (oldest→newest) that
// fits within budget, without splitting groups. msgs is never modified.
//
// Rules:
// - Include whole groups scanning newest→oldest while total ≤ budget.
// - If the newest group alone exceeds budget, return an empty window and set OverBudgetNewest.
// - If budget ≤ 0, return an empty window (OverBudgetNewest set when any groups exist).
func PrepareSendWindow(msgs []memory.Message, budget int, c TokenCounter) ([]memory.Message, Stats) {
	stats := Stats{Budget: budget}
	if len(msgs) == 0 {
		return nil, stats
	}

	groups := GroupBlocks(msgs)
	if budget <= 0 {
		stats.SkippedGroups = len(groups)
		stats.OverBudgetNewest = true
		return nil, stats
	}

	start := len(msgs)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], msgs)
		if stats.Total+cost > budget {
			if stats.IncludedGroups == 0 {
				stats.OverBudgetNewest = true
			}
			break
		}
		stats.Total += cost
		stats.IncludedGroups++
		start = groups[gi].Start
	}
	stats.SkippedGroups = len(groups) - stats.IncludedGroups

	if stats.IncludedGroups == 0 {
		return nil, stats
	}
	return msgs[start:], stats
}
