// Package tokens approximates language-model token costs and enforces the
// write-time per-shard ceiling and read-time per-role retrieval budgets.
package tokens

import "github.com/Protocol-Lattice/go-shardmem/src/memory/model"

// CharsPerToken is the fixed approximation used everywhere a token count is
// needed. It intentionally stays a rough heuristic; the budgets are sized
// around it.
const CharsPerToken = 4

// DefaultShardLimit is the per-shard ceiling in estimated tokens, applied
// uniformly regardless of role.
const DefaultShardLimit = 300

// Estimate approximates the token count of text.
func Estimate(text string) int {
	return len(text) / CharsPerToken
}

// EnforceShardSize rejects content over the per-shard ceiling. Callers split
// oversized content into multiple shards with distinct unique_ids; nothing is
// ever truncated here.
func EnforceShardSize(content string, limit int) error {
	if limit <= 0 {
		limit = DefaultShardLimit
	}
	if est := Estimate(content); est > limit {
		return &model.TokenBudgetExceededError{Estimated: est, Limit: limit}
	}
	return nil
}

// Budgets maps a consuming role to its maximum retrieval budget in estimated
// tokens.
type Budgets map[model.Role]int

// fallbackBudget applies to roles absent from the table.
const fallbackBudget = 1000

// DefaultBudgets returns the static role budget table. Architect reads the
// widest context, scrum master the narrowest.
func DefaultBudgets() Budgets {
	return Budgets{
		model.RoleArchitect:  1500,
		model.RoleAnalyst:    1200,
		model.RolePM:         1200,
		model.RoleDev:        1000,
		model.RoleTEA:        1000,
		model.RoleTechWriter: 1000,
		model.RoleUXDesigner: 1000,
		model.RoleSoloDev:    1000,
		model.RoleSM:         800,
	}
}

// For returns the budget for role, falling back to a middle-of-the-table
// default for unknown roles.
func (b Budgets) For(role model.Role) int {
	if budget, ok := b[role]; ok {
		return budget
	}
	return fallbackBudget
}

// SelectWithinBudget walks items in their given (descending relevance) order
// and keeps each one whose estimated cost still fits the budget, stopping at
// the first overflow. The walk is deliberately greedy and relevance-first: no
// reordering, no partial items, no knapsack packing. Returns the kept prefix
// and the tokens it consumes.
func SelectWithinBudget[T any](items []T, cost func(T) int, budget int) ([]T, int) {
	selected := make([]T, 0, len(items))
	consumed := 0
	for _, item := range items {
		c := cost(item)
		if consumed+c > budget {
			break
		}
		selected = append(selected, item)
		consumed += c
	}
	return selected, consumed
}
