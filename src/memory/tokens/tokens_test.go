package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func TestEstimate(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"abcd": 1,
		strings.Repeat("x", 1200): 300,
	}
	for text, want := range cases {
		if got := Estimate(text); got != want {
			t.Fatalf("Estimate(%d chars) = %d, want %d", len(text), got, want)
		}
	}
}

func TestEnforceShardSize(t *testing.T) {
	if err := EnforceShardSize(strings.Repeat("x", 1200), DefaultShardLimit); err != nil {
		t.Fatalf("content at the ceiling should pass: %v", err)
	}

	err := EnforceShardSize(strings.Repeat("x", 8000), DefaultShardLimit)
	var berr *model.TokenBudgetExceededError
	if !errors.As(err, &berr) {
		t.Fatalf("expected TokenBudgetExceededError, got %v", err)
	}
	if berr.Estimated != 2000 || berr.Limit != DefaultShardLimit {
		t.Fatalf("unexpected budget detail: %+v", berr)
	}
}

func TestBudgetsTable(t *testing.T) {
	b := DefaultBudgets()
	if b.For(model.RoleArchitect) != 1500 {
		t.Fatalf("architect budget = %d, want 1500", b.For(model.RoleArchitect))
	}
	if b.For(model.RoleSM) != 800 {
		t.Fatalf("sm budget = %d, want 800", b.For(model.RoleSM))
	}
	if b.For(model.Role("unknown")) != fallbackBudget {
		t.Fatalf("unknown role should fall back to %d", fallbackBudget)
	}
}

func TestSelectWithinBudgetIsGreedyAndMonotonic(t *testing.T) {
	items := []int{400, 300, 500, 100}
	cost := func(i int) int { return i }

	selected, consumed := SelectWithinBudget(items, cost, 800)
	// 400 fits, 300 fits, 500 would overflow: iteration stops there and the
	// trailing 100 is not considered even though it would fit.
	if len(selected) != 2 || selected[0] != 400 || selected[1] != 300 {
		t.Fatalf("selected = %v, want [400 300]", selected)
	}
	if consumed != 700 {
		t.Fatalf("consumed = %d, want 700", consumed)
	}
}

func TestSelectWithinBudgetEdges(t *testing.T) {
	cost := func(i int) int { return i }

	if selected, consumed := SelectWithinBudget(nil, cost, 100); len(selected) != 0 || consumed != 0 {
		t.Fatalf("empty input: got %v, %d", selected, consumed)
	}
	if selected, _ := SelectWithinBudget([]int{200}, cost, 100); len(selected) != 0 {
		t.Fatalf("first item over budget should yield nothing, got %v", selected)
	}
	if selected, consumed := SelectWithinBudget([]int{50, 50}, cost, 100); len(selected) != 2 || consumed != 100 {
		t.Fatalf("exact fit should keep both, got %v, %d", selected, consumed)
	}
}
