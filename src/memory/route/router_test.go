package route

import (
	"testing"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

var testRouter = Router{Knowledge: "knowledge", BestPractices: "best-practices", Session: "agent-memory"}

func TestPoolMappingIsStatic(t *testing.T) {
	cases := map[model.Kind]Pool{
		model.KindArchitectureDecision:  PoolKnowledge,
		model.KindAgentSpec:             PoolKnowledge,
		model.KindTaskOutcome:           PoolKnowledge,
		model.KindErrorPattern:          PoolKnowledge,
		model.KindSchemaNote:            PoolKnowledge,
		model.KindConfigPattern:         PoolKnowledge,
		model.KindCrossComponentExample: PoolKnowledge,
		model.KindUniversalBestPractice: PoolBestPractices,
		model.KindSessionNote:           PoolSession,
	}
	for kind, want := range cases {
		if got := PoolFor(kind); got != want {
			t.Fatalf("PoolFor(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestCollectionResolution(t *testing.T) {
	if got := testRouter.Collection(model.KindTaskOutcome); got != "knowledge" {
		t.Fatalf("task-outcome -> %s", got)
	}
	if got := testRouter.Collection(model.KindUniversalBestPractice); got != "best-practices" {
		t.Fatalf("best practice -> %s", got)
	}
	if got := testRouter.Collection(model.KindSessionNote); got != "agent-memory" {
		t.Fatalf("session note -> %s", got)
	}
}

func TestScopeFilters(t *testing.T) {
	f := testRouter.ScopeFilter(model.KindTaskOutcome, "proj-a")
	if len(f.Must) != 1 || f.Must[0].Key != model.FieldScopeID || f.Must[0].Match != "proj-a" {
		t.Fatalf("project filter = %+v", f)
	}

	// The global pool matches every scope.
	if f := testRouter.ScopeFilter(model.KindUniversalBestPractice, "proj-a"); len(f.Must) != 0 {
		t.Fatalf("global filter should be empty, got %+v", f)
	}

	f = testRouter.ScopeFilter(model.KindSessionNote, "session-91f2")
	if len(f.Must) != 1 || f.Must[0].Key != model.FieldSessionID || f.Must[0].Match != "session-91f2" {
		t.Fatalf("session filter = %+v", f)
	}
}
