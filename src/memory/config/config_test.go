package config

import (
	"testing"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/route"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_KNOWLEDGE_COLLECTION",
		"QDRANT_BEST_PRACTICES_COLLECTION", "QDRANT_AGENT_MEMORY_COLLECTION",
		"PROJECT_ID", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"EMBEDDING_DIMENSION", "MAX_TOKENS_PER_SHARD", "MEMORY_MIN_SCORE",
		"SIMILARITY_THRESHOLD",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.QdrantURL != DefaultQdrantURL {
		t.Errorf("QdrantURL = %q", cfg.QdrantURL)
	}
	if cfg.KnowledgeCollection != DefaultKnowledge || cfg.BestPracticesCollection != DefaultBestPractices || cfg.SessionCollection != DefaultSessions {
		t.Errorf("collections = %q/%q/%q", cfg.KnowledgeCollection, cfg.BestPracticesCollection, cfg.SessionCollection)
	}
	if cfg.MinScore != DefaultMinScore || cfg.SemanticThreshold != DefaultSemanticThreshold {
		t.Errorf("thresholds = %v/%v", cfg.MinScore, cfg.SemanticThreshold)
	}
	if cfg.MaxTokensPerShard != DefaultMaxTokensPerShard || cfg.EmbedDimension != DefaultEmbedDimension {
		t.Errorf("limits = %d/%d", cfg.MaxTokensPerShard, cfg.EmbedDimension)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("QDRANT_KNOWLEDGE_COLLECTION", "acme-knowledge")
	t.Setenv("PROJECT_ID", "acme")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("MAX_TOKENS_PER_SHARD", "500")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.QdrantURL != "http://qdrant.internal:6333" {
		t.Errorf("QdrantURL = %q", cfg.QdrantURL)
	}
	if cfg.KnowledgeCollection != "acme-knowledge" || cfg.ProjectID != "acme" {
		t.Errorf("knowledge/project = %q/%q", cfg.KnowledgeCollection, cfg.ProjectID)
	}
	if cfg.SemanticThreshold != 0.9 || cfg.MaxTokensPerShard != 500 {
		t.Errorf("threshold/limit = %v/%d", cfg.SemanticThreshold, cfg.MaxTokensPerShard)
	}
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "very high")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRouter(t *testing.T) {
	cfg := Config{
		KnowledgeCollection:     "k",
		BestPracticesCollection: "bp",
		SessionCollection:       "s",
	}
	want := route.Router{Knowledge: "k", BestPractices: "bp", Session: "s"}
	if cfg.Router() != want {
		t.Fatalf("Router() = %+v", cfg.Router())
	}
}
