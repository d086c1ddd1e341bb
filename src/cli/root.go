// Package cli implements the shardmem command line: store, search, count,
// init, health and serve.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/config"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/embed"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/engine"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

var (
	envFile     string
	fallbackDir string
	verbose     bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "shardmem",
	Short: "Vector-backed memory shards for AI agents",
	Long: "shardmem validates, deduplicates and stores budget-constrained memory shards " +
		"in a vector database, and reconstitutes them into bounded context for an agent.",
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if envFile != "" {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env if present)")
	RootCmd.PersistentFlags().StringVar(&fallbackDir, "fallback-dir", "", "Directory for a local fallback store used when the vector store is unreachable")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// deps is the wired pipeline a command runs against.
type deps struct {
	cfg       config.Config
	store     store.VectorStore
	storage   *engine.StorageEngine
	retrieval *engine.RetrievalEngine
}

// pipeline builds the configured store, embedder and both engines.
func pipeline() (*deps, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger()

	var vs store.VectorStore = store.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Timeout)
	if fallbackDir != "" {
		local, err := store.NewChromemStore(fallbackDir)
		if err != nil {
			return nil, fmt.Errorf("open fallback store: %w", err)
		}
		vs = store.NewFallbackStore(vs, local, log)
	}

	embedder, err := embed.New(cfg.EmbedProvider, cfg.EmbedModel)
	if err != nil {
		return nil, err
	}
	cached, err := embed.NewCachedEmbedder(embedder)
	if err != nil {
		return nil, err
	}

	return &deps{
		cfg:       cfg,
		store:     vs,
		storage:   engine.NewStorageEngine(cfg, vs, cached, log),
		retrieval: engine.NewRetrievalEngine(cfg, vs, cached, log),
	}, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
