package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/store"
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configured collections",
		Long:  "Create every pool collection with the embedder's vector dimension. Idempotent.",
		Run:   runInit,
	}
	RootCmd.AddCommand(initCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check store reachability and collection counts",
		Run:   runHealth,
	}
	RootCmd.AddCommand(healthCmd)

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Count knowledge shards in a scope",
		Run:   runCount,
	}
	countCmd.Flags().StringP("scope", "s", "", "scope_id (default: configured PROJECT_ID)")
	RootCmd.AddCommand(countCmd)
}

func runInit(cmd *cobra.Command, _ []string) {
	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	if err := d.storage.EnsureCollections(cmd.Context()); err != nil {
		exitErr("create collections", err)
	}
	fmt.Println("collections ready")
}

func runHealth(cmd *cobra.Command, _ []string) {
	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	counts, err := d.storage.Health(cmd.Context())
	if err != nil {
		exitErr("health", err)
	}
	b, _ := json.MarshalIndent(map[string]any{"status": "ok", "collections": counts}, "", "  ")
	fmt.Println(string(b))
}

func runCount(cmd *cobra.Command, _ []string) {
	scope, _ := cmd.Flags().GetString("scope")

	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	if scope == "" {
		scope = d.cfg.ProjectID
	}

	filter := store.Filter{Must: []store.Condition{{Key: model.FieldScopeID, Match: scope}}}
	n, err := d.store.Count(cmd.Context(), d.cfg.KnowledgeCollection, filter)
	if err != nil {
		exitErr("count", err)
	}
	b, _ := json.MarshalIndent(map[string]any{
		"scope_id":   scope,
		"collection": d.cfg.KnowledgeCollection,
		"count":      n,
	}, "", "  ")
	fmt.Println(string(b))
}
