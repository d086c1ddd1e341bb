package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store one memory shard",
		Long: "Validate, deduplicate and store a shard. Content comes from the argument, " +
			"or from stdin when the argument is omitted or '-'.",
		Args: cobra.MaximumNArgs(1),
		Run:  runStore,
	}

	cmd.Flags().StringP("kind", "k", "", "Shard kind (required)")
	cmd.Flags().String("id", "", "unique_id with the kind's prefix (required)")
	cmd.Flags().StringP("scope", "s", "", "scope_id (default: configured PROJECT_ID)")
	cmd.Flags().StringP("role", "r", "", "Producing role (required)")
	cmd.Flags().StringP("importance", "i", "medium", "critical, high, medium or low")
	cmd.Flags().StringSlice("ref", nil, "file:line citation (repeatable; extracted from content when omitted)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	content, err := readContent(args)
	if err != nil {
		exitErr("read content", err)
	}

	kind, _ := cmd.Flags().GetString("kind")
	uniqueID, _ := cmd.Flags().GetString("id")
	scope, _ := cmd.Flags().GetString("scope")
	role, _ := cmd.Flags().GetString("role")
	importance, _ := cmd.Flags().GetString("importance")
	refs, _ := cmd.Flags().GetStringSlice("ref")

	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	if scope == "" {
		scope = d.cfg.ProjectID
	}

	id, err := d.storage.Store(cmd.Context(), model.MemoryShard{
		Content:    content,
		Kind:       model.Kind(kind),
		UniqueID:   uniqueID,
		ScopeID:    scope,
		Role:       model.Role(role),
		Importance: model.Importance(importance),
		SourceRefs: refs,
	})
	if err != nil {
		exitErr("store", err)
	}

	b, _ := json.MarshalIndent(map[string]string{"shard_id": id, "unique_id": uniqueID}, "", "  ")
	fmt.Println(string(b))
}

func readContent(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
