package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/engine"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory and print a context string",
		Long: "Embed the query, search the routed pools under the scope filter, and print " +
			"the budget-packed context blocks. Prints nothing when no memory clears the score floor.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().StringP("role", "r", "dev", "Consuming role; selects the token budget")
	cmd.Flags().StringP("scope", "s", "", "scope_id (default: configured PROJECT_ID)")
	cmd.Flags().StringSlice("kind", nil, "Kind filter (repeatable)")
	cmd.Flags().StringSlice("importance", nil, "Importance filter (repeatable)")
	cmd.Flags().Float64("min-score", 0, "Similarity floor (default: configured minimum)")
	cmd.Flags().IntP("limit", "l", 0, "Max hits before budget packing (default 10)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	scope, _ := cmd.Flags().GetString("scope")
	kindNames, _ := cmd.Flags().GetStringSlice("kind")
	impNames, _ := cmd.Flags().GetStringSlice("importance")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	limit, _ := cmd.Flags().GetInt("limit")

	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	if scope == "" {
		scope = d.cfg.ProjectID
	}

	kinds := make([]model.Kind, 0, len(kindNames))
	for _, k := range kindNames {
		kinds = append(kinds, model.Kind(k))
	}
	importance := make([]model.Importance, 0, len(impNames))
	for _, imp := range impNames {
		importance = append(importance, model.Importance(imp))
	}

	out, err := d.retrieval.Search(cmd.Context(), engine.SearchRequest{
		Query:      strings.Join(args, " "),
		Role:       model.Role(role),
		ScopeID:    scope,
		Kinds:      kinds,
		Importance: importance,
		MinScore:   minScore,
		Limit:      limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	if out != "" {
		fmt.Println(out)
	}
}
