package cli

import (
	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-shardmem/src/mcpserver"
)

// Version is set at build time via ldflags.
var Version = "dev"

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over MCP stdio",
		Long: "Expose memory_store, memory_search and memory_health as Model Context " +
			"Protocol tools on stdin/stdout, for use as an agent tool server.",
		Run: runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(*cobra.Command, []string) {
	d, err := pipeline()
	if err != nil {
		exitErr("setup", err)
	}
	if err := mcpserver.Run(d.storage, d.retrieval, d.cfg.ProjectID, Version); err != nil {
		exitErr("serve", err)
	}
}
