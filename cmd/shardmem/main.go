package main

import (
	"os"

	"github.com/Protocol-Lattice/go-shardmem/src/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
