// Package main is the entry point for the specagent CLI.
package main

import (
	"os"

	"github.com/jmylchreest/specagent/cmd/specagent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
