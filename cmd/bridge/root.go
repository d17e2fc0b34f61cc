// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Command bridge is the CLI entry point: `serve` runs the pipeline plus
// the §6 HTTP surface, `profile` manages the C13 API-key/profile store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Agent orchestration bridge between a graph-editing UI and an LLM agent",
	Long: `bridge runs the Goal -> Task -> Patch -> Review -> Commit pipeline that
lets an LLM agent propose changes to a UI's graphs via typed tools, and
manages the provider profiles the agent authenticates with.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
}
