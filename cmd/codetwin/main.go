package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagDebug bool

var rootCmd = &cobra.Command{
	Use:           "codetwin",
	Short:         "Living structural and semantic graph of a source repository",
	Long:          "Codetwin parses source files with tree-sitter, extracts definitions, imports, calls and env usage into Neo4j, embeds code chunks for semantic search, and keeps the graph current as files and git history change.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(gitCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
