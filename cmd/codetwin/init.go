package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avolkov/codetwin/internal/config"
	"github.com/avolkov/codetwin/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .codetwin configuration and set up graph constraints",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := config.FindRepoRoot(cwd)
	if err != nil {
		return err
	}

	path, err := config.Init(root)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration: %s\n", path)

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := connect(ctx, cfg)
	if err != nil {
		color.Yellow("Could not reach Neo4j at %s: %v", cfg.Neo4j.URI, err)
		color.Yellow("Edit %s and run 'codetwin init' again to set up the schema.", path)
		return nil
	}
	defer client.Close()

	if err := db.SetupSchema(ctx, client, cfg.Embedding.Dimensions); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}
	color.Green("Graph constraints and indexes ready (%d-dim vectors).", cfg.Embedding.Dimensions)
	fmt.Println("Next: codetwin index")
	return nil
}
