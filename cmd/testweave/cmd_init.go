package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/testweave/internal/scaffold"
)

var initFlags struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter testweave.yml and register the MCP server",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "overwrite existing files and entries")
}

func runInit(cmd *cobra.Command, _ []string) error {
	root, err := filepath.Abs(rootFlags.projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	steps, err := scaffold.Install(root, initFlags.force)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range steps {
		if s.Action == scaffold.Skipped {
			fmt.Fprintf(out, "  skipped ./%s (exists, use --force to overwrite)\n", s.Path)
			continue
		}
		fmt.Fprintf(out, "  %s ./%s\n", s.Action, s.Path)
	}
	fmt.Fprintln(out, "\nSetup complete. Set OPENAI_API_KEY or edit the providers, then run 'testweave generate <file.go>'.")
	return nil
}
