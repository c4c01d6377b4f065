package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/testweave/internal/config"
	"github.com/dusk-indust/testweave/internal/export"
	"github.com/dusk-indust/testweave/internal/index"
)

var indexFlags struct {
	save    bool
	mermaid bool
	query   string
	limit   int
}

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build the symbol index used to ground reviewer feedback",
	Long: `Parses the project with tree-sitter (Go, TypeScript, Python, Rust) and reports
what was indexed. With --save the snapshot is persisted to the configured
Kuzu database; --mermaid prints the directory import graph instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	f := indexCmd.Flags()
	f.BoolVar(&indexFlags.save, "save", false, "persist the snapshot to the Kuzu database")
	f.BoolVar(&indexFlags.mermaid, "mermaid", false, "print the import graph as a Mermaid diagram")
	f.StringVar(&indexFlags.query, "query", "", "print symbols whose name contains this text")
	f.IntVar(&indexFlags.limit, "limit", 20, "maximum symbols printed by --query")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	dir := a.root
	if len(args) == 1 {
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}

	b := index.NewBuilder(
		index.WithLanguages(index.ParseLanguages(a.cfg.Index.Languages)...),
		index.WithExcludes(a.cfg.Index.Excludes...),
		index.WithLogger(a.logger),
	)
	snap, err := b.Build(ctx, dir)
	if err != nil {
		return fmt.Errorf("index %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	if indexFlags.mermaid {
		fmt.Fprint(out, export.ImportDiagram(snap))
		return nil
	}

	st := snap.Stats()
	fmt.Fprintf(out, "Indexed %s: %d files, %d symbols\n", dir, st.Files, st.Symbols)

	if indexFlags.query != "" {
		for _, s := range snap.Search(indexFlags.query, indexFlags.limit) {
			fmt.Fprintf(out, "  %-9s %-40s %s:%d\n", s.Kind, s.QualifiedName(), s.File, s.StartLine)
		}
	}

	if indexFlags.save {
		path := config.Resolve(a.root, a.cfg.Index.KuzuPath)
		if err := saveSnapshot(ctx, path, snap); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved to %s\n", path)
	}
	return nil
}
