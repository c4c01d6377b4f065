package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/testweave/internal/synth"
)

// FileWriter writes artifacts to root/<package path>/<snake(type)>_test.go.
type FileWriter struct{}

// Write creates the package directory when needed and overwrites any
// previous suite file.
func (FileWriter) Write(ctx context.Context, a synth.Artifact, root string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(root, filepath.FromSlash(a.PackagePath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: write: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, a.FileName())
	if err := os.WriteFile(path, []byte(a.Body), 0o644); err != nil {
		return "", fmt.Errorf("pipeline: write %s: %w", path, err)
	}
	return path, nil
}
