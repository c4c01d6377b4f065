//go:build cgo

package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/testweave/internal/index"
)

func saveSnapshot(ctx context.Context, path string, snap *index.Snapshot) error {
	store, err := index.OpenKuzu(path)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer store.Close()
	return store.Save(ctx, snap)
}

func loadSnapshot(ctx context.Context, path string) (*index.Snapshot, error) {
	store, err := index.OpenKuzu(path)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}
	defer store.Close()
	return store.Load(ctx)
}
