//go:build !cgo

package main

import (
	"context"
	"errors"

	"github.com/dusk-indust/testweave/internal/index"
)

func saveSnapshot(context.Context, string, *index.Snapshot) error {
	return errors.New("index persistence needs a cgo build")
}

func loadSnapshot(context.Context, string) (*index.Snapshot, error) {
	return nil, errors.New("index persistence needs a cgo build")
}
