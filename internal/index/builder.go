package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultExcludes are directory names never descended into.
var DefaultExcludes = []string{".git", "vendor", "node_modules", "testdata", "target", "__pycache__", "dist"}

// Builder walks a project and produces a Snapshot.
type Builder struct {
	parser      *Parser
	languages   map[Language]bool
	excludes    map[string]bool
	concurrency int
	logger      *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLanguages restricts indexing to langs. An empty list keeps all.
func WithLanguages(langs ...Language) BuilderOption {
	return func(b *Builder) {
		if len(langs) == 0 {
			return
		}
		b.languages = make(map[Language]bool, len(langs))
		for _, l := range langs {
			b.languages[l] = true
		}
	}
}

// WithExcludes adds directory names to skip.
func WithExcludes(names ...string) BuilderOption {
	return func(b *Builder) {
		for _, n := range names {
			b.excludes[n] = true
		}
	}
}

// WithConcurrency bounds the number of files parsed at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder for every supported language.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		parser:      NewParser(),
		languages:   make(map[Language]bool),
		excludes:    make(map[string]bool),
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
	}
	for _, l := range Languages {
		b.languages[l] = true
	}
	for _, n := range DefaultExcludes {
		b.excludes[n] = true
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build indexes root. Paths in the snapshot are slash-separated and relative
// to root. Files that fail to parse are logged and skipped.
func (b *Builder) Build(ctx context.Context, root string) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("index: %s is not a directory", root)
	}

	var (
		mu      sync.Mutex
		files   []File
		symbols []Symbol
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (b.excludes[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := LanguageFor(path)
		if !ok || !b.languages[lang] {
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("index: read %s: %w", rel, err)
			}
			res, err := b.parser.Parse(gctx, rel, src, lang)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("index: skipping file", zap.String("file", rel), zap.Error(err))
				return nil
			}
			mu.Lock()
			files = append(files, res.File)
			symbols = append(symbols, res.Symbols...)
			mu.Unlock()
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, fmt.Errorf("index: walk %s: %w", root, walkErr)
	}

	snap := NewSnapshot(root, files, symbols)
	st := snap.Stats()
	b.logger.Info("index: built",
		zap.String("root", root),
		zap.Int("files", st.Files),
		zap.Int("symbols", st.Symbols))
	return snap, nil
}
