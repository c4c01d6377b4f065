package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return NewSnapshot("/proj", []File{
		{Path: "b.go", Language: LangGo},
		{Path: "a.go", Language: LangGo},
	}, []Symbol{
		{Name: "Get", Kind: KindMethod, Receiver: "Store", Signature: "func (s *Store) Get(sku string) (Item, error)", File: "b.go", StartLine: 20},
		{Name: "Store", Kind: KindStruct, Signature: "type Store struct { items map[string]Item }", File: "b.go", StartLine: 5},
		{Name: "Get", Kind: KindFunction, Signature: "func Get() int", File: "a.go", StartLine: 3},
		{Name: "Item", Kind: KindStruct, Signature: "type Item struct { SKU string }", File: "a.go", StartLine: 9},
	})
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

func TestSnapshot_Lookup(t *testing.T) {
	s := sampleSnapshot()

	gets := s.Lookup("Get")
	require.Len(t, gets, 2)
	assert.Equal(t, "a.go", gets[0].File)
	assert.Equal(t, "b.go", gets[1].File)

	m := s.Lookup("Store.Get")
	require.Len(t, m, 1)
	assert.Equal(t, KindMethod, m[0].Kind)

	assert.Empty(t, s.Lookup("Missing"))
}

func TestSnapshot_OrderAndCopies(t *testing.T) {
	s := sampleSnapshot()
	files := s.Files()
	assert.Equal(t, "a.go", files[0].Path)

	files[0].Path = "mutated"
	assert.Equal(t, "a.go", s.Files()[0].Path)

	assert.Equal(t, Stats{Files: 2, Symbols: 4}, s.Stats())
	assert.Equal(t, "/proj", s.Root())
}

func TestSnapshot_Search(t *testing.T) {
	s := sampleSnapshot()
	assert.Len(t, s.Search("st", 0), 1)
	assert.Len(t, s.Search("GET", 0), 2)
	assert.Len(t, s.Search("e", 1), 1)
}

func TestHolder_ConcurrentSwap(t *testing.T) {
	var h Holder
	assert.Nil(t, h.Load())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Store(sampleSnapshot())
		}()
		go func() {
			defer wg.Done()
			if s := h.Load(); s != nil {
				assert.Equal(t, 4, s.Stats().Symbols)
			}
		}()
	}
	wg.Wait()
	require.NotNil(t, h.Load())
}

// ---------------------------------------------------------------------------
// Retriever
// ---------------------------------------------------------------------------

func TestRetriever_AppendsMentionedSymbols(t *testing.T) {
	var h Holder
	h.Store(sampleSnapshot())
	r := NewRetriever(&h, 0)

	out, err := r.Augment(context.Background(), "the test should use Store.Get and check Item", "base")
	require.NoError(t, err)
	assert.Contains(t, out, "base\n\n// Declarations referenced by the review:")
	assert.Contains(t, out, "// b.go:20\nfunc (s *Store) Get(sku string) (Item, error)")
	assert.Contains(t, out, "type Item struct { SKU string }")
	assert.NotContains(t, out, "func Get() int")
}

func TestRetriever_SkipsKnownSignatures(t *testing.T) {
	var h Holder
	h.Store(sampleSnapshot())
	r := NewRetriever(&h, 0)

	bg := "type Item struct { SKU string }"
	out, err := r.Augment(context.Background(), "Item", bg)
	require.NoError(t, err)
	assert.Equal(t, bg, out)
}

func TestRetriever_Limit(t *testing.T) {
	var h Holder
	h.Store(sampleSnapshot())
	out, err := NewRetriever(&h, 1).Augment(context.Background(), "Get Item Store", "")
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(out, "\n// "))
}

func TestRetriever_NoSnapshot(t *testing.T) {
	out, err := NewRetriever(&Holder{}, 0).Augment(context.Background(), "Store", "bg")
	require.NoError(t, err)
	assert.Equal(t, "bg", out)
}

func TestRetriever_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRetriever(&Holder{}, 0).Augment(ctx, "Store", "bg")
	assert.ErrorIs(t, err, context.Canceled)
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestBuilder_Build(t *testing.T) {
	root := writeTree(t, map[string]string{
		"calc/calc.go":          "package calc\n\nfunc Add(a, b int) int { return a + b }\n",
		"web/app.ts":            "export function render(): void {}\n",
		"vendor/dep/dep.go":     "package dep\n\nfunc Hidden() {}\n",
		".cache/x.go":           "package x\n\nfunc Dot() {}\n",
		"scripts/tool.py":       "def run():\n    pass\n",
		"README.md":             "# readme\n",
		"calc/testdata/fixt.go": "package fixt\n\nfunc Fixture() {}\n",
	})

	snap, err := NewBuilder(WithConcurrency(2)).Build(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, Stats{Files: 3, Symbols: 3}, snap.Stats())
	add := snap.Lookup("Add")
	require.Len(t, add, 1)
	assert.Equal(t, "calc/calc.go", add[0].File)
	assert.Empty(t, snap.Lookup("Hidden"))
	assert.Empty(t, snap.Lookup("Dot"))
	assert.Empty(t, snap.Lookup("Fixture"))
}

func TestBuilder_LanguagesAndExcludes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":     "package a\n\nfunc A() {}\n",
		"gen/b.go": "package gen\n\nfunc B() {}\n",
		"tool.py":  "def run():\n    pass\n",
	})

	snap, err := NewBuilder(WithLanguages(LangGo), WithExcludes("gen")).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Symbols: 1}, snap.Stats())
}

func TestBuilder_NotADirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	_, err := NewBuilder().Build(context.Background(), filepath.Join(root, "a.go"))
	assert.Error(t, err)

	_, err = NewBuilder().Build(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuilder_Canceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n\nfunc A() {}\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder().Build(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
