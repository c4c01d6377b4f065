package index

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable symbol index. It is built once and then only
// read, so it may be shared by any number of pipeline runs.
type Snapshot struct {
	root    string
	built   time.Time
	files   []File
	symbols []Symbol
	byName  map[string][]int
}

// NewSnapshot indexes files and symbols. Symbols are ordered by file and
// line so lookups are deterministic.
func NewSnapshot(root string, files []File, symbols []Symbol) *Snapshot {
	fs := append([]File(nil), files...)
	sort.Slice(fs, func(i, j int) bool { return fs[i].Path < fs[j].Path })

	ss := append([]Symbol(nil), symbols...)
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].File != ss[j].File {
			return ss[i].File < ss[j].File
		}
		return ss[i].StartLine < ss[j].StartLine
	})

	byName := make(map[string][]int, len(ss))
	for i, s := range ss {
		byName[s.Name] = append(byName[s.Name], i)
		if s.Receiver != "" {
			q := s.QualifiedName()
			byName[q] = append(byName[q], i)
		}
	}
	return &Snapshot{root: root, built: time.Now(), files: fs, symbols: ss, byName: byName}
}

// Root returns the directory the snapshot was built from.
func (s *Snapshot) Root() string { return s.root }

// Built returns the build time.
func (s *Snapshot) Built() time.Time { return s.built }

// Files returns a copy of the indexed files.
func (s *Snapshot) Files() []File {
	return append([]File(nil), s.files...)
}

// Symbols returns a copy of every symbol.
func (s *Snapshot) Symbols() []Symbol {
	return append([]Symbol(nil), s.symbols...)
}

// Lookup returns the symbols named name. A "Type.Method" name matches the
// method on that receiver only.
func (s *Snapshot) Lookup(name string) []Symbol {
	idx := s.byName[name]
	out := make([]Symbol, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.symbols[i])
	}
	return out
}

// Search returns up to limit symbols whose name contains query, ignoring case.
func (s *Snapshot) Search(query string, limit int) []Symbol {
	q := strings.ToLower(query)
	var out []Symbol
	for _, sym := range s.symbols {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(sym.Name), q) {
			out = append(out, sym)
		}
	}
	return out
}

// Stats counts the snapshot's files and symbols.
func (s *Snapshot) Stats() Stats {
	return Stats{Files: len(s.files), Symbols: len(s.symbols)}
}

// Holder publishes the current snapshot. Readers always see a complete
// snapshot; a rebuild replaces it whole.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first Store.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store publishes s.
func (h *Holder) Store(s *Snapshot) {
	h.current.Store(s)
}
