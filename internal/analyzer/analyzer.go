// Package analyzer turns a Go source file into a SourceUnit, the read-only
// description of the code under test that every generation prompt is built
// from, and plans the behaviors worth testing.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/testweave/internal/index"
)

// ErrUnparsable is returned when a source file has no usable syntax tree.
var ErrUnparsable = errors.New("analyzer: source is unparsable")

// Kind classifies what a unit declares.
type Kind string

const (
	KindStruct    Kind = "struct"
	KindInterface Kind = "interface"
	KindFunctions Kind = "functions"
	KindMixed     Kind = "mixed"
)

// Member is one function or method of the unit.
type Member struct {
	Name      string
	Receiver  string
	Signature string
	Exported  bool
}

// QualifiedName returns Receiver.Name for methods.
func (m Member) QualifiedName() string {
	if m.Receiver != "" {
		return m.Receiver + "." + m.Name
	}
	return m.Name
}

// SourceUnit describes one Go source file. It is never modified after
// Analyze returns it.
type SourceUnit struct {
	Path     string // as given to Analyze
	Dir      string // slash-separated package directory relative to the root
	Package  string
	TypeName string
	Kind     Kind
	Members  []Member
	Imports  []string
	Markers  []string
}

// Signatures lists every member signature.
func (u *SourceUnit) Signatures() []string {
	out := make([]string, len(u.Members))
	for i, m := range u.Members {
		out[i] = m.Signature
	}
	return out
}

// Member returns the member with the given name or qualified name.
func (u *SourceUnit) Member(name string) (Member, bool) {
	for _, m := range u.Members {
		if m.Name == name || m.QualifiedName() == name {
			return m, true
		}
	}
	return Member{}, false
}

// Exported returns the exported members, or every member when none is
// exported.
func (u *SourceUnit) Exported() []Member {
	var out []Member
	for _, m := range u.Members {
		if m.Exported {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return append([]Member(nil), u.Members...)
	}
	return out
}

// GoAnalyzer extracts SourceUnits with the tree-sitter Go grammar.
type GoAnalyzer struct {
	parser *index.Parser
	root   string
}

// NewGoAnalyzer creates an analyzer. root is the project root that unit
// directories are made relative to; an empty root uses the path as given.
func NewGoAnalyzer(root string) *GoAnalyzer {
	return &GoAnalyzer{parser: index.NewParser(), root: root}
}

// Analyze parses source, the content of the file at p.
func (a *GoAnalyzer) Analyze(ctx context.Context, p, source string) (*SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnparsable, p)
	}
	res, err := a.parser.Parse(ctx, p, []byte(source), index.LangGo)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnparsable, p, err)
	}
	if res.HasError {
		return nil, fmt.Errorf("%w: %s has syntax errors", ErrUnparsable, p)
	}
	if res.File.Package == "" {
		return nil, fmt.Errorf("%w: %s has no package clause", ErrUnparsable, p)
	}

	u := &SourceUnit{
		Path:    p,
		Dir:     a.relDir(p),
		Package: res.File.Package,
		Imports: append([]string(nil), res.File.Imports...),
		Markers: append([]string(nil), res.Markers...),
	}

	types := make(map[string]index.SymbolKind)
	var order []string
	methods := make(map[string]int)
	free := 0
	for _, sym := range res.Symbols {
		switch sym.Kind {
		case index.KindFunction, index.KindMethod:
			u.Members = append(u.Members, Member{
				Name:      sym.Name,
				Receiver:  sym.Receiver,
				Signature: sym.Signature,
				Exported:  sym.Exported,
			})
			if sym.Receiver != "" {
				methods[sym.Receiver]++
			} else if sym.Exported && !strings.HasPrefix(sym.Name, "New") {
				free++
			}
		default:
			if _, ok := types[sym.Name]; !ok {
				order = append(order, sym.Name)
			}
			types[sym.Name] = sym.Kind
		}
	}

	u.TypeName, u.Kind = primaryType(order, types, methods, free)
	if u.TypeName == "" {
		u.TypeName = typeNameFromFile(p)
	}
	return u, nil
}

// primaryType picks the declared type with the most methods, preferring
// exported types and then declaration order. free counts exported functions
// other than constructors. A file without types is a set of functions.
func primaryType(order []string, types map[string]index.SymbolKind, methods map[string]int, free int) (string, Kind) {
	if len(order) == 0 {
		return "", KindFunctions
	}
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ei, ej := isExported(ranked[i]), isExported(ranked[j])
		if ei != ej {
			return ei
		}
		return methods[ranked[i]] > methods[ranked[j]]
	})
	name := ranked[0]
	if methods[name] == 0 && free > 0 {
		return name, KindFunctions
	}

	kind := KindStruct
	if types[name] == index.KindInterface {
		kind = KindInterface
	}
	if free > 0 {
		kind = KindMixed
	}
	return name, kind
}

func (a *GoAnalyzer) relDir(p string) string {
	dir := filepath.Dir(p)
	if a.root != "" {
		if rel, err := filepath.Rel(a.root, dir); err == nil && !strings.HasPrefix(rel, "..") {
			dir = rel
		}
	}
	dir = filepath.ToSlash(dir)
	if dir == "." {
		return ""
	}
	return dir
}

// typeNameFromFile derives an exported name from the file name:
// "string_utils.go" becomes "StringUtils".
func typeNameFromFile(p string) string {
	base := strings.TrimSuffix(path.Base(filepath.ToSlash(p)), ".go")
	var b strings.Builder
	upper := true
	for _, r := range base {
		if r == '_' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Unit"
	}
	return b.String()
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
