// Package index builds a read-only symbol index of a project with
// tree-sitter. Reviewers' feedback often names a function or type that the
// generating agent never saw; the index lets the pipeline append those
// declarations to the next round's context.
package index

import (
	"path/filepath"
	"strings"
)

// Language identifies a grammar.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// Languages lists every supported grammar.
var Languages = []Language{LangGo, LangTypeScript, LangPython, LangRust}

var extLanguages = map[string]Language{
	".go": LangGo,
	".ts": LangTypeScript,
	".py": LangPython,
	".rs": LangRust,
}

// LanguageFor returns the grammar for path by extension.
func LanguageFor(path string) (Language, bool) {
	if strings.HasSuffix(path, ".d.ts") {
		return "", false
	}
	l, ok := extLanguages[filepath.Ext(path)]
	return l, ok
}

// ParseLanguages converts configured names, ignoring unknown ones.
func ParseLanguages(names []string) []Language {
	var out []Language
	for _, n := range names {
		for _, l := range Languages {
			if strings.EqualFold(n, string(l)) {
				out = append(out, l)
			}
		}
	}
	return out
}

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindType      SymbolKind = "type"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindClass     SymbolKind = "class"
	KindEnum      SymbolKind = "enum"
)

// Symbol is one named declaration.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Receiver  string     `json:"receiver,omitempty"` // owning type of a method
	Signature string     `json:"signature"`          // declaration header, whitespace collapsed
	Exported  bool       `json:"exported"`
	File      string     `json:"file"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
}

// QualifiedName returns Receiver.Name for methods and Name otherwise.
func (s Symbol) QualifiedName() string {
	if s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// File describes one parsed source file.
type File struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Package  string   `json:"package,omitempty"`
	LOC      int      `json:"loc"`
	Imports  []string `json:"imports,omitempty"`
}

// ParseResult is everything extracted from one file.
type ParseResult struct {
	File    File
	Symbols []Symbol

	// Markers are Go build constraints, //go: directives and Deprecated notes.
	Markers []string

	// HasError is set when the grammar had to recover from a syntax error.
	HasError bool
}

// Stats summarizes a snapshot.
type Stats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
}
