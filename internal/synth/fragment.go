// Package synth is the structural code synthesis engine: it extracts Go code
// from free-form generation output, checks it against an ordered ladder of
// parse attempts, and merges fragments into an assembled test suite.
package synth

import (
	"strings"
)

// Granularity records which parse attempt accepted a piece of text.
type Granularity int

const (
	GranularityNone Granularity = iota
	GranularityFile
	GranularityDecls
	GranularityStmts
	GranularityExpr
	GranularityBlock

	// GranularityRaw marks labeled text that no parse attempt accepted but
	// that is passed on unparsed for tolerant consumers.
	GranularityRaw
)

func (g Granularity) String() string {
	names := [...]string{
		"none",
		"file",
		"decls",
		"stmts",
		"expr",
		"block",
		"raw",
	}
	if int(g) >= 0 && int(g) < len(names) {
		return names[g]
	}
	return "unknown"
}

// Structural reports whether the text parsed into declarations that the merge
// engine can consume.
func (g Granularity) Structural() bool {
	return g == GranularityFile || g == GranularityDecls
}

// ExtractSource identifies which extraction strategy produced a fragment body.
type ExtractSource string

const (
	SourceNone     ExtractSource = ""
	SourceEnvelope ExtractSource = "envelope"
	SourceFence    ExtractSource = "fence"
	SourceRaw      ExtractSource = "raw"
)

// Labeled reports whether the text came from an explicit envelope label or a
// fenced block.
func (s ExtractSource) Labeled() bool {
	return s == SourceEnvelope || s == SourceFence
}

// Fragment is a partial, unassembled unit of generated code. It lives for one
// generation attempt.
type Fragment struct {
	Package  string   // package clause, when the text carried one
	TypeName string   // first declared type or method receiver
	Imports  []string // import specs: `path` or `name path`
	Body     string   // normalized code text
	Target   string   // member or scenario this fragment was generated for

	Source      ExtractSource
	Granularity Granularity
}

// Empty reports whether the fragment carries no code. Callers treat an empty
// fragment as "nothing to merge".
func (f Fragment) Empty() bool {
	return strings.TrimSpace(f.Body) == ""
}

// Artifact is the assembled test suite for one source unit. It is owned by a
// single pipeline run until persisted.
type Artifact struct {
	Package     string   // Go package name
	PackagePath string   // slash-separated directory relative to the project root
	TypeName    string   // top-level suite type
	Imports     []string // merged import specs, sorted
	Body        string   // gofmt'd source
}

// QualifiedName returns the package-path-qualified suite type name, for
// example "internal/calc.CalculatorSuite".
func (a Artifact) QualifiedName() string {
	pkg := a.PackagePath
	if pkg == "" {
		pkg = a.Package
	}
	if pkg == "" {
		return a.TypeName
	}
	return pkg + "." + a.TypeName
}

// importSpec is one import line.
type importSpec struct {
	Name string // explicit alias, "" when absent
	Path string
}

func (s importSpec) String() string {
	if s.Name == "" {
		return s.Path
	}
	return s.Name + " " + s.Path
}

// localName is the identifier the import binds in file scope.
func (s importSpec) localName() string {
	if s.Name != "" {
		return s.Name
	}
	p := s.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	// Major version suffixes bind the preceding element.
	if len(p) > 1 && p[0] == 'v' && strings.Trim(p[1:], "0123456789") == "" {
		trimmed := strings.TrimSuffix(s.Path, "/"+p)
		if i := strings.LastIndex(trimmed, "/"); i >= 0 {
			return trimmed[i+1:]
		}
		return trimmed
	}
	return p
}

// parseImportSpec reads the `path` or `name path` form produced by
// importSpec.String. Quotes are tolerated.
func parseImportSpec(s string) importSpec {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return importSpec{}
	case 1:
		return importSpec{Path: strings.Trim(fields[0], "\"`")}
	default:
		return importSpec{Name: fields[0], Path: strings.Trim(fields[1], "\"`")}
	}
}
