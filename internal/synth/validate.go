package synth

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// recoveryPackage names the synthetic package clause wrapped around text that
// lacks one.
const recoveryPackage = "recovered"

// parsed is the result of one successful parse attempt.
type parsed struct {
	granularity Granularity
	fset        *token.FileSet
	file        *ast.File // nil for expression-level parses
}

// parseAttempt is one independent rung of the parse ladder.
type parseAttempt struct {
	granularity Granularity
	parse       func(src string) (*token.FileSet, *ast.File, error)
}

// ladder is the fixed attempt order: whole file, declaration list, statement
// list, expression, brace block.
var ladder = []parseAttempt{
	{GranularityFile, parseWholeFile},
	{GranularityDecls, parseDeclList},
	{GranularityStmts, parseStmtList},
	{GranularityExpr, parseExpression},
	{GranularityBlock, parseBraceBlock},
}

// Detect returns the first granularity at which text parses, or
// GranularityNone.
func Detect(text string) Granularity {
	p := detect(text)
	if p == nil {
		return GranularityNone
	}
	return p.granularity
}

// Valid reports whether text is syntactically acceptable at any granularity.
func Valid(text string) bool {
	return Detect(text) != GranularityNone
}

func detect(text string) *parsed {
	if !hasCode(text) {
		return nil
	}
	for _, a := range ladder {
		fset, f, err := a.parse(text)
		if err == nil {
			return &parsed{granularity: a.granularity, fset: fset, file: f}
		}
	}
	return nil
}

// hasCode reports whether text contains anything besides whitespace and
// comments. Comment-only text parses trivially at the declaration level.
func hasCode(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "recovered.go", declListText(text), 0)
	if err != nil {
		// Unparsable text still counts; later rungs decide.
		return true
	}
	return len(f.Decls) > 0
}

func parseWholeFile(src string) (*token.FileSet, *ast.File, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "fragment.go", src, parser.ParseComments|parser.SkipObjectResolution)
	return fset, f, err
}

// declListText wraps text in a synthetic package clause.
func declListText(src string) string {
	return "package " + recoveryPackage + "\n\n" + src
}

func parseDeclList(src string) (*token.FileSet, *ast.File, error) {
	return parseWholeFile(declListText(src))
}

func parseStmtList(src string) (*token.FileSet, *ast.File, error) {
	return parseWholeFile("package " + recoveryPackage + "\n\nfunc _() {\n" + src + "\n}\n")
}

func parseExpression(src string) (*token.FileSet, *ast.File, error) {
	fset := token.NewFileSet()
	_, err := parser.ParseExprFrom(fset, "expr.go", src, 0)
	return fset, nil, err
}

func parseBraceBlock(src string) (*token.FileSet, *ast.File, error) {
	trimmed := strings.TrimSpace(src)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, nil, errNotBlock
	}
	return parseWholeFile("package " + recoveryPackage + "\n\nfunc _() " + trimmed + "\n")
}

// parseStructural parses text as a file, falling back to the declaration-list
// recovery parse. Only fragments go through here; targets are parsed strictly.
// The returned source holds the exact text that was parsed, so positions
// index into it.
func parseStructural(src string) (source, Granularity, error) {
	fset, f, err := parseWholeFile(src)
	if err == nil {
		return source{text: src, fset: fset, file: f}, GranularityFile, nil
	}
	wrapped := declListText(src)
	fset, f, rerr := parseWholeFile(wrapped)
	if rerr == nil {
		return source{text: wrapped, fset: fset, file: f}, GranularityDecls, nil
	}
	return source{}, GranularityNone, err
}

// fileImports lists the import specs of f in source order.
func fileImports(f *ast.File) []importSpec {
	out := make([]importSpec, 0, len(f.Imports))
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		spec := importSpec{Path: path}
		if imp.Name != nil {
			spec.Name = imp.Name.Name
		}
		out = append(out, spec)
	}
	return out
}

// primaryTypeName returns the first declared type name in f, falling back to
// the receiver type of the first method.
func primaryTypeName(f *ast.File) string {
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			if ts, ok := s.(*ast.TypeSpec); ok {
				return ts.Name.Name
			}
		}
	}
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Recv != nil {
			if name := receiverBase(fd); name != "" {
				return name
			}
		}
	}
	return ""
}

// receiverBase returns the base type name of a method receiver, or "" for a
// plain function.
func receiverBase(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	return baseTypeName(fd.Recv.List[0].Type)
}

// baseTypeName strips pointers, parentheses, type arguments and package
// qualifiers from a type expression.
func baseTypeName(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.Ident:
			return e.Name
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.SelectorExpr:
			return e.Sel.Name
		default:
			return ""
		}
	}
}
