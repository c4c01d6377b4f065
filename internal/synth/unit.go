package synth

import (
	"go/ast"
	"go/format"
	"go/token"
	"strconv"
	"strings"
)

// unit is the mutable merge model of one Go file. Declarations are kept as
// source text sliced from the file they were parsed from, so comments and
// formatting inside them survive the merge.
type unit struct {
	header string // everything before the package clause: build tags, file doc
	pkg    string

	imports []importSpec
	paths   map[string]bool

	decls []*decl
	types map[string]*typeDecl
	funcs  map[string]bool // receiver base + "." + name; "" receiver for free functions
	values map[string]bool // package-level var and const names
}

// decl is one top-level declaration in output order.
type decl struct {
	text string
	typ  *typeDecl // non-nil for type specs, rendered from the live model
}

type typeKind int

const (
	kindOther typeKind = iota
	kindStruct
	kindInterface
)

type typeDecl struct {
	name   string
	kind   typeKind
	doc    string
	header string // name, type parameters and any alias marker
	text   string // whole spec, kindOther only

	elems  []string // element source text
	fields []fieldInfo
	names  map[string]bool
}

func (t *typeDecl) render() string {
	var b strings.Builder
	b.WriteString(t.doc)
	b.WriteString("type ")
	switch t.kind {
	case kindStruct, kindInterface:
		b.WriteString(t.header)
		if t.kind == kindStruct {
			b.WriteString("struct {\n")
		} else {
			b.WriteString("interface {\n")
		}
		for _, e := range t.elems {
			b.WriteString(e)
			b.WriteByte('\n')
		}
		b.WriteString("}")
	default:
		b.WriteString(t.text)
	}
	return b.String()
}

// mergeStats counts what one absorb call did.
type mergeStats struct {
	added   int
	dropped []string // qualified names of members lost to an existing one
}

func newUnit(pkg string) *unit {
	return &unit{
		pkg:   pkg,
		paths: make(map[string]bool),
		types: make(map[string]*typeDecl),
		funcs:  make(map[string]bool),
		values: make(map[string]bool),
	}
}

// source pairs a parsed file with the text it was parsed from.
type source struct {
	text string
	fset *token.FileSet
	file *ast.File
}

func (s source) offset(p token.Pos) int {
	return s.fset.Position(p).Offset
}

// slice returns the source text between two positions.
func (s source) slice(from, to token.Pos) string {
	return s.text[s.offset(from):s.offset(to)]
}

// loadTarget seeds the unit from the target file. Every declaration is kept;
// duplicate names in the target are registered but never dropped.
func loadTarget(src source) *unit {
	u := newUnit(src.file.Name.Name)
	u.header = src.text[:src.offset(src.file.Package)]
	u.addImports(fileImports(src.file))
	u.absorb(src, true)
	return u
}

func (u *unit) addImports(specs []importSpec) {
	for _, s := range specs {
		if s.Path == "" || u.paths[s.Path] {
			continue
		}
		u.paths[s.Path] = true
		u.imports = append(u.imports, s)
	}
}

// absorb folds the declarations of src into the unit. With keepAll set no
// member is deduplicated.
func (u *unit) absorb(src source, keepAll bool) mergeStats {
	var st mergeStats
	for _, d := range src.file.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			u.absorbFunc(src, d, keepAll, &st)
		case *ast.GenDecl:
			switch d.Tok {
			case token.IMPORT:
				// Collected through fileImports.
			case token.TYPE:
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					doc := ts.Doc
					if doc == nil && !d.Lparen.IsValid() {
						doc = d.Doc
					}
					u.absorbType(src, ts, doc, keepAll, &st)
				}
			case token.VAR, token.CONST:
				u.absorbValues(src, d, keepAll, &st)
			}
		}
	}
	return st
}

// absorbValues adds the var or const specs of d whose names are new. Blank
// names never collide. A group that loses some specs is re-emitted with the
// rest, except const groups with implicit repetition, which stand or fall
// together.
func (u *unit) absorbValues(src source, d *ast.GenDecl, keepAll bool, st *mergeStats) {
	var keep []*ast.ValueSpec
	implicit := false
	var lost []string
	for _, spec := range d.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		if len(vs.Values) == 0 && vs.Type == nil {
			implicit = true
		}
		if keepAll || !u.valueTaken(vs) {
			keep = append(keep, vs)
			continue
		}
		for _, n := range vs.Names {
			if n.Name != "_" {
				lost = append(lost, n.Name)
			}
		}
	}
	if len(lost) > 0 && implicit && d.Tok == token.CONST {
		for _, vs := range keep {
			for _, n := range vs.Names {
				if n.Name != "_" {
					lost = append(lost, n.Name)
				}
			}
		}
		keep = nil
	}
	st.dropped = append(st.dropped, lost...)
	if len(keep) == 0 {
		return
	}

	var text string
	if len(keep) == len(d.Specs) {
		text = src.slice(declStart(d.Doc, d.Pos()), d.End())
	} else {
		var b strings.Builder
		b.WriteString(d.Tok.String())
		b.WriteString(" (\n")
		for _, vs := range keep {
			b.WriteString(src.slice(declStart(vs.Doc, vs.Pos()), vs.End()))
			b.WriteByte('\n')
		}
		b.WriteString(")")
		text = b.String()
	}
	for _, vs := range keep {
		for _, n := range vs.Names {
			if n.Name != "_" {
				u.values[n.Name] = true
			}
		}
	}
	u.decls = append(u.decls, &decl{text: text})
	st.added++
}

// valueTaken reports whether a non-blank name of vs is already declared at
// package scope.
func (u *unit) valueTaken(vs *ast.ValueSpec) bool {
	for _, n := range vs.Names {
		if n.Name == "_" {
			continue
		}
		if u.values[n.Name] || u.funcs["."+n.Name] || u.types[n.Name] != nil {
			return true
		}
	}
	return false
}

func (u *unit) absorbFunc(src source, fd *ast.FuncDecl, keepAll bool, st *mergeStats) {
	name := fd.Name.Name
	recv := receiverBase(fd)
	key := recv + "." + name
	repeatable := recv == "" && (name == "init" || name == "_")

	if !keepAll && !repeatable && u.funcs[key] {
		st.dropped = append(st.dropped, strings.TrimPrefix(key, "."))
		return
	}
	u.funcs[key] = true
	u.decls = append(u.decls, &decl{text: src.slice(declStart(fd.Doc, fd.Pos()), fd.End())})
	st.added++
}

func (u *unit) absorbType(src source, ts *ast.TypeSpec, doc *ast.CommentGroup, keepAll bool, st *mergeStats) {
	name := ts.Name.Name
	incoming := newTypeDecl(src, ts, doc)

	existing, ok := u.types[name]
	if !ok || keepAll {
		if !ok {
			u.types[name] = incoming
		}
		u.decls = append(u.decls, &decl{typ: incoming})
		st.added++
		return
	}

	// Same-named type: recurse into its elements.
	if existing.kind == kindOther || existing.kind != incoming.kind {
		st.dropped = append(st.dropped, name)
		return
	}
	for i, field := range incoming.fields {
		elem := incoming.elems[i]
		var fresh []string
		for _, n := range field.names {
			if !existing.names[n] {
				fresh = append(fresh, n)
			}
		}
		for _, n := range field.names {
			if !contains(fresh, n) {
				st.dropped = append(st.dropped, name+"."+n)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		if len(fresh) < len(field.names) {
			elem = strings.Join(fresh, ", ") + " " + field.typeText
			field = fieldInfo{names: fresh, typeText: field.typeText}
		}
		for _, n := range fresh {
			existing.names[n] = true
		}
		existing.fields = append(existing.fields, field)
		existing.elems = append(existing.elems, elem)
		st.added++
	}
}

// newTypeDecl captures a type spec. Struct and interface element lists are
// kept per element so later merges can extend them.
func newTypeDecl(src source, ts *ast.TypeSpec, doc *ast.CommentGroup) *typeDecl {
	td := &typeDecl{name: ts.Name.Name, names: make(map[string]bool)}
	if doc != nil {
		td.doc = src.slice(doc.Pos(), doc.End()) + "\n"
	}

	var (
		list    *ast.FieldList
		keyword token.Pos
	)
	switch t := ts.Type.(type) {
	case *ast.StructType:
		td.kind, list, keyword = kindStruct, t.Fields, t.Struct
	case *ast.InterfaceType:
		td.kind, list, keyword = kindInterface, t.Methods, t.Interface
	}
	if list == nil {
		td.kind = kindOther
		td.text = src.slice(ts.Pos(), ts.End())
		return td
	}

	td.header = src.slice(ts.Name.Pos(), keyword)
	td.fields = make([]fieldInfo, 0, len(list.List))
	for _, f := range list.List {
		start := declStart(f.Doc, f.Pos())
		end := f.End()
		if f.Comment != nil {
			end = f.Comment.End()
		}
		info := fieldInfo{names: fieldNames(src, f)}
		if len(f.Names) > 0 {
			info.typeText = src.slice(f.Type.Pos(), f.End())
		}
		for _, n := range info.names {
			td.names[n] = true
		}
		td.fields = append(td.fields, info)
		td.elems = append(td.elems, src.slice(start, end))
	}
	return td
}

// fieldInfo remembers how to rebuild an element when only some of its names
// survive deduplication.
type fieldInfo struct {
	names    []string
	typeText string // type and tag, for named fields
}

// fieldNames returns the names a field declares. An embedded field is named
// after its base type; an interface union element is named by its text.
func fieldNames(src source, f *ast.Field) []string {
	if len(f.Names) > 0 {
		out := make([]string, len(f.Names))
		for i, n := range f.Names {
			out[i] = n.Name
		}
		return out
	}
	if name := baseTypeName(f.Type); name != "" {
		return []string{name}
	}
	return []string{strings.Join(strings.Fields(src.slice(f.Type.Pos(), f.Type.End())), " ")}
}

func declStart(doc *ast.CommentGroup, pos token.Pos) token.Pos {
	if doc != nil {
		return doc.Pos()
	}
	return pos
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// render produces the unit's source text. The text is formatted with
// go/format; the unformatted text is returned alongside any format error.
func (u *unit) render() (string, error) {
	var b strings.Builder
	b.WriteString(u.header)
	b.WriteString("package ")
	b.WriteString(u.pkg)
	b.WriteString("\n\n")

	if len(u.imports) > 0 {
		// Standard library first, then everything else, as goimports groups them.
		var std, other []importSpec
		for _, imp := range u.imports {
			if isStdlib(imp.Path) {
				std = append(std, imp)
			} else {
				other = append(other, imp)
			}
		}
		b.WriteString("import (\n")
		writeImports(&b, std)
		if len(std) > 0 && len(other) > 0 {
			b.WriteByte('\n')
		}
		writeImports(&b, other)
		b.WriteString(")\n\n")
	}

	for _, d := range u.decls {
		if d.typ != nil {
			b.WriteString(d.typ.render())
		} else {
			b.WriteString(d.text)
		}
		b.WriteString("\n\n")
	}

	raw := b.String()
	out, err := format.Source([]byte(raw))
	if err != nil {
		return raw, err
	}
	return string(out), nil
}

func writeImports(b *strings.Builder, specs []importSpec) {
	for _, imp := range specs {
		b.WriteByte('\t')
		if imp.Name != "" {
			b.WriteString(imp.Name)
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Quote(imp.Path))
		b.WriteByte('\n')
	}
}

// isStdlib reports whether an import path belongs to the standard library:
// its first element has no dot.
func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

// importStrings returns the unit's imports in `path` / `name path` form.
func (u *unit) importStrings() []string {
	out := make([]string, len(u.imports))
	for i, imp := range u.imports {
		out[i] = imp.String()
	}
	return out
}
