package index

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type goExtractor struct{}

func (goExtractor) extract(root *tree_sitter.Node, source []byte, res *ParseResult) {
	cursor := root.Walk()
	defer cursor.Close()

	walk(cursor, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "package_clause":
			for i := uint(0); i < node.NamedChildCount(); i++ {
				if c := node.NamedChild(i); c != nil && c.Kind() == "package_identifier" {
					res.File.Package = c.Utf8Text(source)
				}
			}
			return false

		case "import_spec":
			if path := node.ChildByFieldName("path"); path != nil {
				if p := trimQuotes(path.Utf8Text(source)); p != "" {
					res.File.Imports = append(res.File.Imports, p)
				}
			}
			return false

		case "function_declaration":
			if sym, ok := symbolAt(node, source, KindFunction); ok {
				res.add(sym, isGoExported(sym.Name))
			}
			return false

		case "method_declaration":
			if sym, ok := symbolAt(node, source, KindMethod); ok {
				if recv := node.ChildByFieldName("receiver"); recv != nil {
					sym.Receiver = goReceiverBase(recv.Utf8Text(source))
				}
				res.add(sym, isGoExported(sym.Name))
			}
			return false

		case "type_spec", "type_alias":
			kind := KindType
			if t := node.ChildByFieldName("type"); t != nil {
				switch t.Kind() {
				case "struct_type":
					kind = KindStruct
				case "interface_type":
					kind = KindInterface
				}
			}
			if sym, ok := symbolAt(node, source, kind); ok {
				sym.Signature = "type " + sym.Signature
				res.add(sym, isGoExported(sym.Name))
			}
			return false

		case "comment":
			if m := goMarker(node.Utf8Text(source)); m != "" {
				res.Markers = append(res.Markers, m)
			}
			return false
		}
		return true
	})
}

func (res *ParseResult) add(sym Symbol, exported bool) {
	sym.Exported = exported
	sym.File = res.File.Path
	res.Symbols = append(res.Symbols, sym)
}

// goReceiverBase reduces "(c *Cache[K, V])" to "Cache".
func goReceiverBase(recv string) string {
	recv = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(recv, "("), ")"))
	if i := strings.IndexByte(recv, '['); i >= 0 {
		recv = recv[:i]
	}
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[len(fields)-1], "*")
}

// goMarker returns the comment text when it is a build constraint, a
// compiler directive or a deprecation note.
func goMarker(comment string) string {
	text := strings.TrimSpace(comment)
	switch {
	case strings.HasPrefix(text, "//go:"), strings.HasPrefix(text, "// +build"):
		return text
	case strings.Contains(text, "Deprecated:"):
		text = strings.TrimSpace(strings.TrimPrefix(text, "//"))
		return text[strings.Index(text, "Deprecated:"):]
	}
	return ""
}

func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
