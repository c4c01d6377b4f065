package index

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type tsExtractor struct{}

var tsKinds = map[string]SymbolKind{
	"function_declaration":   KindFunction,
	"class_declaration":      KindClass,
	"interface_declaration":  KindInterface,
	"type_alias_declaration": KindType,
	"enum_declaration":       KindEnum,
}

func (tsExtractor) extract(root *tree_sitter.Node, source []byte, res *ParseResult) {
	cursor := root.Walk()
	defer cursor.Close()

	walk(cursor, func(node *tree_sitter.Node) bool {
		switch k := node.Kind(); k {
		case "import_statement":
			if src := node.ChildByFieldName("source"); src != nil {
				res.File.Imports = append(res.File.Imports, trimQuotes(src.Utf8Text(source)))
			}
			return false

		case "method_definition":
			if sym, ok := symbolAt(node, source, KindMethod); ok {
				sym.Receiver = tsOwner(node, source)
				res.add(sym, !tsPrivate(node, source))
			}
			return false

		case "lexical_declaration":
			exported := tsExported(node)
			for i := uint(0); i < node.NamedChildCount(); i++ {
				d := node.NamedChild(i)
				if d == nil || d.Kind() != "variable_declarator" {
					continue
				}
				if v := d.ChildByFieldName("value"); v == nil || v.Kind() != "arrow_function" {
					continue
				}
				if sym, ok := symbolAt(d, source, KindFunction); ok {
					res.add(sym, exported)
				}
			}
			return false

		default:
			kind, ok := tsKinds[k]
			if !ok {
				return true
			}
			if sym, ok := symbolAt(node, source, kind); ok {
				res.add(sym, tsExported(node))
			}
			// Class bodies hold methods.
			return kind == KindClass
		}
	})
}

func tsExported(node *tree_sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

func tsPrivate(node *tree_sitter.Node, source []byte) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c != nil && c.Kind() == "accessibility_modifier" {
			return c.Utf8Text(source) == "private"
		}
	}
	return false
}

func tsOwner(node *tree_sitter.Node, source []byte) string {
	body := node.Parent()
	if body == nil || body.Kind() != "class_body" {
		return ""
	}
	class := body.Parent()
	if class == nil {
		return ""
	}
	if name := class.ChildByFieldName("name"); name != nil {
		return name.Utf8Text(source)
	}
	return ""
}
