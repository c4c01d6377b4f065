package index

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type rsExtractor struct{}

var rsKinds = map[string]SymbolKind{
	"function_item": KindFunction,
	"struct_item":   KindStruct,
	"enum_item":     KindEnum,
	"trait_item":    KindInterface,
	"type_item":     KindType,
}

func (rsExtractor) extract(root *tree_sitter.Node, source []byte, res *ParseResult) {
	cursor := root.Walk()
	defer cursor.Close()

	walk(cursor, func(node *tree_sitter.Node) bool {
		switch k := node.Kind(); k {
		case "impl_item":
			owner := ""
			if t := node.ChildByFieldName("type"); t != nil {
				owner = t.Utf8Text(source)
			}
			body := node.ChildByFieldName("body")
			if body == nil {
				return false
			}
			for i := uint(0); i < body.NamedChildCount(); i++ {
				fn := body.NamedChild(i)
				if fn == nil || fn.Kind() != "function_item" {
					continue
				}
				if sym, ok := symbolAt(fn, source, KindMethod); ok {
					sym.Receiver = owner
					res.add(sym, rsPub(fn))
				}
			}
			return false

		case "use_declaration":
			if arg := node.ChildByFieldName("argument"); arg != nil {
				res.File.Imports = append(res.File.Imports, arg.Utf8Text(source))
			}
			return false

		default:
			kind, ok := rsKinds[k]
			if !ok {
				return true
			}
			if sym, ok := symbolAt(node, source, kind); ok {
				res.add(sym, rsPub(node))
			}
			return false
		}
	})
}

// rsPub reports whether the item carries a visibility modifier.
func rsPub(node *tree_sitter.Node) bool {
	first := node.Child(0)
	return first != nil && first.Kind() == "visibility_modifier"
}
