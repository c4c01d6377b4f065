package index

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type pyExtractor struct{}

func (pyExtractor) extract(root *tree_sitter.Node, source []byte, res *ParseResult) {
	cursor := root.Walk()
	defer cursor.Close()

	walk(cursor, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "function_definition":
			owner := pyOwner(node, source)
			if owner == "" && !pyTopLevel(node) {
				return false
			}
			kind := KindFunction
			if owner != "" {
				kind = KindMethod
			}
			if sym, ok := symbolAt(node, source, kind); ok {
				sym.Receiver = owner
				res.add(sym, !strings.HasPrefix(sym.Name, "_"))
			}
			return false

		case "class_definition":
			if !pyTopLevel(node) {
				return false
			}
			if sym, ok := symbolAt(node, source, KindClass); ok {
				res.add(sym, !strings.HasPrefix(sym.Name, "_"))
			}
			// Methods are visited through the class body.
			return true

		case "import_statement":
			for i := uint(0); i < node.NamedChildCount(); i++ {
				c := node.NamedChild(i)
				if c == nil {
					continue
				}
				if c.Kind() == "aliased_import" {
					c = c.ChildByFieldName("name")
				}
				if c != nil && c.Kind() == "dotted_name" {
					res.File.Imports = append(res.File.Imports, c.Utf8Text(source))
				}
			}
			return false

		case "import_from_statement":
			if m := node.ChildByFieldName("module_name"); m != nil {
				res.File.Imports = append(res.File.Imports, m.Utf8Text(source))
			}
			return false
		}
		return true
	})
}

// pyTopLevel reports whether node sits directly in the module, possibly
// behind decorators.
func pyTopLevel(node *tree_sitter.Node) bool {
	parent := node.Parent()
	if parent != nil && parent.Kind() == "decorated_definition" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Kind() == "module"
}

// pyOwner returns the class name of a method defined directly in a
// top-level class body.
func pyOwner(node *tree_sitter.Node, source []byte) string {
	parent := node.Parent()
	if parent != nil && parent.Kind() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil || parent.Kind() != "block" {
		return ""
	}
	class := parent.Parent()
	if class == nil || class.Kind() != "class_definition" || !pyTopLevel(class) {
		return ""
	}
	if name := class.ChildByFieldName("name"); name != nil {
		return name.Utf8Text(source)
	}
	return ""
}
