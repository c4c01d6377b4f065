package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrUnsupportedLanguage is returned for a language without a grammar.
var ErrUnsupportedLanguage = errors.New("index: unsupported language")

// maxSignature bounds the stored declaration header, in runes.
const maxSignature = 320

// extractor walks one grammar's tree.
type extractor interface {
	extract(root *tree_sitter.Node, source []byte, res *ParseResult)
}

// Parser extracts symbols with tree-sitter. A grammar parser is created per
// Parse call, so one Parser may be shared by concurrent goroutines.
type Parser struct {
	languages  map[Language]*tree_sitter.Language
	extractors map[Language]extractor
}

// NewParser registers the Go, TypeScript, Python and Rust grammars.
func NewParser() *Parser {
	return &Parser{
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		extractors: map[Language]extractor{
			LangGo:         goExtractor{},
			LangTypeScript: tsExtractor{},
			LangPython:     pyExtractor{},
			LangRust:       rsExtractor{},
		},
	}
}

// Parse extracts the file record and symbols of one source file.
func (p *Parser) Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("index: set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("index: no syntax tree for %s", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	res := &ParseResult{
		File:     File{Path: path, Language: lang, LOC: countLOC(source)},
		HasError: root.HasError(),
	}
	p.extractors[lang].extract(root, source, res)
	return res, nil
}

// walk visits every node under cursor depth-first. visit returns false to
// skip a node's children.
func walk(cursor *tree_sitter.TreeCursor, visit func(*tree_sitter.Node) bool) {
	if !visit(cursor.Node()) {
		return
	}
	if cursor.GotoFirstChild() {
		walk(cursor, visit)
		for cursor.GotoNextSibling() {
			walk(cursor, visit)
		}
		cursor.GotoParent()
	}
}

// symbolAt builds a Symbol for a declaration node with a "name" field.
func symbolAt(node *tree_sitter.Node, source []byte, kind SymbolKind) (Symbol, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Symbol{}, false
	}
	return Symbol{
		Name:      nameNode.Utf8Text(source),
		Kind:      kind,
		Signature: header(node, source),
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}, true
}

// header returns the declaration text before its body, whitespace collapsed.
// Nodes without a body field contribute their whole text.
func header(node *tree_sitter.Node, source []byte) string {
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	text := string(source[node.StartByte():end])
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxSignature {
		r := []rune(text)
		text = string(r[:maxSignature]) + "…"
	}
	return text
}

func countLOC(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
