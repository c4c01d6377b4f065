package index

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxSymbols bounds how many declarations one Augment call appends.
const DefaultMaxSymbols = 8

// Retriever appends the declarations of symbols mentioned in a query to a
// context block. It reads whatever snapshot the holder publishes at call
// time.
type Retriever struct {
	holder *Holder
	max    int
}

// NewRetriever creates a Retriever over h. max <= 0 selects
// DefaultMaxSymbols.
func NewRetriever(h *Holder, max int) *Retriever {
	if max <= 0 {
		max = DefaultMaxSymbols
	}
	return &Retriever{holder: h, max: max}
}

// identRe matches identifiers and Type.Member selectors.
var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?`)

// Augment returns background followed by the signatures of indexed symbols
// named in query. Signatures already present in background are not repeated.
// Without a snapshot, background is returned unchanged.
func (r *Retriever) Augment(ctx context.Context, query, background string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	snap := r.holder.Load()
	if snap == nil {
		return background, nil
	}

	seen := make(map[string]bool)
	var found []Symbol
	for _, tok := range identRe.FindAllString(query, -1) {
		if len(found) >= r.max {
			break
		}
		for _, name := range candidates(tok) {
			syms := snap.Lookup(name)
			if len(syms) == 0 {
				continue
			}
			for _, sym := range syms {
				key := sym.File + ":" + sym.QualifiedName()
				if seen[key] || strings.Contains(background, sym.Signature) {
					continue
				}
				seen[key] = true
				found = append(found, sym)
			}
			break
		}
	}
	if len(found) == 0 {
		return background, nil
	}
	if len(found) > r.max {
		found = found[:r.max]
	}

	var b strings.Builder
	b.WriteString(background)
	if background != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("// Declarations referenced by the review:")
	for _, sym := range found {
		fmt.Fprintf(&b, "\n// %s:%d\n%s", sym.File, sym.StartLine, sym.Signature)
	}
	return b.String(), nil
}

// candidates returns the lookup keys for one token: a selector matches as
// a whole first, then by its member name. Short and keyword-like tokens are
// dropped.
func candidates(tok string) []string {
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		return []string{tok, tok[i+1:]}
	}
	if len(tok) < 3 || commonWords[strings.ToLower(tok)] {
		return nil
	}
	return []string{tok}
}

var commonWords = map[string]bool{
	"the": true, "and": true, "for": true, "not": true, "use": true, "func": true,
	"type": true, "return": true, "error": true, "string": true, "int": true,
	"test": true, "should": true, "with": true, "this": true, "that": true,
}
