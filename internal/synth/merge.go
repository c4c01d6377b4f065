package synth

import (
	"fmt"
	"go/ast"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Merger folds generated fragments into an assembled artifact.
type Merger struct {
	logger *zap.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger sets the logger used for skipped fragments, dropped members and
// coherence issues.
func WithLogger(l *zap.Logger) MergerOption {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMerger creates a Merger.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge folds fragments into target.
//
// The target is parsed strictly as a whole file; an empty target body is
// replaced by the canonical skeleton first. A target that does not parse
// aborts the merge with ErrTargetUnparsable. Fragments get the recovery parse
// and are skipped when they still fail.
//
// Functions are deduplicated by name within their receiver scope and the
// first writer wins. Fields are deduplicated per struct, same-named types are
// merged recursively, and var, const and init declarations are always
// appended.
func (m *Merger) Merge(target Artifact, fragments []Fragment) (Artifact, error) {
	body := target.Body
	if strings.TrimSpace(body) == "" {
		body = Skeleton(target.Package, target.TypeName)
	}

	fset, f, err := parseWholeFile(body)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrTargetUnparsable, err)
	}
	u := loadTarget(source{text: body, fset: fset, file: f})

	for _, issue := range CheckCoherence(fragments) {
		m.logger.Warn("merge: import conflict",
			zap.String("a", issue.FragmentA),
			zap.String("b", issue.FragmentB),
			zap.String("detail", issue.Description))
	}

	for i, frag := range fragments {
		if frag.Empty() {
			continue
		}
		src, gran, err := parseStructural(frag.Body)
		if err != nil {
			m.logger.Warn("merge: skipping unparsable fragment",
				zap.String("fragment", fragmentLabel(i, frag)),
				zap.Error(err))
			continue
		}

		for _, s := range frag.Imports {
			u.addImports([]importSpec{parseImportSpec(s)})
		}
		u.addImports(fileImports(src.file))

		st := u.absorb(src, false)
		m.logger.Debug("merge: fragment absorbed",
			zap.String("fragment", fragmentLabel(i, frag)),
			zap.Stringer("granularity", gran),
			zap.Int("added", st.added),
			zap.Strings("dropped", st.dropped))
	}

	return m.finish(u, f, target), nil
}

// Replace builds an artifact from a whole-file body, keeping the identity of
// prev. The body is parsed strictly and formatted.
func (m *Merger) Replace(prev Artifact, body string) (Artifact, error) {
	fset, f, err := parseWholeFile(body)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrTargetUnparsable, err)
	}
	u := loadTarget(source{text: body, fset: fset, file: f})
	return m.finish(u, f, prev), nil
}

// finish renders the unit into an artifact carrying the identity of base.
func (m *Merger) finish(u *unit, f *ast.File, base Artifact) Artifact {
	out, err := u.render()
	if err != nil {
		m.logger.Warn("merge: formatting failed, keeping unformatted source", zap.Error(err))
	}
	imports := u.importStrings()
	sort.Strings(imports)

	typeName := base.TypeName
	if typeName == "" {
		typeName = primaryTypeName(f)
	}
	return Artifact{
		Package:     u.pkg,
		PackagePath: base.PackagePath,
		TypeName:    typeName,
		Imports:     imports,
		Body:        out,
	}
}
