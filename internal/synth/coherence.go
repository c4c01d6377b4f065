package synth

import (
	"fmt"
	"sort"
	"strings"
)

// CoherenceIssue is a contradiction between two fragments found before merge.
type CoherenceIssue struct {
	FragmentA   string // label of the first conflicting fragment
	FragmentB   string // label of the second conflicting fragment
	Description string
}

// CheckCoherence performs a lightweight cross-fragment consistency scan. It
// collects the identifier each import binds in every fragment and flags any
// identifier bound to different paths. Issues never block a merge; the first
// alias wins there.
func CheckCoherence(fragments []Fragment) []CoherenceIssue {
	// bindings maps local name -> path -> fragment labels, in first-seen order.
	bindings := make(map[string]map[string][]string)
	pathOrder := make(map[string][]string)

	for i, frag := range fragments {
		label := fragmentLabel(i, frag)
		seen := make(map[string]bool)
		for _, spec := range fragmentImports(frag) {
			name := spec.localName()
			if name == "_" || name == "." || name == "" {
				continue
			}
			key := name + "\x00" + spec.Path
			if seen[key] {
				continue
			}
			seen[key] = true

			if bindings[name] == nil {
				bindings[name] = make(map[string][]string)
			}
			if _, ok := bindings[name][spec.Path]; !ok {
				pathOrder[name] = append(pathOrder[name], spec.Path)
			}
			bindings[name][spec.Path] = append(bindings[name][spec.Path], label)
		}
	}

	names := make([]string, 0, len(pathOrder))
	for name, paths := range pathOrder {
		if len(paths) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var issues []CoherenceIssue
	for _, name := range names {
		paths := pathOrder[name]
		for i := 0; i < len(paths); i++ {
			for j := i + 1; j < len(paths); j++ {
				a, b := bindings[name][paths[i]], bindings[name][paths[j]]
				issues = append(issues, CoherenceIssue{
					FragmentA: a[0],
					FragmentB: b[0],
					Description: fmt.Sprintf(
						"import name %q is bound to %q (in %s) and %q (in %s)",
						name,
						paths[i], strings.Join(a, ", "),
						paths[j], strings.Join(b, ", "),
					),
				})
			}
		}
	}
	return issues
}

// fragmentImports unions the sanitizer-declared imports with the imports of
// the body, when the body parses structurally.
func fragmentImports(frag Fragment) []importSpec {
	var out []importSpec
	for _, s := range frag.Imports {
		if spec := parseImportSpec(s); spec.Path != "" {
			out = append(out, spec)
		}
	}
	if frag.Empty() {
		return out
	}
	if src, _, err := parseStructural(frag.Body); err == nil {
		out = append(out, fileImports(src.file)...)
	}
	return out
}

func fragmentLabel(i int, frag Fragment) string {
	if frag.Target != "" {
		return frag.Target
	}
	return fmt.Sprintf("fragment %d", i)
}
