package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dusk-indust/testweave/internal/index"
	"github.com/dusk-indust/testweave/internal/pipeline"
)

// PhaseDiagram renders a run's transitions as a Mermaid stateDiagram-v2.
// Repair edges are labeled with their attempt number.
func PhaseDiagram(history []pipeline.Transition) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	if len(history) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "  [*] --> %s\n", stateID(history[0].From))
	for _, t := range history {
		if t.Attempt > 0 {
			fmt.Fprintf(&sb, "  %s --> %s : attempt %d\n", stateID(t.From), stateID(t.To), t.Attempt)
			continue
		}
		fmt.Fprintf(&sb, "  %s --> %s\n", stateID(t.From), stateID(t.To))
	}
	if last := history[len(history)-1].To; last.Terminal() {
		fmt.Fprintf(&sb, "  %s --> [*]\n", stateID(last))
	}
	return sb.String()
}

// stateID turns "skeleton-generated" into "SkeletonGenerated".
func stateID(p pipeline.Phase) string {
	var sb strings.Builder
	for part := range strings.SplitSeq(p.String(), "-") {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return strings.NewReplacer("(", "", ")", "").Replace(sb.String())
}

// ImportDiagram produces a Mermaid graph TD of an index snapshot. Files are
// grouped by directory; imports that resolve to an indexed directory become
// arrows between the groups.
func ImportDiagram(snap *index.Snapshot) string {
	nodeIDs := make(map[string]string)
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[key] = id
		return id
	}

	groups := make(map[string][]string)
	for _, f := range snap.Files() {
		dir := filepath.ToSlash(filepath.Dir(f.Path))
		groups[dir] = append(groups[dir], f.Path)
	}
	dirs := make([]string, 0, len(groups))
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, d := range dirs {
		files := groups[d]
		sort.Strings(files)
		fmt.Fprintf(&sb, "  subgraph %s[\"%.40s\"]\n", getID("dir:"+d), d)
		for _, f := range files {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(f), filepath.Base(f))
		}
		sb.WriteString("  end\n")
	}

	seen := make(map[string]bool)
	for _, f := range snap.Files() {
		from := filepath.ToSlash(filepath.Dir(f.Path))
		for _, imp := range f.Imports {
			to := resolveImport(imp, dirs)
			if to == "" || to == from {
				continue
			}
			edge := from + "->" + to
			if seen[edge] {
				continue
			}
			seen[edge] = true
			fmt.Fprintf(&sb, "  %s --> %s\n", getID("dir:"+from), getID("dir:"+to))
		}
	}
	return sb.String()
}

// resolveImport maps an import path to the indexed directory it ends with.
func resolveImport(imp string, dirs []string) string {
	imp = strings.Trim(imp, `"'`)
	best := ""
	for _, d := range dirs {
		if d == "." {
			continue
		}
		if imp == d || strings.HasSuffix(imp, "/"+d) {
			if len(d) > len(best) {
				best = d
			}
		}
	}
	return best
}
