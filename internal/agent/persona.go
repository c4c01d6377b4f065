package agent

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed personas/*.tmpl
var personaFS embed.FS

var personaTemplates = template.Must(
	template.New("personas").Funcs(template.FuncMap{
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
	}).ParseFS(personaFS, "personas/*.tmpl"),
)

// Persona is the static prompt data of one role.
type Persona struct {
	Role        Role
	Name        string
	Description string
}

// PersonaFor returns the persona of role. It panics on a role outside the
// package constants, which cannot be built without a conversion.
func PersonaFor(role Role) Persona {
	switch role {
	case RoleSkeleton:
		return Persona{Role: role, Name: "suite-architect", Description: "Lays out the testify suite for a source unit"}
	case RoleWorker:
		return Persona{Role: role, Name: "test-writer", Description: "Writes one test method per behavior scenario"}
	case RoleReviewer:
		return Persona{Role: role, Name: "test-reviewer", Description: "Approves or rejects a drafted test with feedback"}
	case RoleArbitrator:
		return Persona{Role: role, Name: "test-arbitrator", Description: "Settles a disputed draft after review rounds run out"}
	case RoleRepair:
		return Persona{Role: role, Name: "test-fixer", Description: "Repairs a failing suite from the test output"}
	case RolePlanner:
		return Persona{Role: role, Name: "scenario-planner", Description: "Lists the behaviors worth testing for each member"}
	}
	panic(fmt.Sprintf("agent: unknown role %q", string(role)))
}

// System renders the role's standing instructions.
func (p Persona) System() string {
	var buf bytes.Buffer
	if err := personaTemplates.ExecuteTemplate(&buf, string(p.Role)+".system", nil); err != nil {
		// Templates are embedded and have no data references.
		panic(fmt.Sprintf("agent: render %s system prompt: %v", p.Role, err))
	}
	return strings.TrimSpace(buf.String())
}

// Mission renders the role's task for one brief.
func (p Persona) Mission(b Brief) (string, error) {
	var buf bytes.Buffer
	if err := personaTemplates.ExecuteTemplate(&buf, string(p.Role)+".mission", b); err != nil {
		return "", fmt.Errorf("agent: render %s mission: %w", p.Role, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Brief is the data a mission template is rendered with. Fields a role does
// not use are left empty.
type Brief struct {
	Package     string
	PackagePath string
	SourcePath  string
	SourceType  string
	SuiteType   string
	Kind        string
	Members     []string // member signatures of the source unit

	Member   string // target member of a worker mission
	Behavior string // scenario text of a worker mission

	Mission  string   // the original mission, for reviewer and arbitrator
	Draft    string   // latest draft under review, or the broken suite to repair
	Feedback []string // reviewer feedback history

	Diagnostic string // test output of a failed verification
	Directives []string

	// Context is sent as background material, outside the mission text.
	Context string
}
