package mcptools

// --- MCP Tool Input/Output Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// SanitizeInput is the input for the sanitize_fragment tool.
type SanitizeInput struct {
	Raw string `json:"raw" jsonschema:"free-form generation output that may wrap code in tags, fences or prose"`
}

// FragmentOutput is one extracted fragment.
type FragmentOutput struct {
	Package     string   `json:"package,omitempty"`
	TypeName    string   `json:"typeName,omitempty"`
	Imports     []string `json:"imports,omitempty"`
	Body        string   `json:"body"`
	Source      string   `json:"source"`
	Granularity string   `json:"granularity"`
	Structural  bool     `json:"structural"`
}

// ValidateInput is the input for the validate_syntax tool.
type ValidateInput struct {
	Code string `json:"code" jsonschema:"Go code: a file, declarations, statements, an expression or a block"`
}

// ValidateOutput is the result of the validate_syntax tool.
type ValidateOutput struct {
	Valid       bool   `json:"valid"`
	Granularity string `json:"granularity"`
}

// MergeInput is the input for the merge_fragments tool.
type MergeInput struct {
	Package     string   `json:"package" jsonschema:"package name of the suite"`
	PackagePath string   `json:"packagePath,omitempty" jsonschema:"package directory relative to the project root"`
	TypeName    string   `json:"typeName" jsonschema:"suite struct name, e.g. CalculatorSuite"`
	Target      string   `json:"target,omitempty" jsonschema:"current suite source; empty starts from a skeleton"`
	Fragments   []string `json:"fragments" jsonschema:"raw generation outputs to sanitize and merge in order"`
}

// MergeOutput is the result of the merge_fragments tool.
type MergeOutput struct {
	Body    string           `json:"body"`
	Imports []string         `json:"imports"`
	Merged  int              `json:"merged"`
	Skipped int              `json:"skipped"`
	Issues  []CoherenceIssue `json:"issues,omitempty"`
}

// CoherenceIssue reports two fragments binding one import name to different
// paths.
type CoherenceIssue struct {
	FragmentA   string `json:"fragmentA"`
	FragmentB   string `json:"fragmentB"`
	Description string `json:"description"`
}

// GenerateInput is the input for the generate_suite tool.
type GenerateInput struct {
	Path   string `json:"path" jsonschema:"source file path relative to the project root"`
	Source string `json:"source,omitempty" jsonschema:"file content; read from disk when empty"`
}

// GenerateOutput is the result of the generate_suite tool.
type GenerateOutput struct {
	RunID      string `json:"runId"`
	Suite      string `json:"suite,omitempty"`
	Phase      string `json:"phase"`
	Verified   bool   `json:"verified"`
	Attempts   int    `json:"attempts"`
	Location   string `json:"location,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Body       string `json:"body,omitempty"`
}

// ListRunsInput is the input for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs, newest first (default: 20)"`
}

// ListRunsOutput is the result of the list_runs tool.
type ListRunsOutput struct {
	Runs    []RunSummary   `json:"runs"`
	Summary map[string]int `json:"summary"`
}

// RunSummary is a brief overview of one recorded run.
type RunSummary struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Suite    string `json:"suite,omitempty"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts"`
	Started  string `json:"started"`
}
