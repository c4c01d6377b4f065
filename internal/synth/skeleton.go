package synth

import (
	"strings"
	"unicode"
)

const (
	// DefaultSuiteType names the suite when no type name is known.
	DefaultSuiteType = "GeneratedSuite"

	defaultPackage = "generated"
)

// Skeleton returns the canonical empty testify suite for a package and suite
// type: the struct embedding suite.Suite and its go test runner.
func Skeleton(pkg, typeName string) string {
	if pkg == "" {
		pkg = defaultPackage
	}
	if typeName == "" {
		typeName = DefaultSuiteType
	}
	var b strings.Builder
	b.WriteString("package " + pkg + "\n\n")
	b.WriteString("import (\n\t\"testing\"\n\n\t\"github.com/stretchr/testify/suite\"\n)\n\n")
	b.WriteString("type " + typeName + " struct {\n\tsuite.Suite\n}\n\n")
	b.WriteString("func " + RunnerName(typeName) + "(t *testing.T) {\n")
	b.WriteString("\tsuite.Run(t, new(" + typeName + "))\n}\n")
	return b.String()
}

// RunnerName is the go test entry point that runs a suite type.
func RunnerName(typeName string) string {
	return "Test" + typeName
}

// SuiteTypeName derives the suite type for a source type, e.g.
// "calculator" -> "CalculatorSuite".
func SuiteTypeName(sourceType string) string {
	if sourceType == "" {
		return DefaultSuiteType
	}
	r := []rune(sourceType)
	r[0] = unicode.ToUpper(r[0])
	name := string(r)
	if strings.HasSuffix(name, "Suite") {
		return name
	}
	return name + "Suite"
}

// FileName returns the test file name of the artifact, snake-cased from its
// suite type: "CalculatorSuite" -> "calculator_suite_test.go".
func (a Artifact) FileName() string {
	name := a.TypeName
	if name == "" {
		name = DefaultSuiteType
	}
	return SnakeCase(name) + "_test.go"
}

// SnakeCase converts a Go identifier to snake_case. Acronym runs stay
// together: "HTTPServer" -> "http_server".
func SnakeCase(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if unicode.IsUpper(c) {
			if i > 0 {
				prev := r[i-1]
				nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(c))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
