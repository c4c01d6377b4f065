package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/dusk-indust/testweave/internal/synth"
)

const (
	// DefaultVerifyTimeout bounds one go test invocation.
	DefaultVerifyTimeout = 2 * time.Minute

	// maxOutput is how much of the test output tail is kept as diagnostic.
	maxOutput = 16 << 10
)

// GoTestHarness verifies a suite by running its go test entry point.
type GoTestHarness struct {
	Binary  string        // defaults to "go"
	Timeout time.Duration // defaults to DefaultVerifyTimeout
	Env     []string      // extra KEY=VALUE pairs
}

// Run executes `go test -count=1 -run ^TestSuite$ ./pkg/path` in root. A
// non-zero exit is a failed verdict, not an error; errors are reserved for
// being unable to run the tool at all.
func (h *GoTestHarness) Run(ctx context.Context, root, qualifiedName string) (Verdict, error) {
	pkgPath, suite := splitQualified(qualifiedName)
	if suite == "" {
		return Verdict{}, fmt.Errorf("pipeline: harness: no suite type in %q", qualifiedName)
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := h.Binary
	if binary == "" {
		binary = "go"
	}
	target := "./" + pkgPath
	if pkgPath == "" {
		target = "."
	}
	pattern := "^" + regexp.QuoteMeta(synth.RunnerName(suite)) + "$"

	cmd := exec.CommandContext(ctx, binary, "test", "-count=1", "-run", pattern, target)
	cmd.Dir = root
	if len(h.Env) > 0 {
		cmd.Env = append(cmd.Environ(), h.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := tail(out.String(), maxOutput)
	if err == nil {
		return Verdict{Passed: true, Output: output}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Verdict{Output: output}, fmt.Errorf("pipeline: harness: %s: %w", qualifiedName, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Verdict{Passed: false, Output: output}, nil
	}
	return Verdict{}, fmt.Errorf("pipeline: harness: run %s: %w", binary, err)
}

// splitQualified splits "pkg/path.Suite" at the last dot.
func splitQualified(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
