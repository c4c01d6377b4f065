// Package mask redacts credentials from text before it leaves the process
// as generation context.
package mask

import (
	"regexp"
	"sync"
)

// Rule is one redaction pattern.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string // may reference groups as $1
}

// DefaultRules covers API keys, bearer tokens, password assignments and URL
// credentials, private-key blocks, AWS access keys and JWTs. Order matters:
// block patterns run before line patterns.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "private_key",
			Pattern:     regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )*PRIVATE KEY-----[\s\S]*?-----END (?:[A-Z]+ )*PRIVATE KEY-----`),
			Replacement: "[PRIVATE_KEY_REDACTED]",
		},
		{
			Name:        "aws_access_key",
			Pattern:     regexp.MustCompile(`\b(?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}\b`),
			Replacement: "[AWS_KEY_REDACTED]",
		},
		{
			Name:        "jwt",
			Pattern:     regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Replacement: "[JWT_REDACTED]",
		},
		{
			Name:        "bearer",
			Pattern:     regexp.MustCompile(`(?i)\bbearer\s+[a-zA-Z0-9_\-.=]+`),
			Replacement: "Bearer [TOKEN_REDACTED]",
		},
		{
			Name:        "openai_key",
			Pattern:     regexp.MustCompile(`\bsk-[a-zA-Z0-9_\-]{20,}\b`),
			Replacement: "[KEY_REDACTED]",
		},
		{
			Name:        "api_key",
			Pattern:     regexp.MustCompile(`(?i)\b(api[_\-]?key|apikey|secret[_\-]?key|access[_\-]?token|auth[_\-]?token)(\s*[=:]\s*)["']?[a-zA-Z0-9_\-./+]{12,}["']?`),
			Replacement: "$1$2[KEY_REDACTED]",
		},
		{
			Name:        "password",
			Pattern:     regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*)["']?[^\s"',;]+["']?`),
			Replacement: "$1$2[PASSWORD_REDACTED]",
		},
		{
			Name:        "url_credentials",
			Pattern:     regexp.MustCompile(`://([^:/@\s]+):[^@/\s]+@`),
			Replacement: "://$1:[PASSWORD_REDACTED]@",
		},
	}
}

// Redactor applies rules in order and counts redactions per rule. It is safe
// for concurrent use.
type Redactor struct {
	rules []Rule

	mu     sync.Mutex
	counts map[string]int
}

// New creates a Redactor. With no rules it uses DefaultRules.
func New(rules ...Rule) *Redactor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Redactor{rules: rules, counts: make(map[string]int)}
}

// Mask returns text with every rule applied.
func (r *Redactor) Mask(text string) string {
	if text == "" {
		return text
	}
	hits := make(map[string]int)
	for _, rule := range r.rules {
		n := len(rule.Pattern.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		hits[rule.Name] += n
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	if len(hits) > 0 {
		r.mu.Lock()
		for k, v := range hits {
			r.counts[k] += v
		}
		r.mu.Unlock()
	}
	return text
}

// Counts returns the number of redactions per rule name so far.
func (r *Redactor) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Nop returns text unchanged.
type Nop struct{}

// Mask returns text.
func (Nop) Mask(text string) string { return text }
