package synth

import (
	"regexp"
	"strings"
	"sync"
)

// Section labels of the response envelope.
const (
	LabelEnvelope  = "response"
	LabelStatus    = "status"
	LabelRationale = "rationale"
	LabelCode      = "code"
	LabelFeedback  = "feedback"
)

// PayloadLabels is the code-payload vocabulary in priority order.
var PayloadLabels = []string{LabelCode, "test_code", "fixed_code", "payload"}

// Envelope holds the labeled sections of one generation response. Missing
// sections are empty.
type Envelope struct {
	Status    string
	Rationale string
	Code      string
	Feedback  string

	// CodeLabel is the payload label that supplied Code.
	CodeLabel string
}

// HasCode reports whether a payload label was present.
func (e Envelope) HasCode() bool {
	return e.CodeLabel != ""
}

// ParseEnvelope extracts the labeled sections from raw. It never fails; a
// response without labels yields an empty Envelope.
func ParseEnvelope(raw string) Envelope {
	var env Envelope
	env.Status, _ = FindLabel(raw, LabelStatus)
	env.Rationale, _ = FindLabel(raw, LabelRationale)
	env.Feedback, _ = FindLabel(raw, LabelFeedback)
	for _, label := range PayloadLabels {
		if body, ok := FindLabel(raw, label); ok {
			env.Code = body
			env.CodeLabel = label
			break
		}
	}
	env.Status = strings.TrimSpace(env.Status)
	env.Rationale = strings.TrimSpace(env.Rationale)
	env.Feedback = strings.TrimSpace(env.Feedback)
	env.Code = strings.TrimSpace(env.Code)
	return env
}

// labelPatterns caches the closed and unterminated patterns per label.
var labelPatterns sync.Map // label -> [2]*regexp.Regexp

func labelRegexps(label string) [2]*regexp.Regexp {
	if v, ok := labelPatterns.Load(label); ok {
		return v.([2]*regexp.Regexp)
	}
	q := regexp.QuoteMeta(label)
	pair := [2]*regexp.Regexp{
		regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*)?>(.*?)</` + q + `\s*>`),
		regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*)?>(.*)$`),
	}
	labelPatterns.Store(label, pair)
	return pair
}

// FindLabel returns the text enclosed by the first <label>…</label> pair. An
// opening tag without a closing tag takes the remainder of the input. CDATA
// markers inside the section are unwrapped.
func FindLabel(raw, label string) (string, bool) {
	pats := labelRegexps(label)
	for _, re := range pats {
		if m := re.FindStringSubmatch(raw); m != nil {
			return unwrapCDATA(m[1]), true
		}
	}
	return "", false
}

var cdataRe = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

func unwrapCDATA(s string) string {
	return cdataRe.ReplaceAllString(s, "$1")
}

var markupRe = regexp.MustCompile(`</?[A-Za-z_][A-Za-z0-9_-]*(?:\s[^>]*)?>`)

// StripMarkup removes envelope tags and CDATA markers, leaving the enclosed
// text.
func StripMarkup(s string) string {
	s = unwrapCDATA(s)
	s = markupRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
