package synth

import (
	"regexp"
	"strconv"
	"strings"
)

// Sentinel markers, matched case-insensitively anywhere in a response.
var (
	FailureMarkers = []string{"GENERATION_FAILED"}
	QuotaMarkers   = []string{
		"RESOURCE_EXHAUSTED",
		"quota exceeded",
		"rate limit exceeded",
		"insufficient_quota",
	}
	NoiseMarkers = []string{
		"All log messages before absl::InitializeLog()",
		"DeprecationWarning:",
	}
)

// ContainsSentinel reports whether text carries a failure, quota or
// process-noise marker. Such a response is never parsed.
func ContainsSentinel(text string) bool {
	return containsAny(text, FailureMarkers, QuotaMarkers, NoiseMarkers)
}

// Exhausted reports whether text signals a failed or quota-limited backend
// rather than a real answer.
func Exhausted(text string) bool {
	return containsAny(text, FailureMarkers, QuotaMarkers)
}

func containsAny(text string, lists ...[]string) bool {
	lower := strings.ToLower(text)
	for _, list := range lists {
		for _, m := range list {
			if strings.Contains(lower, strings.ToLower(m)) {
				return true
			}
		}
	}
	return false
}

// Sanitize turns a free-form generation response into a Fragment. It never
// fails: anything unusable yields the empty Fragment.
//
// Extraction tries envelope labels in priority order, then the first fenced
// block, then the whole input. The candidate is cleaned of residual markup and
// run through the parse ladder; the first accepting rung fills in the
// fragment's metadata.
func Sanitize(raw string) Fragment {
	if ContainsSentinel(raw) {
		return Fragment{}
	}

	text, source := extract(raw)
	text = clean(text)
	if text == "" || ContainsSentinel(text) {
		return Fragment{}
	}

	p := detect(text)
	if p == nil {
		if source.Labeled() {
			return Fragment{Body: text, Source: source, Granularity: GranularityRaw}
		}
		return Fragment{}
	}

	frag := Fragment{Body: text, Source: source, Granularity: p.granularity}
	if p.file != nil && p.granularity.Structural() {
		if p.granularity == GranularityFile {
			frag.Package = p.file.Name.Name
		}
		for _, imp := range fileImports(p.file) {
			frag.Imports = append(frag.Imports, imp.String())
		}
		frag.TypeName = primaryTypeName(p.file)
	}
	return frag
}

// extract picks the candidate text and reports where it came from.
func extract(raw string) (string, ExtractSource) {
	for _, label := range PayloadLabels {
		if body, ok := FindLabel(raw, label); ok {
			return body, SourceEnvelope
		}
	}
	if body, ok := firstFence(raw); ok {
		return body, SourceFence
	}
	return raw, SourceRaw
}

const fence = "```"

var hintRe = regexp.MustCompile(`^[A-Za-z0-9_+#.-]*$`)

// firstFence returns the body of the first ``` block. The fence line may carry
// a language hint; an unterminated fence takes the rest of the input.
func firstFence(raw string) (string, bool) {
	start := strings.Index(raw, fence)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(fence):]

	// Hint token on the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if hintRe.MatchString(strings.TrimSpace(rest[:nl])) {
			rest = rest[nl+1:]
		}
	}

	if end := strings.Index(rest, fence); end >= 0 {
		return rest[:end], true
	}
	return rest, true
}

var (
	fenceLineRe = regexp.MustCompile("(?m)^\\s*```[A-Za-z0-9_+#.-]*\\s*$")
	cdataMarkRe = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
	numEntityRe = regexp.MustCompile(`&#(?:[xX]([0-9A-Fa-f]{1,6})|([0-9]{1,7}));`)
)

// entityReplacer covers the named entities markup-happy generators emit. A
// full HTML unescape would mangle Go source such as `&copy` in `&copyOf`.
var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// clean strips residual fence and CDATA markers and unescapes character
// entities.
func clean(text string) string {
	text = fenceLineRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, fence, "")
	text = cdataMarkRe.ReplaceAllString(text, "")
	text = numEntityRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := numEntityRe.FindStringSubmatch(m)
		var (
			n   uint64
			err error
		)
		if sub[1] != "" {
			n, err = strconv.ParseUint(sub[1], 16, 32)
		} else {
			n, err = strconv.ParseUint(sub[2], 10, 32)
		}
		if err != nil || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
	text = entityReplacer.Replace(text)
	return strings.TrimSpace(text)
}
