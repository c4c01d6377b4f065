package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Extraction priority
// ---------------------------------------------------------------------------

func TestSanitize_TagPriority(t *testing.T) {
	raw := "<response>" +
		"<test_code>func (s *CalcSuite) TestFromTestCode() {}</test_code>" +
		"<code>func (s *CalcSuite) TestFromCode() {}</code>" +
		"</response>"

	frag := Sanitize(raw)
	require.False(t, frag.Empty())
	assert.Contains(t, frag.Body, "TestFromCode")
	assert.NotContains(t, frag.Body, "TestFromTestCode")
	assert.Equal(t, SourceEnvelope, frag.Source)
	assert.Equal(t, GranularityDecls, frag.Granularity)
	assert.Equal(t, "CalcSuite", frag.TypeName)
}

func TestSanitize_LowerPriorityLabelUsedWhenAlone(t *testing.T) {
	frag := Sanitize("<fixed_code>func (s *CalcSuite) TestFixed() {}</fixed_code>")
	assert.Contains(t, frag.Body, "TestFixed")
	assert.Equal(t, SourceEnvelope, frag.Source)
}

func TestSanitize_LabelsAreCaseInsensitive(t *testing.T) {
	frag := Sanitize("<CODE>func helper() int { return 1 }</CODE>")
	assert.Equal(t, "func helper() int { return 1 }", frag.Body)
	assert.Equal(t, GranularityDecls, frag.Granularity)
}

func TestSanitize_UnterminatedLabelTakesRemainder(t *testing.T) {
	frag := Sanitize("preamble <code>package calc\n\nfunc helper() {}\n")
	assert.Equal(t, "calc", frag.Package)
	assert.Equal(t, GranularityFile, frag.Granularity)
}

func TestSanitize_CDATAUnwrapped(t *testing.T) {
	frag := Sanitize("<code><![CDATA[package calc\n\nfunc lt(a, b int) bool { return a < b }]]></code>")
	require.False(t, frag.Empty())
	assert.NotContains(t, frag.Body, "CDATA")
	assert.Equal(t, GranularityFile, frag.Granularity)
	assert.Equal(t, "calc", frag.Package)
}

func TestSanitize_FenceWithHint(t *testing.T) {
	raw := "Here is the suite:\n```go\npackage calc\n\nimport \"testing\"\n\nfunc TestAdd(t *testing.T) {}\n```\nLet me know."

	frag := Sanitize(raw)
	assert.Equal(t, SourceFence, frag.Source)
	assert.Equal(t, "calc", frag.Package)
	assert.Equal(t, []string{"testing"}, frag.Imports)
	assert.NotContains(t, frag.Body, "```")
	assert.NotContains(t, frag.Body, "Let me know")
}

func TestSanitize_RawStatements(t *testing.T) {
	frag := Sanitize("x := 1\n_ = x")
	assert.Equal(t, SourceRaw, frag.Source)
	assert.Equal(t, GranularityStmts, frag.Granularity)
	assert.Empty(t, frag.TypeName)
}

func TestSanitize_EntitiesUnescaped(t *testing.T) {
	frag := Sanitize("<code>func less(a, b int) bool { return a &lt; b &amp;&amp; b &gt; 0 }</code>")
	assert.Equal(t, "func less(a, b int) bool { return a < b && b > 0 }", frag.Body)
	assert.Equal(t, GranularityDecls, frag.Granularity)
}

func TestClean_LeavesUnknownEntitiesAlone(t *testing.T) {
	assert.Equal(t, `p := &copyOf "A" A`, clean(`p := &copyOf &#34;&#x41;&#34; &#65;`))
}

func TestSanitize_ImportAliasRecorded(t *testing.T) {
	frag := Sanitize("<code>import tassert \"github.com/stretchr/testify/assert\"\n\nvar _ = tassert.True</code>")
	assert.Equal(t, []string{"tassert github.com/stretchr/testify/assert"}, frag.Imports)
}

// ---------------------------------------------------------------------------
// Rejection
// ---------------------------------------------------------------------------

func TestSanitize_SentinelRejectsRegardlessOfLabels(t *testing.T) {
	cases := []string{
		"<code>package calc</code>\nGENERATION_FAILED",
		"<code>func ok() {}</code> error: RESOURCE_EXHAUSTED",
		"Quota Exceeded for this project\n```go\nfunc ok() {}\n```",
		"<code>func ok() {}</code> Rate limit exceeded",
		"insufficient_quota",
		"All log messages before absl::InitializeLog() is called are written to STDERR\n<code>func ok() {}</code>",
		"DeprecationWarning: something\n<code>func ok() {}</code>",
	}
	for _, raw := range cases {
		frag := Sanitize(raw)
		assert.True(t, frag.Empty(), "expected empty fragment for %q", raw)
		assert.Equal(t, Fragment{}, frag)
	}
}

func TestSanitize_LabeledUnparsableKeptRaw(t *testing.T) {
	frag := Sanitize("<code>this is not go {{{</code>")
	assert.Equal(t, GranularityRaw, frag.Granularity)
	assert.Equal(t, "this is not go {{{", frag.Body)
	assert.Equal(t, SourceEnvelope, frag.Source)
}

func TestSanitize_UnlabeledUnparsableIsEmpty(t *testing.T) {
	frag := Sanitize("I could not write the tests, sorry about that!")
	assert.True(t, frag.Empty())
	assert.Equal(t, GranularityNone, frag.Granularity)
}

func TestSanitize_EmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "   \n\t", "<code></code>", "```go\n```", "// just a comment"} {
		assert.True(t, Sanitize(raw).Empty(), "input %q", raw)
	}
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

func TestParseEnvelope_AllSections(t *testing.T) {
	raw := `<response>
<status>REJECTED</status>
<rationale>Edge cases missing.</rationale>
<code>func (s *CalcSuite) TestDiv() {}</code>
<feedback>Cover division by zero.</feedback>
</response>`

	env := ParseEnvelope(raw)
	assert.Equal(t, "REJECTED", env.Status)
	assert.Equal(t, "Edge cases missing.", env.Rationale)
	assert.Equal(t, "func (s *CalcSuite) TestDiv() {}", env.Code)
	assert.Equal(t, "Cover division by zero.", env.Feedback)
	assert.Equal(t, LabelCode, env.CodeLabel)
	assert.True(t, env.HasCode())
}

func TestParseEnvelope_NoLabels(t *testing.T) {
	env := ParseEnvelope("looks fine to me")
	assert.Equal(t, Envelope{}, env)
	assert.False(t, env.HasCode())
}

func TestFindLabel_AttributesAndWhitespace(t *testing.T) {
	body, ok := FindLabel(`<payload lang="go">x := 1</payload >`, "payload")
	require.True(t, ok)
	assert.Equal(t, "x := 1", body)
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Add a test for Sub.", StripMarkup("<verdict><reason>Add a test for Sub.</reason></verdict>"))
}
