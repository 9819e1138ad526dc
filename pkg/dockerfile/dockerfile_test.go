package dockerfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDockerfile = `# syntax=docker/dockerfile:1
# escape=\
# Build stage
FROM golang:1.25 AS build
  LABEL  maintainer='ops@example.com'   team=platform
WORKDIR /src

RUN go build \
    -o /out/app \
    ./cmd/app
# version=not-a-directive
FROM scratch
COPY --from=build /out/app /app
LABEL "org.opencontainers.image.version"="1.0.0" "vendor"="acme"
ENTRYPOINT ["/app"]
`

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"comments only", "# one\n#two\n#   three\n"},
		{"mixed verbs", "FROM alpine\nRUN apk add git\nCMD [\"sh\"]\n"},
		{"directives", "# syntax=docker/dockerfile:1\n# escape=`\nFROM alpine\n"},
		{"backslash continuations", "RUN a \\\n  && b \\\n  && c\nLABEL a=1 \\\n  b=2\n"},
		{"backtick continuations", "# escape=`\nRUN dir `\n  C:\\\nUSER admin\n"},
		{"blank lines and indentation", "FROM alpine\n\n\n   RUN true\n\t\n"},
		{"windows line endings", "FROM alpine\r\nLABEL a=1\r\n"},
		{"sample", sampleDockerfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse(tt.body)
			assert.Equal(t, strings.TrimSpace(tt.body)+"\n", doc.String())
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\n\t\n"} {
		doc := Parse(body)
		assert.Empty(t, doc.Lines())
		assert.Empty(t, doc.Labels())
		assert.Equal(t, "", doc.String())
	}
}

func TestParse_Classification(t *testing.T) {
	doc := Parse(sampleDockerfile)
	lines := doc.Lines()

	kinds := make([]Kind, len(lines))
	for i, l := range lines {
		kinds[i] = l.Kind()
	}
	assert.Equal(t, []Kind{
		KindDirective, KindDirective, KindComment, KindInstruction, KindInstruction,
		KindInstruction, KindOpaque, KindInstruction, KindComment, KindInstruction,
		KindInstruction, KindInstruction, KindInstruction,
	}, kinds)

	syntax := lines[0].(*Directive)
	assert.Equal(t, "syntax", syntax.Name)
	assert.Equal(t, "docker/dockerfile:1", syntax.Value)

	comment := lines[2].(*Comment)
	assert.Equal(t, "Build stage", comment.Text())

	label := lines[4].(*Instruction)
	assert.Equal(t, "LABEL", label.Verb)
	assert.True(t, label.IsLabel())
	assert.Equal(t, map[string]string{"maintainer": "ops@example.com", "team": "platform"}, label.Labels())
}

func TestParse_DirectiveRegionExit(t *testing.T) {
	doc := Parse("FROM alpine\n# escape=`\nRUN a `\n")
	lines := doc.Lines()
	require.Len(t, lines, 3)

	assert.Equal(t, KindComment, lines[1].Kind())
	assert.Equal(t, "escape=`", lines[1].(*Comment).Text())
	assert.Equal(t, DefaultEscape, doc.Escape())
	// The backtick is not an escape, so the RUN line stands alone.
	assert.Equal(t, "a `", lines[2].(*Instruction).Payload)
}

func TestParse_EscapeDirective(t *testing.T) {
	doc := Parse("# escape=`\nRUN echo a `\n  && echo b\nRUN c:\\\n")
	assert.Equal(t, "`", doc.Escape())

	lines := doc.Lines()
	require.Len(t, lines, 3)
	run := lines[1].(*Instruction)
	assert.Equal(t, "echo a   && echo b", run.Payload)
	assert.Equal(t, "RUN echo a `\n  && echo b", run.Raw())
	assert.Equal(t, `c:\`, lines[2].(*Instruction).Payload)
}

func TestParse_ContinuationMerge(t *testing.T) {
	body := "RUN echo a \\\n  && echo b"
	doc := Parse(body)

	lines := doc.Lines()
	require.Len(t, lines, 1)
	run, ok := lines[0].(*Instruction)
	require.True(t, ok)
	assert.Equal(t, "RUN", run.Verb)
	assert.Equal(t, "echo a   && echo b", run.Payload)
	assert.Equal(t, body, run.Raw())
	assert.Equal(t, body+"\n", doc.String())
}

func TestParse_ContinuationWithTrailingWhitespace(t *testing.T) {
	doc := Parse("RUN a \\   \n  b\n")
	lines := doc.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "a   b", lines[0].(*Instruction).Payload)
}

func TestParse_DanglingContinuationKept(t *testing.T) {
	body := "FROM alpine\nRUN a \\\n  b \\"
	doc := Parse(body)
	lines := doc.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "a   b ", lines[1].(*Instruction).Payload)
	assert.Equal(t, body+"\n", doc.String())
}

func TestParse_MultilineLabel(t *testing.T) {
	doc := Parse("LABEL a=1 \\\n      b=\"two\" \\\n      c=3\n")
	assert.Equal(t, map[string]string{"a": "1", "b": "two", "c": "3"}, doc.Labels())
}

func TestParse_VerbWithoutPayload(t *testing.T) {
	doc := Parse("FROM alpine\nHEALTHCHECK\n")
	in := doc.Lines()[1].(*Instruction)
	assert.Equal(t, "HEALTHCHECK", in.Verb)
	assert.Equal(t, "", in.Payload)
}

func TestParse_LabelVerbIsCaseSensitive(t *testing.T) {
	doc := Parse("label a=1\nLABEL b=2\n")
	assert.Equal(t, map[string]string{"b": "2"}, doc.Labels())
	assert.False(t, doc.Lines()[0].(*Instruction).IsLabel())
}

func TestLabels_LaterLineWins(t *testing.T) {
	doc := Parse("FROM alpine\nLABEL v=1 a=x\nRUN true\nLABEL v=2\n")
	assert.Equal(t, "2", doc.Labels()["v"])
	assert.Len(t, doc.Lines(), 4)

	// setLabel targets the first line declaring the key.
	doc.SetLabel("v", "3")
	lines := doc.Lines()
	assert.Equal(t, `LABEL "v"="3" "a"="x"`, lines[1].String())
	assert.Equal(t, "LABEL v=2", lines[3].String())
	assert.Equal(t, "2", doc.Labels()["v"])
}

func TestLabels_ReturnsCopy(t *testing.T) {
	doc := Parse("LABEL a=1\n")
	labels := doc.Labels()
	labels["a"] = "changed"
	labels["b"] = "new"

	assert.Equal(t, map[string]string{"a": "1"}, doc.Labels())
	assert.Equal(t, "LABEL a=1\n", doc.String())
}

func TestSetLabel_ExistingKey(t *testing.T) {
	doc := Parse(sampleDockerfile)
	before := doc.Lines()
	raws := make([]string, len(before))
	for i, l := range before {
		raws[i] = l.String()
	}

	doc.SetLabel("org.opencontainers.image.version", "2.0.0")

	v, ok := doc.Label("org.opencontainers.image.version")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", v)

	after := doc.Lines()
	require.Len(t, after, len(before))
	for i, l := range after {
		if i == 11 {
			assert.Equal(t, `LABEL "org.opencontainers.image.version"="2.0.0" "vendor"="acme"`, l.String())
			assert.True(t, l.(*Instruction).Touched())
			continue
		}
		assert.Equal(t, raws[i], l.String(), "line %d changed", i)
	}
}

func TestSetLabel_TouchedLineDropsIndentAndContinuation(t *testing.T) {
	doc := Parse("FROM alpine\n  LABEL a=1 \\\n    b=2\n")
	doc.SetLabel("b", "3")
	assert.Equal(t, "FROM alpine\nLABEL \"a\"=\"1\" \"b\"=\"3\"\n", doc.String())
}

func TestSetLabel_NewKey(t *testing.T) {
	body := "FROM alpine\nLABEL a=1\n"
	doc := Parse(body)
	doc.SetLabel("src", "https://example.com/repo.git")

	assert.Equal(t, body+"LABEL \"src\"=\"https://example.com/repo.git\"\n", doc.String())
	assert.Equal(t, "https://example.com/repo.git", doc.Labels()["src"])

	// The appended line is itself editable.
	doc.SetLabel("src", "https://example.com/other.git")
	assert.Equal(t, body+"LABEL \"src\"=\"https://example.com/other.git\"\n", doc.String())
}

func TestSetLabel_EmptyDocument(t *testing.T) {
	doc := Parse("")
	doc.SetLabel("a", "b")
	assert.Equal(t, "LABEL \"a\"=\"b\"\n", doc.String())
}

func TestSetLabel_JSONQuoting(t *testing.T) {
	doc := Parse("LABEL desc=plain\n")
	doc.SetLabel("desc", `say "hi" <b>&é`)
	assert.Equal(t, "LABEL \"desc\"=\"say \\\"hi\\\" <b>&é\"\n", doc.String())
	assert.Equal(t, `say "hi" <b>&é`, doc.Labels()["desc"])
}

func TestRemoveLabel(t *testing.T) {
	doc := Parse("FROM alpine\nLABEL a=1 b=2\nLABEL a=3\nRUN true\n")

	assert.True(t, doc.RemoveLabel("a"))
	assert.Equal(t, "FROM alpine\nLABEL \"b\"=\"2\"\nRUN true\n", doc.String())
	assert.False(t, doc.RemoveLabel("a"))
	assert.Equal(t, map[string]string{"b": "2"}, doc.Labels())
}

func TestComment_SetText(t *testing.T) {
	doc := Parse("#   spaced comment\nFROM alpine\n")
	c := doc.Lines()[0].(*Comment)
	assert.Equal(t, "  spaced comment", c.Text())
	assert.Equal(t, "#   spaced comment", c.String())

	c.SetText("rewritten")
	assert.Equal(t, "# rewritten\nFROM alpine\n", doc.String())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "directive", KindDirective.String())
	assert.Equal(t, "comment", KindComment.String())
	assert.Equal(t, "instruction", KindInstruction.String())
	assert.Equal(t, "opaque", KindOpaque.String())
}

func TestDocuments_AreIndependent(t *testing.T) {
	a := Parse("LABEL v=1\n")
	b := Parse("LABEL v=1\n")
	a.SetLabel("v", "2")
	assert.Equal(t, "1", b.Labels()["v"])
}

func TestParse_DirectiveNeedsSpaceAfterHash(t *testing.T) {
	doc := Parse("#escape=`\nRUN a `\n")
	lines := doc.Lines()
	require.Len(t, lines, 2)

	assert.Equal(t, KindComment, lines[0].Kind())
	assert.Equal(t, DefaultEscape, doc.Escape())
	assert.Equal(t, "a `", lines[1].(*Instruction).Payload)
}

func TestParse_EscapeDirectiveNameIsExact(t *testing.T) {
	doc := Parse("# ESCAPE=`\nRUN a `\n")
	lines := doc.Lines()
	require.Len(t, lines, 2)

	directive := lines[0].(*Directive)
	assert.Equal(t, "ESCAPE", directive.Name)
	assert.Equal(t, DefaultEscape, doc.Escape())
	assert.Equal(t, "a `", lines[1].(*Instruction).Payload)
}

func TestSetLabel_KeepsLineSeparatorsLiteral(t *testing.T) {
	doc := Parse("LABEL a=1\n")
	doc.SetLabel("a", "x\u2028y\u2029z\\u2028")
	assert.Equal(t, "LABEL \"a\"=\"x\u2028y\u2029z\\\\u2028\"\n", doc.String())
	assert.Equal(t, "x\u2028y\u2029z\\u2028", doc.Labels()["a"])
}
