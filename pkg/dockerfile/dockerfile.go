// Package dockerfile parses Dockerfiles into an editable line model and writes
// them back without disturbing anything that was not edited.
//
// The grammar is deliberately lax: there is no reject state. Lines that are
// not directives, comments or instructions are kept as opaque text, and LABEL
// payloads are split by Tokenize, which tolerates malformed quoting.
package dockerfile

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultEscape is the line continuation marker used unless an escape
// directive overrides it.
const DefaultEscape = `\`

// LabelVerb is the instruction whose payload is exposed as key/value pairs.
const LabelVerb = "LABEL"

var directivePattern = regexp.MustCompile(`^\s*#\s+([A-Za-z][A-Za-z0-9_-]*)\s*=(.*)$`)

// Kind identifies a line variant.
type Kind int

const (
	KindOpaque Kind = iota
	KindDirective
	KindComment
	KindInstruction
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDirective:
		return "directive"
	case KindComment:
		return "comment"
	case KindInstruction:
		return "instruction"
	default:
		return "opaque"
	}
}

// Line is one logical line of a Dockerfile.
type Line interface {
	Kind() Kind
	// Raw is the source text, including continuation lines.
	Raw() string
	// String is the text written back on serialization.
	String() string
}

// Directive is a leading parser directive such as `# escape=` or `# syntax=`.
type Directive struct {
	Name  string
	Value string
	raw   string
}

func (d *Directive) Kind() Kind     { return KindDirective }
func (d *Directive) Raw() string    { return d.raw }
func (d *Directive) String() string { return d.raw }

// Comment is a `#` line outside the directive region.
type Comment struct {
	text    string
	raw     string
	changed bool
}

func (c *Comment) Kind() Kind  { return KindComment }
func (c *Comment) Raw() string { return c.raw }

// Text returns the comment body without the leading `#`.
func (c *Comment) Text() string { return c.text }

// SetText replaces the comment body; the line is then written as `# <text>`.
func (c *Comment) SetText(text string) {
	c.text = text
	c.changed = true
}

func (c *Comment) String() string {
	if c.changed {
		return "# " + c.text
	}
	return c.raw
}

// Instruction is a `<VERB> <payload>` line. Only LABEL instructions carry
// labels.
type Instruction struct {
	Verb    string
	Payload string
	raw     string
	labels  []pair
	touched bool
}

func (in *Instruction) Kind() Kind  { return KindInstruction }
func (in *Instruction) Raw() string { return in.raw }

// IsLabel reports whether the instruction is a LABEL.
func (in *Instruction) IsLabel() bool { return in.Verb == LabelVerb }

// Touched reports whether a label on this line changed since parsing.
func (in *Instruction) Touched() bool { return in.touched }

// Labels returns a copy of the line's labels.
func (in *Instruction) Labels() map[string]string {
	out := make(map[string]string, len(in.labels))
	for _, p := range in.labels {
		out[p.Key] = p.Value
	}
	return out
}

func (in *Instruction) lookup(key string) int {
	for i, p := range in.labels {
		if p.Key == key {
			return i
		}
	}
	return -1
}

func (in *Instruction) String() string {
	if !in.touched {
		return in.raw
	}
	var b strings.Builder
	b.WriteString(in.Verb)
	for _, p := range in.labels {
		b.WriteByte(' ')
		b.WriteString(jsonQuote(p.Key))
		b.WriteByte('=')
		b.WriteString(jsonQuote(p.Value))
	}
	return b.String()
}

// Opaque is a line that is neither comment nor instruction, usually blank.
type Opaque struct {
	raw string
}

func (o *Opaque) Kind() Kind     { return KindOpaque }
func (o *Opaque) Raw() string    { return o.raw }
func (o *Opaque) String() string { return o.raw }

// Document is a parsed Dockerfile. It is not safe for concurrent mutation.
type Document struct {
	escape string
	lines  []Line
}

// New returns an empty document using the default escape marker.
func New() *Document {
	return &Document{escape: DefaultEscape}
}

// Parse builds a document from a Dockerfile body. It never fails; empty input
// yields an empty document.
func Parse(body string) *Document {
	doc := New()
	body = strings.TrimSpace(body)
	if body == "" {
		return doc
	}

	var (
		inDirectives = true
		pending      bool
		clean        strings.Builder
		raw          strings.Builder
	)

	for _, line := range strings.Split(body, "\n") {
		if inDirectives {
			if m := directivePattern.FindStringSubmatch(line); m != nil {
				value := strings.TrimSpace(m[2])
				if m[1] == "escape" && value != "" {
					doc.escape = value
				}
				doc.lines = append(doc.lines, &Directive{Name: m[1], Value: value, raw: line})
				continue
			}
			inDirectives = false
		}

		if head, ok := cutContinuation(line, doc.escape); ok {
			clean.WriteString(head)
			raw.WriteString(line)
			raw.WriteByte('\n')
			pending = true
			continue
		}

		clean.WriteString(line)
		raw.WriteString(line)
		doc.feedLine(clean.String(), raw.String())
		clean.Reset()
		raw.Reset()
		pending = false
	}

	// Input ending inside a continuation still keeps its text.
	if pending {
		doc.feedLine(clean.String(), strings.TrimSuffix(raw.String(), "\n"))
	}
	return doc
}

// cutContinuation returns the part of line before a trailing escape marker.
func cutContinuation(line, escape string) (string, bool) {
	trimmed := strings.TrimRightFunc(line, unicode.IsSpace)
	if escape == "" || !strings.HasSuffix(trimmed, escape) {
		return "", false
	}
	return strings.TrimSuffix(trimmed, escape), true
}

// feedLine classifies one logical line and appends it to the document.
func (d *Document) feedLine(content, raw string) Line {
	line := classify(content, raw)
	d.lines = append(d.lines, line)
	return line
}

func classify(content, raw string) Line {
	body := strings.TrimLeftFunc(content, unicode.IsSpace)
	if body == "" {
		return &Opaque{raw: raw}
	}

	if strings.HasPrefix(body, "#") {
		text := strings.TrimPrefix(body, "#")
		if strings.HasPrefix(text, " ") || strings.HasPrefix(text, "\t") {
			text = text[1:]
		}
		return &Comment{text: text, raw: raw}
	}

	verb := body
	payload := ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		verb = body[:i]
		payload = strings.TrimLeftFunc(body[i:], unicode.IsSpace)
	}
	in := &Instruction{Verb: verb, Payload: payload, raw: raw}
	if in.IsLabel() {
		in.labels = tokenizePairs(payload)
	}
	return in
}

// Escape returns the active line continuation marker.
func (d *Document) Escape() string { return d.escape }

// Lines returns the document lines in order. The slice is a copy; the lines
// themselves are shared.
func (d *Document) Lines() []Line {
	return append([]Line(nil), d.lines...)
}

// Labels merges every LABEL line in document order; later lines win.
func (d *Document) Labels() map[string]string {
	out := make(map[string]string)
	for _, in := range d.labelLines() {
		for _, p := range in.labels {
			out[p.Key] = p.Value
		}
	}
	return out
}

// Label returns the effective value of a single label.
func (d *Document) Label(key string) (string, bool) {
	v, ok := d.Labels()[key]
	return v, ok
}

// SetLabel updates the first LABEL line declaring key, or appends a new LABEL
// line when none does. Only the updated line is re-rendered.
func (d *Document) SetLabel(key, value string) {
	for _, in := range d.labelLines() {
		if i := in.lookup(key); i >= 0 {
			in.labels[i].Value = value
			in.touched = true
			return
		}
	}

	in := &Instruction{
		Verb:   LabelVerb,
		labels: []pair{{Key: key, Value: value}},
	}
	in.Payload = jsonQuote(key) + "=" + jsonQuote(value)
	in.raw = in.Verb + " " + in.Payload
	d.lines = append(d.lines, in)
}

// RemoveLabel drops key from every LABEL line declaring it. A LABEL line left
// without labels is removed. It reports whether anything changed.
func (d *Document) RemoveLabel(key string) bool {
	removed := false
	kept := d.lines[:0]
	for _, line := range d.lines {
		in, ok := line.(*Instruction)
		if ok && in.IsLabel() {
			if i := in.lookup(key); i >= 0 {
				in.labels = append(in.labels[:i], in.labels[i+1:]...)
				in.touched = true
				removed = true
				if len(in.labels) == 0 {
					continue
				}
			}
		}
		kept = append(kept, line)
	}
	d.lines = kept
	return removed
}

// String renders the document, one newline after every line.
func (d *Document) String() string {
	var b strings.Builder
	for _, line := range d.lines {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (d *Document) labelLines() []*Instruction {
	var out []*Instruction
	for _, line := range d.lines {
		if in, ok := line.(*Instruction); ok && in.IsLabel() {
			out = append(out, in)
		}
	}
	return out
}

// jsonQuote quotes s the way JSON.stringify does: no HTML escaping, and the
// line and paragraph separators U+2028 and U+2029 stay literal.
func jsonQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	start := 0
	for i, r := range s {
		if r != '\u2028' && r != '\u2029' {
			continue
		}
		b.WriteString(jsonEscape(s[start:i]))
		b.WriteRune(r)
		start = i + utf8.RuneLen(r)
	}
	b.WriteString(jsonEscape(s[start:]))
	b.WriteByte('"')
	return b.String()
}

// jsonEscape returns the JSON string body of s, without the quotes.
func jsonEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}
