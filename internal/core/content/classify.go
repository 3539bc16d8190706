// Package content turns raw assistant text into typed display blocks.
//
// Classification is line-oriented: one input line yields one Block, and a line's
// kind never depends on its neighbours. Inline emphasis and code are returned as
// typed spans so that each renderer decides how to present them and raw text is
// never mistaken for trusted markup.
package content

import (
	"regexp"
	"strings"
)

// Kind is the visual treatment a line should get
type Kind string

const (
	KindEmpty    Kind = "empty"
	KindHeader   Kind = "header"
	KindCode     Kind = "code"
	KindEndpoint Kind = "endpoint"
	KindEmphasis Kind = "emphasis"
	KindPlain    Kind = "plain"
)

// SpanKind distinguishes literal text from inline markup the classifier resolved
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanStrong
	SpanCode
)

// Span is a run of text with one inline treatment
type Span struct {
	Kind SpanKind
	Text string
}

// Block is one classified line
type Block struct {
	Kind  Kind
	Line  string // original line, untouched
	Spans []Span
}

var (
	strongPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
	codePattern   = regexp.MustCompile("`([^`]+)`")
)

// Classify splits content into lines and classifies each one. It never fails;
// unbalanced markers are kept as literal text.
func Classify(content string) []Block {
	lines := strings.Split(content, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, classifyLine(strings.TrimSuffix(line, "\r")))
	}
	return blocks
}

func classifyLine(line string) Block {
	spans := parseInline(line)
	return Block{
		Kind:  kindOf(strings.TrimSpace(line), spans),
		Line:  line,
		Spans: spans,
	}
}

// kindOf applies the predicates in precedence order. The order matters because a
// line such as "**Run:** curl ..." satisfies more than one of them.
func kindOf(trimmed string, spans []Span) Kind {
	switch {
	case trimmed == "":
		return KindEmpty
	case isHeader(trimmed):
		return KindHeader
	case isCode(trimmed):
		return KindCode
	case isEndpoint(trimmed):
		return KindEndpoint
	case hasStrong(spans):
		return KindEmphasis
	default:
		return KindPlain
	}
}

// isHeader matches bolded labels: "**Operation ID:**" on its own, or a leading
// bold label that ends in a colon followed by its value ("**Operation ID:** getPet").
func isHeader(s string) bool {
	if !strings.HasPrefix(s, "**") || !strings.Contains(s, ":") {
		return false
	}
	if len(s) >= 4 && strings.HasSuffix(s, "**") {
		return true
	}
	m := strongPattern.FindStringSubmatchIndex(s)
	return m != nil && m[0] == 0 && strings.HasSuffix(s[m[2]:m[3]], ":")
}

func isCode(s string) bool {
	for _, marker := range []string{"curl", "POST", "GET", "```"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isEndpoint(s string) bool {
	return strings.HasPrefix(s, "/") &&
		(strings.Contains(s, "endpoint") || strings.Contains(s, "API"))
}

func hasStrong(spans []Span) bool {
	for _, sp := range spans {
		if sp.Kind == SpanStrong {
			return true
		}
	}
	return false
}

// parseInline resolves **strong** spans first, then `code` spans inside the text
// between them. Adjacent text spans are merged.
func parseInline(line string) []Span {
	var spans []Span
	last := 0
	for _, m := range strongPattern.FindAllStringSubmatchIndex(line, -1) {
		spans = appendCode(spans, line[last:m[0]])
		spans = append(spans, Span{Kind: SpanStrong, Text: line[m[2]:m[3]]})
		last = m[1]
	}
	spans = appendCode(spans, line[last:])
	return spans
}

func appendCode(spans []Span, segment string) []Span {
	last := 0
	for _, m := range codePattern.FindAllStringSubmatchIndex(segment, -1) {
		spans = appendText(spans, segment[last:m[0]])
		spans = append(spans, Span{Kind: SpanCode, Text: segment[m[2]:m[3]]})
		last = m[1]
	}
	return appendText(spans, segment[last:])
}

func appendText(spans []Span, text string) []Span {
	if text == "" {
		return spans
	}
	if n := len(spans); n > 0 && spans[n-1].Kind == SpanText {
		spans[n-1].Text += text
		return spans
	}
	return append(spans, Span{Kind: SpanText, Text: text})
}
