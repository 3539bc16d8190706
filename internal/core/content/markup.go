package content

import (
	"html"
	"strings"
)

// Markup renders the block as an HTML fragment. Every piece of source text is
// escaped; the only tags in the result are the <strong> and <code> wrappers for
// spans the classifier itself resolved.
func (b Block) Markup() string {
	var sb strings.Builder
	for _, sp := range b.Spans {
		text := html.EscapeString(sp.Text)
		switch sp.Kind {
		case SpanStrong:
			sb.WriteString("<strong>" + text + "</strong>")
		case SpanCode:
			sb.WriteString("<code>" + text + "</code>")
		default:
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// Text returns the block's text with inline markers removed
func (b Block) Text() string {
	var sb strings.Builder
	for _, sp := range b.Spans {
		sb.WriteString(sp.Text)
	}
	return sb.String()
}

// Markup renders a whole message as HTML, one element per block.
func Markup(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Kind == KindEmpty {
			sb.WriteString("<br>\n")
			continue
		}
		sb.WriteString(`<div class="` + string(b.Kind) + `">`)
		sb.WriteString(b.Markup())
		sb.WriteString("</div>\n")
	}
	return sb.String()
}
