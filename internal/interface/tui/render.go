package tui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/docet-dev/docet/internal/core/content"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
)

// RenderContent classifies assistant text and styles it for a terminal of the
// given width. Code lines are never wrapped.
func RenderContent(text string, width int) string {
	wrapWidth := width - 4
	if wrapWidth < 40 {
		wrapWidth = 40
	}

	blocks := content.Classify(text)
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, renderBlock(b, wrapWidth))
	}
	return strings.Join(lines, "\n")
}

func renderBlock(b content.Block, wrapWidth int) string {
	switch b.Kind {
	case content.KindEmpty:
		return ""
	case content.KindCode:
		// Keep the original line; a code line's markers are part of the code
		return codeBlockStyle.Render(Sanitize(b.Line))
	case content.KindHeader:
		return wordwrap.String(headerBlockStyle.Render(Sanitize(b.Text())), wrapWidth)
	case content.KindEndpoint:
		return wordwrap.String(renderSpans(b.Spans, endpointBlockStyle), wrapWidth)
	default:
		return wordwrap.String(renderSpans(b.Spans, lipgloss.NewStyle()), wrapWidth)
	}
}

func renderSpans(spans []content.Span, base lipgloss.Style) string {
	var sb strings.Builder
	for _, sp := range spans {
		text := Sanitize(sp.Text)
		switch sp.Kind {
		case content.SpanStrong:
			sb.WriteString(strongSpanStyle.Inherit(base).Render(text))
		case content.SpanCode:
			sb.WriteString(codeSpanStyle.Render(text))
		default:
			sb.WriteString(base.Render(text))
		}
	}
	return sb.String()
}

// Sanitize drops C0 and C1 control runes so backend text cannot smuggle
// escape sequences to the terminal. Tabs and newlines survive.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// RenderSources lists the documents behind a reply as "title (NN%)"
func RenderSources(sources []models.SourceReference) string {
	if len(sources) == 0 {
		return ""
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("%s (%d%%)", Sanitize(s.Title), s.Percent())
	}
	return sourceStyle.Render("Sources: " + strings.Join(parts, ", "))
}

// renderTranscript lays out a whole conversation for the chat viewport
func renderTranscript(messages []models.Message, width int) string {
	var b strings.Builder

	for i, msg := range messages {
		style, label := assistantStyle, "ASSISTANT"
		if msg.Role == models.RoleUser {
			style, label = userStyle, "YOU"
		}

		b.WriteString(style.Render(fmt.Sprintf("▸ %s", label)))
		b.WriteString(" ")
		b.WriteString(timestampStyle.Render(humanize.Time(msg.Timestamp)))
		b.WriteString("\n")

		if msg.Role == models.RoleUser {
			b.WriteString(wordwrap.String(Sanitize(msg.Content), max(width-4, 40)))
		} else {
			b.WriteString(RenderContent(msg.Content, width))
		}
		if sources := RenderSources(msg.Sources); sources != "" {
			b.WriteString("\n")
			b.WriteString(sources)
		}

		if i < len(messages)-1 {
			b.WriteString("\n\n")
		}
	}

	return b.String()
}
