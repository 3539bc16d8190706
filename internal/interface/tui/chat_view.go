package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/core/session"
)

// chatKeyMap scrolls the transcript without stealing keys the draft needs
var chatKeyMap = viewport.KeyMap{
	PageDown: key.NewBinding(key.WithKeys("pgdown")),
	PageUp:   key.NewBinding(key.WithKeys("pgup")),
	Up:       key.NewBinding(key.WithKeys("up")),
	Down:     key.NewBinding(key.WithKeys("down")),
}

func (m Model) openChat(a models.AssistantSummary) (tea.Model, tea.Cmd) {
	m.chat = m.newSession(a.AssistantID, a.SourceURL)

	m.viewport = viewport.New(m.width, m.chatHeight())
	m.viewport.KeyMap = chatKeyMap

	m.chatInput = textinput.New()
	m.chatInput.Placeholder = "Ask about endpoints, parameters, examples..."
	m.chatInput.CharLimit = 4000
	m.chatInput.Width = max(m.width-4, 20)

	m.notice = ""
	m.mode = chatView
	m.refreshTranscript()
	return m, tea.Batch(validateSession(m.ctx, m.chat), m.spinner.Tick)
}

// chatHeight leaves room for the header, input and status lines
func (m Model) chatHeight() int {
	return max(m.height-6, 3)
}

func (m *Model) refreshTranscript() {
	if m.chat == nil {
		return
	}
	state := m.chat.Snapshot()
	m.viewport.SetContent(renderTranscript(state.Transcript, m.width))
	m.viewport.GotoBottom()
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	phase := m.chat.Phase()

	switch msg.String() {
	case "esc":
		// Leaving drops the session; a reply still in flight is discarded
		m.chat = nil
		m.chatInput.Blur()
		m.mode = listView
		return m, nil
	}

	switch phase {
	case session.PhaseValidating, session.PhaseNotFound:
		return m, nil
	}

	switch msg.String() {
	case "enter":
		ex, ok := m.chat.Submit(m.chatInput.Value())
		if !ok {
			return m, nil
		}
		m.chatInput.Reset()
		m.notice = ""
		m.refreshTranscript()
		return m, tea.Batch(runExchange(m.ctx, m.chat, ex), m.spinner.Tick)

	case "ctrl+l":
		m.chat.Clear()
		m.notice = ""
		m.refreshTranscript()
		return m, nil

	case "ctrl+y":
		if reply, ok := lastReply(m.chat.Snapshot().Transcript); ok {
			return m, copyToClipboard(reply)
		}
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	m.chat.SetDraft(m.chatInput.Value())
	return m, cmd
}

// lastReply returns the newest assistant message's text
func lastReply(transcript []models.Message) (string, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == models.RoleAssistant {
			return transcript[i].Content, true
		}
	}
	return "", false
}

func (m Model) viewChat() string {
	state := m.chat.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Assistant: " + state.AssistantID))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(m.width, 10)))
	b.WriteString("\n")

	switch state.Phase {
	case session.PhaseValidating:
		b.WriteString("\n" + m.spinner.View() + " Checking assistant...\n\n")
		b.WriteString(helpStyle.Render("esc back"))
		return b.String()

	case session.PhaseNotFound:
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Assistant %q was not found.", state.AssistantID)) + "\n")
		b.WriteString("It may have been deleted. Pick another from the list or create a new one.\n\n")
		b.WriteString(helpStyle.Render("esc back"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case state.Phase == session.PhaseSending:
		b.WriteString(m.spinner.View() + " Thinking...")
	case m.notice != "":
		b.WriteString(noticeStyle.Render(m.notice))
	case state.Phase == session.PhaseIdleError:
		b.WriteString(errorStyle.Render("Could not verify the assistant; messages may fail"))
	}
	b.WriteString("\n")

	b.WriteString(m.chatInput.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("enter send • ctrl+l clear • ctrl+y copy reply • pgup/pgdn scroll • esc back  %3.f%%", m.viewport.ScrollPercent()*100)))
	return b.String()
}
