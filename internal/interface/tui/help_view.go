package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	}

	// Any other key returns to where help was opened
	m.mode = m.prevMode
	return m, nil
}

func (m Model) viewHelp() string {
	help := `
Docet - Help
════════════

ASSISTANT LIST
──────────────
  ↑/↓, j/k     Navigate assistants
  Enter        Chat with the selected assistant
  n            Create a new assistant
  /            Filter (words match the id; source:<text>,
               after:<date> such as after:yesterday, docs:<n>)
  r            Refresh, or retry after a failed load
  ?            Show this help
  q            Quit

NEW ASSISTANT
─────────────
  Tab          Switch between source URL and assistant ID
  Enter        Create (re-ingests if the id exists)
  Ctrl+A       Analyze the source URL without creating
  Esc          Cancel

CHAT
────
  Enter        Send message
  Ctrl+L       Clear the conversation
  Ctrl+Y       Copy the last reply to the clipboard
  PgUp/PgDn    Scroll the transcript
  Esc          Back to the assistant list

Ctrl+C quits from anywhere.

Press any key to go back
`

	return helpStyle.Render(help)
}
