package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/dustin/go-humanize"
)

type assistantListItem struct {
	assistant models.AssistantSummary
}

func (i assistantListItem) FilterValue() string {
	return i.assistant.AssistantID + " " + i.assistant.SourceURL
}

func (i assistantListItem) Title() string {
	return i.assistant.AssistantID
}

func (i assistantListItem) Description() string {
	parts := []string{fmt.Sprintf("%s documents", humanize.Comma(int64(i.assistant.DocumentCount)))}
	parts = append(parts, "updated "+formatUpdated(i.assistant.LastUpdated))
	if i.assistant.SourceURL != "" {
		parts = append(parts, i.assistant.SourceURL)
	}
	return strings.Join(parts, " | ")
}

type assistantDelegate struct {
	list.DefaultDelegate
}

func (d assistantDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	a, ok := item.(assistantListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	title := a.Title()
	desc := a.Description()

	if index == m.Index() {
		title = selectedItemStyle.Render(title)
		desc = selectedItemStyle.Faint(true).Render(desc)
	} else {
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func createAssistantList(assistants []models.AssistantSummary, width, height int) list.Model {
	items := make([]list.Item, len(assistants))
	for i, a := range assistants {
		items[i] = assistantListItem{assistant: a}
	}

	delegate := assistantDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(items, delegate, width, height)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false) // filtering goes through provision.ParseFilter

	return l
}

// listHeight leaves room for the title, filter and help lines
func (m Model) listHeight() int {
	return max(m.height-4, 4)
}

// rebuildList applies the current filter to the loaded assistants
func (m *Model) rebuildList() {
	assistants := provision.ParseFilter(m.filterInput.Value(), time.Now()).Apply(m.listing.Assistants)
	cursor := m.list.Index()
	m.list = createAssistantList(assistants, m.width, m.listHeight())
	if cursor < len(assistants) {
		m.list.Select(cursor)
	}
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "enter":
			m.filtering = false
			m.filterInput.Blur()
			return m, nil
		case "esc":
			m.filtering = false
			m.filterInput.Blur()
			m.filterInput.SetValue("")
			m.rebuildList()
			return m, nil
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.rebuildList()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m.quit()

	case "?":
		m.prevMode = listView
		m.mode = helpView
		return m, nil

	case "r":
		if m.listing.Status == provision.ListLoading {
			return m, nil
		}
		m.notice = ""
		m.listing = provision.Listing{Status: provision.ListLoading}
		return m, tea.Batch(loadAssistants(m.ctx, m.workflow), m.spinner.Tick)

	case "n":
		return m.openForm()

	case "/":
		m.filtering = true
		cmd := m.filterInput.Focus()
		return m, cmd

	case "enter":
		if selected, ok := m.list.SelectedItem().(assistantListItem); ok {
			return m.openChat(selected.assistant)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Documentation assistants"))
	b.WriteString("\n")

	switch m.listing.Status {
	case provision.ListLoading:
		b.WriteString("\n" + m.spinner.View() + " Loading assistants...\n")
		return b.String()

	case provision.ListFailed:
		b.WriteString("\n" + errorStyle.Render("Could not load assistants: "+m.listing.Reason) + "\n\n")
		b.WriteString("r retry • n new assistant • q quit")
		return b.String()
	}

	if m.filtering || m.filterInput.Value() != "" {
		b.WriteString(m.filterInput.View())
	}
	b.WriteString("\n")

	switch {
	case len(m.listing.Assistants) == 0:
		b.WriteString("No assistants yet. Press n to create one.\n")
	case len(m.list.Items()) == 0:
		b.WriteString("No assistants match the filter.\n")
	default:
		b.WriteString(m.list.View() + "\n")
	}

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(helpStyle.Render("↑/k up • ↓/j down • enter chat • n new • / filter • r refresh • q quit • ? more"))
	return b.String()
}

// formatUpdated shows ledger-style timestamps relative to now; anything else verbatim
func formatUpdated(lastUpdated string) string {
	t, err := time.ParseInLocation("2006-01-02 15:04", lastUpdated, time.Local)
	if err != nil {
		return lastUpdated
	}
	return humanize.Time(t)
}
