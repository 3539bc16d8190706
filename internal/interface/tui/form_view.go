package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/provision"
)

func (m Model) openForm() (tea.Model, tea.Cmd) {
	form := m.workflow.OpenForm()

	m.urlInput = textinput.New()
	m.urlInput.Prompt = ""
	m.urlInput.Placeholder = "https://petstore.swagger.io/v2/swagger.json"
	m.urlInput.Width = max(m.width-20, 20)

	m.idInput = textinput.New()
	m.idInput.Prompt = ""
	m.idInput.CharLimit = 64
	m.idInput.Width = max(m.width-20, 20)
	m.idInput.SetValue(form.AssistantID)

	m.formFocus = 0
	m.analysis = ""
	m.notice = ""
	m.mode = formView
	m.idInput.Blur()
	cmd := m.urlInput.Focus()
	return m, cmd
}

func (m *Model) focusFormField(i int) tea.Cmd {
	m.formFocus = i
	if i == 0 {
		m.idInput.Blur()
		return m.urlInput.Focus()
	}
	m.urlInput.Blur()
	return m.idInput.Focus()
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form, ok := m.workflow.Form()
	if !ok {
		m.mode = listView
		return m, nil
	}

	switch msg.String() {
	case "esc":
		// An in-flight submission keeps running; its result no longer lands here
		m.workflow.Cancel()
		m.mode = listView
		return m, nil

	case "tab", "shift+tab", "up", "down":
		cmd := m.focusFormField(1 - m.formFocus)
		return m, cmd

	case "enter":
		if form.Submitting {
			return m, nil
		}
		m.analysis = ""
		return m, tea.Batch(submitForm(m.ctx, m.workflow), m.spinner.Tick)

	case "ctrl+a":
		if form.Submitting {
			return m, nil
		}
		m.analysis = "Analyzing..."
		return m, analyzeSource(m.ctx, m.workflow)
	}

	if form.Submitting {
		return m, nil
	}

	var cmd tea.Cmd
	if m.formFocus == 0 {
		m.urlInput, cmd = m.urlInput.Update(msg)
		m.workflow.SetSourceURL(m.urlInput.Value())
	} else {
		m.idInput, cmd = m.idInput.Update(msg)
		m.workflow.SetAssistantID(m.idInput.Value())
	}
	return m, cmd
}

func (m Model) handleCreated(msg assistantCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// The form, if still open, carries the user-facing reason
		return m, nil
	}

	m.notice = fmt.Sprintf("Created assistant %s", msg.id)
	// A cancelled submission may finish while a newer form is open
	if _, open := m.workflow.Form(); !open && m.mode == formView {
		m.mode = listView
	}
	m.listing = provision.Listing{Status: provision.ListLoading}
	return m, tea.Batch(loadAssistants(m.ctx, m.workflow), m.spinner.Tick)
}

func describeAnalysis(a *gateway.Analysis, err error) string {
	switch {
	case errors.Is(err, provision.ErrValidation):
		return "Enter a source URL to analyze"
	case errors.Is(err, provision.ErrNoForm):
		return ""
	case err != nil:
		return "Analysis failed: " + err.Error()
	}

	var parts []string
	if a.Supported() {
		parts = append(parts, "✓ Supported")
	} else {
		parts = append(parts, "✗ "+a.Status)
	}
	if a.DetectedType != "" {
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", a.DetectedType, a.Confidence*100))
	}
	if a.Title != "" {
		parts = append(parts, a.Title)
	}
	if a.Error != "" {
		parts = append(parts, a.Error)
	}
	return strings.Join(parts, " • ")
}

func (m Model) viewForm() string {
	form, _ := m.workflow.Form()

	var b strings.Builder
	b.WriteString(titleStyle.Render("New assistant"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Source URL") + "\n")
	b.WriteString("  " + m.urlInput.View() + "\n\n")
	b.WriteString(labelStyle.Render("Assistant ID") + "\n")
	b.WriteString("  " + m.idInput.View() + "\n\n")

	switch {
	case form.Submitting:
		b.WriteString(m.spinner.View() + " Creating assistant. Ingestion can take a few minutes...\n")
	case form.Error != "":
		b.WriteString(errorStyle.Render(form.Error) + "\n")
	}
	if m.analysis != "" {
		b.WriteString(labelStyle.Render(m.analysis) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab switch field • enter create • ctrl+a analyze URL • esc cancel"))
	return b.String()
}
