package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/docet-dev/docet/internal/core/session"
)

type viewMode int

const (
	listView viewMode = iota
	formView
	chatView
	helpView
)

// SessionFactory starts a conversation with an assistant
type SessionFactory func(assistantID, sourceURL string) *session.Controller

type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	workflow   *provision.Workflow
	newSession SessionFactory

	mode     viewMode
	prevMode viewMode
	width    int
	height   int
	spinner  spinner.Model
	notice   string

	// Assistant list
	listing     provision.Listing
	list        list.Model
	filterInput textinput.Model
	filtering   bool

	// Create form
	urlInput  textinput.Model
	idInput   textinput.Model
	formFocus int
	analysis  string

	// Chat
	chat      *session.Controller
	viewport  viewport.Model
	chatInput textinput.Model
}

// New creates the root model. Cancelling ctx, or quitting, aborts every
// backend call the TUI started.
func New(ctx context.Context, wf *provision.Workflow, newSession SessionFactory) Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "id  source:<text>  after:<date>  docs:<n>"

	m := Model{
		ctx:         ctx,
		cancel:      cancel,
		workflow:    wf,
		newSession:  newSession,
		mode:        listView,
		width:       80,
		height:      24,
		spinner:     s,
		listing:     wf.Listing(),
		filterInput: filter,
	}
	m.list = createAssistantList(nil, m.width, m.listHeight())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadAssistants(m.ctx, m.workflow), m.spinner.Tick)
}

// busy reports whether something is waiting on the backend
func (m Model) busy() bool {
	if m.listing.Status == provision.ListLoading {
		return true
	}
	if f, ok := m.workflow.Form(); ok && f.Submitting {
		return true
	}
	if m.chat != nil {
		switch m.chat.Phase() {
		case session.PhaseValidating, session.PhaseSending:
			return true
		}
	}
	return false
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width, m.listHeight())
		if m.chat != nil {
			m.viewport.Width = m.width
			m.viewport.Height = m.chatHeight()
			m.refreshTranscript()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}

		// Mode-specific key handling
		switch m.mode {
		case listView:
			return m.updateList(msg)
		case formView:
			return m.updateForm(msg)
		case chatView:
			return m.updateChat(msg)
		case helpView:
			return m.updateHelp(msg)
		}

	case tea.MouseMsg:
		if m.mode == chatView && m.chat != nil {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case listLoadedMsg:
		m.listing = msg.listing
		m.rebuildList()
		return m, nil

	case assistantCreatedMsg:
		return m.handleCreated(msg)

	case sourceAnalyzedMsg:
		m.analysis = describeAnalysis(msg.analysis, msg.err)
		return m, nil

	case sessionValidatedMsg:
		if msg.ctrl != m.chat {
			return m, nil
		}
		m.refreshTranscript()
		if msg.phase != session.PhaseNotFound {
			cmd := m.chatInput.Focus()
			return m, cmd
		}
		return m, nil

	case replyMsg:
		if msg.ctrl != m.chat {
			return m, nil
		}
		m.refreshTranscript()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Clipboard unavailable: " + msg.err.Error()
		} else {
			m.notice = "Reply copied to clipboard"
		}
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	switch m.mode {
	case listView:
		return m.viewList()
	case formView:
		return m.viewForm()
	case chatView:
		return m.viewChat()
	case helpView:
		return m.viewHelp()
	}

	return ""
}
