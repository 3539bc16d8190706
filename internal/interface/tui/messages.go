package tui

import (
	"context"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/docet-dev/docet/internal/core/session"
)

type listLoadedMsg struct {
	listing provision.Listing
}

type assistantCreatedMsg struct {
	id  string
	err error
}

type sourceAnalyzedMsg struct {
	analysis *gateway.Analysis
	err      error
}

// Session results carry their controller so that replies for a chat the
// user already left are dropped.
type sessionValidatedMsg struct {
	ctrl  *session.Controller
	phase session.Phase
}

type replyMsg struct {
	ctrl  *session.Controller
	reply models.Message
}

type copiedMsg struct {
	err error
}

func loadAssistants(ctx context.Context, wf *provision.Workflow) tea.Cmd {
	return func() tea.Msg {
		return listLoadedMsg{listing: wf.Refresh(ctx)}
	}
}

func submitForm(ctx context.Context, wf *provision.Workflow) tea.Cmd {
	return func() tea.Msg {
		id, err := wf.Submit(ctx)
		return assistantCreatedMsg{id: id, err: err}
	}
}

func analyzeSource(ctx context.Context, wf *provision.Workflow) tea.Cmd {
	return func() tea.Msg {
		a, err := wf.Analyze(ctx)
		return sourceAnalyzedMsg{analysis: a, err: err}
	}
}

func validateSession(ctx context.Context, ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return sessionValidatedMsg{ctrl: ctrl, phase: ctrl.Validate(ctx)}
	}
}

func runExchange(ctx context.Context, ctrl *session.Controller, ex *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{ctrl: ctrl, reply: ex.Run(ctx)}
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}
