package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/docet-dev/docet/internal/core/session"
	"github.com/docet-dev/docet/internal/interface/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI",
	Long:  "Launch an interactive terminal UI for browsing, creating and chatting with documentation assistants",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	newSession := func(assistantID, sourceURL string) *session.Controller {
		return session.New(a.client, assistantID, session.Options{
			WelcomeTemplate: a.cfg.WelcomeTemplate,
			SourceURL:       sourceURL,
			FallbackReply:   a.cfg.FallbackReply,
			Logger:          a.log,
		})
	}

	model := tui.New(cmd.Context(), a.workflow(), newSession)
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
