package cli

import (
	"fmt"
	"strings"

	"github.com/docet-dev/docet/internal/core/content"
	"github.com/docet-dev/docet/internal/core/session"
	"github.com/docet-dev/docet/internal/interface/tui"
	"github.com/spf13/cobra"
)

var (
	askAssistant string
	askHTML      bool
	askWidth     int
)

var askCmd = &cobra.Command{
	Use:   "ask MESSAGE...",
	Short: "Ask an assistant a single question",
	Long: `Send one message to an assistant and print its reply with the sources it used.

Examples:
  docet ask --assistant petstore "How do I add a pet?"
  docet ask --assistant petstore --html "List the endpoints" > reply.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askAssistant, "assistant", "a", "", "Assistant id")
	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print the reply as an HTML fragment")
	askCmd.Flags().IntVar(&askWidth, "width", 100, "Wrap width for terminal output")
	_ = askCmd.MarkFlagRequired("assistant")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := session.New(a.client, askAssistant, session.Options{
		WelcomeTemplate: a.cfg.WelcomeTemplate,
		FallbackReply:   a.cfg.FallbackReply,
		Logger:          a.log,
	})

	if ctrl.Validate(cmd.Context()) == session.PhaseNotFound {
		return fmt.Errorf("assistant %q not found (see 'docet list')", askAssistant)
	}

	spinner := session.NewSpinner("Thinking")
	spinner.Start()
	reply, ok := ctrl.Send(cmd.Context(), strings.Join(args, " "))
	spinner.Stop()
	if !ok {
		return fmt.Errorf("nothing to send")
	}

	if askHTML {
		fmt.Print(content.Markup(content.Classify(reply.Content)))
	} else {
		fmt.Println(tui.RenderContent(reply.Content, askWidth))
		if len(reply.Sources) > 0 {
			fmt.Println()
			fmt.Println(tui.RenderSources(reply.Sources))
		}
	}

	if state := ctrl.Snapshot(); state.LastError != "" {
		return fmt.Errorf("request failed: %s", state.LastError)
	}
	return nil
}
