package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/interface/tui"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
)

var retrieveWidth int

var retrieveCmd = &cobra.Command{
	Use:   "retrieve ID QUERY...",
	Short: "Show which documents an assistant would answer from",
	Long: `Run an assistant's document search without asking its model, and print
the ranked chunks with their similarity scores. Useful for checking an ingest.

Examples:
  docet retrieve petstore "how do I add a pet"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().IntVar(&retrieveWidth, "width", 160, "Truncate chunk text to this many columns")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	id := args[0]
	query := strings.Join(args[1:], " ")

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.client.TestRetrieval(cmd.Context(), id, query)
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("assistant %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Print(retrievalReport(r, retrieveWidth))
	return nil
}

func retrievalReport(r *gateway.Retrieval, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", tui.Sanitize(r.Query))
	if len(r.Chunks) == 0 {
		b.WriteString("No matching documents.\n")
		return b.String()
	}

	for _, c := range r.Chunks {
		fmt.Fprintf(&b, "\n%d. %s (%d%%)\n", c.Rank, tui.Sanitize(c.Source.Title), c.Source.Percent())
		if c.Source.URL != "" {
			b.WriteString(indent.String(tui.Sanitize(c.Source.URL), 3))
			b.WriteString("\n")
		}
		text := strings.Join(strings.Fields(tui.Sanitize(c.Content)), " ")
		if width > 0 {
			text = truncate.StringWithTail(text, uint(width), "…")
		}
		b.WriteString(indent.String(text, 3))
		b.WriteString("\n")
	}
	return b.String()
}
