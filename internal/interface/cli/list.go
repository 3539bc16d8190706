package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	listSince string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List documentation assistants",
	Long: `List every assistant the backend knows, newest information first.

Source URLs and update times the backend does not report are filled in
from the local ledger for assistants created with this client.

Filter tokens:
  source:<text>   source URL contains text
  after:<date>    updated after a date
  docs:<n>        at least n documents
Remaining words match the assistant id.

Examples:
  docet list
  docet list --since "2 days ago"
  docet list stripe docs:100
  docet list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listSince, "since", "", `Only assistants updated since (e.g. "yesterday", "2024-11-01")`)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	filter := provision.ParseFilter(strings.Join(args, " "), now)
	if listSince != "" {
		since, ok := provision.ParseDate(listSince, now)
		if !ok {
			return fmt.Errorf("could not understand --since %q", listSince)
		}
		filter.After = since
		filter.HasAfter = true
	}

	listing := a.workflow().Refresh(cmd.Context())
	if listing.Status == provision.ListFailed {
		return fmt.Errorf("failed to list assistants: %s", listing.Reason)
	}
	assistants := filter.Apply(listing.Assistants)

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assistants)
	}

	if len(assistants) == 0 {
		if filter.Empty() {
			fmt.Println("No assistants found. Run 'docet create --url <docs>' to create one.")
		} else {
			fmt.Println("No assistants match the filter.")
		}
		return nil
	}

	fmt.Printf("Showing %d assistant(s)\n\n", len(assistants))
	for i, s := range assistants {
		printSummary(i+1, s, now)
	}
	return nil
}

func printSummary(n int, s models.AssistantSummary, now time.Time) {
	fmt.Printf("[%d] %s\n", n, s.AssistantID)
	if s.SourceURL != "" {
		fmt.Printf("    Source: %s\n", s.SourceURL)
	}
	fmt.Printf("    Documents: %s", humanize.Comma(int64(s.DocumentCount)))
	if s.ChunkCount > 0 {
		fmt.Printf(" (%s chunks)", humanize.Comma(int64(s.ChunkCount)))
	}
	fmt.Println()
	fmt.Printf("    Updated: %s\n", formatUpdated(s.LastUpdated, now))
	fmt.Println()
}

// formatUpdated shows ledger timestamps relative to now; anything else verbatim
func formatUpdated(lastUpdated string, now time.Time) string {
	t, err := time.ParseInLocation("2006-01-02 15:04", lastUpdated, time.Local)
	if err != nil {
		return lastUpdated
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
