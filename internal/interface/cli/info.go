package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docet-dev/docet/internal/core/db"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info ID",
	Short: "Show details about one assistant",
	Long: `Show the backend's knowledge-base statistics for an assistant, plus what
the local ledger recorded when this client created it.

Examples:
  docet info petstore`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	id := args[0]

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.client.AssistantStats(cmd.Context(), id)
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("assistant %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	entry, err := a.ledger.GetAssistant(id)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	succeeded, failed, err := a.ledger.ProvisionAttempts(id)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	fmt.Print(infoReport(stats, entry, succeeded, failed, time.Now()))
	return nil
}

func infoReport(stats *gateway.Stats, entry *db.Assistant, succeeded, failed int, now time.Time) string {
	var report strings.Builder

	report.WriteString("═══════════════════════════════════════════════════\n")
	report.WriteString(fmt.Sprintf(" ASSISTANT: %s\n", stats.AssistantID))
	report.WriteString("═══════════════════════════════════════════════════\n\n")

	report.WriteString(fmt.Sprintf("Collection: %s\n", valueOr(stats.CollectionName)))
	report.WriteString(fmt.Sprintf("Documents: %s\n", humanize.Comma(int64(stats.DocumentCount))))
	report.WriteString(fmt.Sprintf("Embedding model: %s\n", valueOr(stats.EmbeddingModel)))
	report.WriteString(fmt.Sprintf("Retrieval: %s\n", enabled(stats.RAGEnabled)))
	if stats.Error != "" {
		report.WriteString(fmt.Sprintf("Vector store error: %s\n", stats.Error))
	}

	if len(stats.LLM) > 0 {
		report.WriteString("\nLLM service:\n")
		keys := make([]string, 0, len(stats.LLM))
		for k := range stats.LLM {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			report.WriteString(fmt.Sprintf("  %s: %v\n", k, stats.LLM[k]))
		}
	}

	report.WriteString("\nLocal ledger:\n")
	if entry == nil {
		report.WriteString("  Not created from this machine\n")
		return report.String()
	}
	report.WriteString(fmt.Sprintf("  Source: %s\n", entry.SourceURL))
	if entry.DetectedType != "" {
		report.WriteString(fmt.Sprintf("  Detected type: %s\n", entry.DetectedType))
	}
	if entry.RequestedID != "" && entry.RequestedID != entry.AssistantID {
		report.WriteString(fmt.Sprintf("  Requested id: %s\n", entry.RequestedID))
	}
	report.WriteString(fmt.Sprintf("  Created: %s\n", humanize.RelTime(entry.CreatedAt, now, "ago", "from now")))
	report.WriteString(fmt.Sprintf("  Last ingested: %s\n", humanize.RelTime(entry.UpdatedAt, now, "ago", "from now")))
	report.WriteString(fmt.Sprintf("  Attempts: %d succeeded, %d failed\n", succeeded, failed))

	return report.String()
}

func valueOr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
