package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the source types the backend can ingest",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.client.SupportedSources(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch supported sources: %w", err)
	}

	fmt.Printf("Connectors: %s\n", strings.Join(src.Connectors, ", "))
	fmt.Printf("Types: %s\n", strings.Join(src.Types, ", "))
	fmt.Printf("Auto-detection: %s\n", enabled(src.AutoDetection))
	fmt.Printf("Version-aware: %s\n", enabled(src.VersionAware))
	return nil
}
