package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/docet-dev/docet/internal/core/config"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	baseURL     string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context,
// which aborts any backend call in flight.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docet",
	Short: "Chat with documentation assistants",
	Long: `docet - create and chat with documentation assistants

Point a backend at an API spec or docs site, then ask questions about it
from the terminal. Replies are rendered with headers, code, and endpoints
highlighted, along with the sources they were drawn from.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to TUI if no subcommand specified
		return tuiCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", filepath.Join(config.Dir(), "ledger.db"), "Provisioning ledger path")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend URL (overrides config and DOCET_BASE_URL)")
}
