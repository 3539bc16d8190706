package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/interface/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	toolsEnable  []string
	toolsDisable []string
	toolsSet     []string
	toolsStatus  bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools [ID]",
	Short: "Show or change which tools an assistant may call",
	Long: `List the tools an assistant's model may call while answering, or change them.
Assistants that were never restricted may call every tool.

Examples:
  docet tools petstore
  docet tools petstore --disable get_api_version_info
  docet tools petstore --set search_documentation
  docet tools --status`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringSliceVar(&toolsEnable, "enable", nil, "Tools to grant")
	toolsCmd.Flags().StringSliceVar(&toolsDisable, "disable", nil, "Tools to revoke")
	toolsCmd.Flags().StringSliceVar(&toolsSet, "set", nil, "Replace the assistant's tools with exactly these")
	toolsCmd.Flags().BoolVar(&toolsStatus, "status", false, "Show every assistant with restricted tools")
	toolsCmd.MarkFlagsMutuallyExclusive("set", "enable")
	toolsCmd.MarkFlagsMutuallyExclusive("set", "disable")
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if toolsStatus {
		status, err := a.client.ToolStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch tool status: %w", err)
		}
		fmt.Print(toolStatusReport(status))
		return nil
	}

	if len(args) == 0 {
		return errors.New("an assistant id is required unless --status is set")
	}
	id := args[0]

	if cmd.Flags().Changed("set") {
		if err := a.client.SetAssistantTools(ctx, id, toolsSet); err != nil {
			return fmt.Errorf("failed to set tools: %w", err)
		}
		a.log.Info("assistant tools replaced", zap.String("assistant_id", id), zap.Strings("tools", toolsSet))
	}
	for _, name := range toolsEnable {
		err := a.client.SetToolEnabled(ctx, id, name, true)
		if errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("tool %q does not exist", name)
		}
		if err != nil {
			return fmt.Errorf("failed to enable %s: %w", name, err)
		}
	}
	for _, name := range toolsDisable {
		if err := a.client.SetToolEnabled(ctx, id, name, false); err != nil {
			return fmt.Errorf("failed to disable %s: %w", name, err)
		}
	}

	set, err := a.client.AssistantTools(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch tools: %w", err)
	}
	fmt.Print(toolsReport(set))
	return nil
}

func toolsReport(set *gateway.ToolSet) string {
	var b strings.Builder
	if len(set.Tools) == 0 {
		fmt.Fprintf(&b, "%s may not call any tools\n", tui.Sanitize(set.AssistantID))
		return b.String()
	}

	fmt.Fprintf(&b, "Tools for %s (%d):\n", tui.Sanitize(set.AssistantID), len(set.Tools))
	width := 0
	for _, t := range set.Tools {
		width = max(width, len(t.Name))
	}
	for _, t := range set.Tools {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, tui.Sanitize(t.Name), tui.Sanitize(t.Description))
	}
	return b.String()
}

func toolStatusReport(status map[string][]string) string {
	if len(status) == 0 {
		return "No assistant has restricted tools; every assistant may call every tool.\n"
	}

	ids := make([]string, 0, len(status))
	for id := range status {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		tools := strings.Join(status[id], ", ")
		if tools == "" {
			tools = "(none)"
		}
		fmt.Fprintf(&b, "%s: %s\n", tui.Sanitize(id), tui.Sanitize(tools))
	}
	return b.String()
}
