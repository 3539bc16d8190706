package cli

import (
	"errors"
	"fmt"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an assistant and its ingested documents",
	Long: `Delete an assistant from the backend and forget it in the local ledger.

Examples:
  docet delete petstore`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.client.DeleteAssistant(cmd.Context(), id)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		// Already gone on the backend; still drop the ledger row below
		a.log.Info("assistant already absent on backend", zap.String("assistant_id", id))
	case err != nil:
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	if err := a.ledger.DeleteAssistant(id); err != nil {
		return err
	}

	fmt.Printf("✓ Deleted assistant %s\n", id)
	return nil
}
