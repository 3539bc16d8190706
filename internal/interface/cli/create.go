package cli

import (
	"fmt"

	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/docet-dev/docet/internal/core/session"
	"github.com/spf13/cobra"
)

var (
	createURL string
	createID  string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an assistant from a documentation source",
	Long: `Ingest a documentation source (OpenAPI spec, docs site, repository) into a
new assistant. Existing content under the same id is re-ingested.

Without --id a name like docs-s44we8-0a1b2c is generated. The backend may
confirm a different id; the confirmed one is printed.

Examples:
  docet create --url https://petstore.swagger.io/v2/swagger.json --id petstore
  docet create --url https://docs.stripe.com`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createURL, "url", "", "Documentation source URL")
	createCmd.Flags().StringVar(&createID, "id", "", "Assistant id (generated when omitted)")
	_ = createCmd.MarkFlagRequired("url")
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	wf := a.workflow()
	form := wf.OpenForm()
	wf.SetSourceURL(createURL)
	if createID != "" {
		wf.SetAssistantID(createID)
	} else {
		createID = form.AssistantID
	}

	spinner := session.NewSpinner(fmt.Sprintf("Ingesting %s as %s", createURL, createID))
	spinner.Start()
	id, err := wf.Submit(cmd.Context())
	spinner.Stop()

	if err != nil {
		msg := provision.FailureMessage(err)
		if f, ok := wf.Form(); ok && f.Error != "" {
			msg = f.Error
		}
		return fmt.Errorf("create failed: %s", msg)
	}

	fmt.Printf("✓ Created assistant %s\n", id)
	if id != createID {
		fmt.Printf("  (requested %s; the backend confirmed %s)\n", createID, id)
	}
	fmt.Printf("\nStart chatting: docet ask --assistant %s \"What endpoints are there?\"\n", id)
	return nil
}
