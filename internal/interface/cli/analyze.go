package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze URL",
	Short: "Check whether a documentation source can be ingested",
	Long: `Ask the backend what it detects at a URL without ingesting anything.

Examples:
  docet analyze https://petstore.swagger.io/v2/swagger.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.client.AnalyzeSource(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", args[0], err)
	}

	fmt.Printf("URL: %s\n", res.URL)
	fmt.Printf("Status: %s\n", res.Status)
	if res.DetectedType != "" {
		fmt.Printf("Detected type: %s (%.0f%% confidence)\n", res.DetectedType, res.Confidence*100)
	}
	if res.Connector != "" {
		fmt.Printf("Connector: %s\n", res.Connector)
	}
	if res.Title != "" {
		fmt.Printf("Title: %s\n", res.Title)
	}
	if res.Description != "" {
		fmt.Printf("Description: %s\n", res.Description)
	}
	if res.Error != "" {
		fmt.Printf("Error: %s\n", res.Error)
	}

	if !res.Supported() {
		return fmt.Errorf("source is not supported")
	}
	return nil
}
