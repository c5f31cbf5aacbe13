package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/webramesh/email-marketing-sub000/internal/automation"
)

var (
	automationCmd = &cobra.Command{
		Use:   "automation",
		Short: "Automation definition operations",
	}

	automationImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Create an automation from a YAML definition",
		RunE:  importAutomation,
	}

	importFile string
)

func init() {
	automationImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the YAML definition")
	automationImportCmd.MarkFlagRequired("file")

	automationCmd.AddCommand(automationImportCmd)
}

func importAutomation(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", importFile, err)
	}
	defer f.Close()

	a, err := env.AutomationService(automation.NewExprEvaluator()).Import(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to import automation: %w", err)
	}

	if ok, err := printJSON(a); ok {
		return err
	}
	fmt.Printf("Automation %d %q imported (%s)\n", a.ID, a.Name, a.Status)
	return nil
}
