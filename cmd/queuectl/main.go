package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/webramesh/email-marketing-sub000/internal/app"
)

var (
	env          *app.Env
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "queuectl",
	Short: "Operate the email job queues, campaigns and automations",
	Long: `queuectl talks to the queue database directly.

Examples:
  # Queue counts for every queue
  queuectl stats

  # Stop workers from claiming campaign jobs
  queuectl pause campaign

  # Restart a failed campaign send from its last recorded offset
  queuectl campaign resume 42 --tenant 1

  # Import an automation definition
  queuectl automation import -f welcome.yaml
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		env, err = app.Open(cmd.Context(), false)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if env != nil {
			env.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	rootCmd.AddCommand(statsCmd, pauseCmd, resumeCmd, failedCmd, campaignCmd, automationCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// printJSON writes v as indented JSON and reports whether the json output format was chosen.
func printJSON(v any) (bool, error) {
	if outputFormat != "json" {
		return false, nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(b))
	return true, nil
}
