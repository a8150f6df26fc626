package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "htdeploy",
	Short: "One-way deployment sync tool",
	Long: `htdeploy reconciles a local directory against a remote target over SSH,
using content fingerprints and a remote manifest to upload only what changed.`,
}

func init() {
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newHistoryCmd())
}

// Execute runs the root command with a background context.
func Execute() {
	_ = ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with a supplied context, so the
// caller can cancel an in-flight deploy via ctx.
func ExecuteContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}
