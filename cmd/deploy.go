package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"htdeploy/internal/config"
	"htdeploy/internal/deploy"
	"htdeploy/internal/deployhistory"
	"htdeploy/internal/logger"
	"htdeploy/internal/preprocess"
	"htdeploy/internal/server/sshserver"
)

func newDeployCmd() *cobra.Command {
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Synchronize the local tree to the configured remote target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, dryRun, yes)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the deploy without mutating the remote")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the delete confirmation prompt")
	return cmd
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Alias for 'deploy --dry-run'",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, true, true)
		},
	}
}

func runDeploy(cmd *cobra.Command, dryRun, skipConfirm bool) error {
	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	srv := sshserver.New(sshserver.Config{
		Username:   cfg.Auth.Username,
		PrivateKey: cfg.Auth.PrivateKey,
		Password:   cfg.Auth.Password,
		Host:       cfg.Auth.Host,
		Port:       cfg.Auth.Port,
		RemoteRoot: cfg.Auth.RemotePath,
	})

	log := logger.Default
	d := deploy.New(cfg, srv, log, nil)
	d.DryRun = dryRun || cfg.TestMode

	if len(cfg.Preprocess) > 0 {
		tempDir := cfg.TempDirName()
		pre, err := preprocess.New(tempDir, filepath.Join(tempDir, "cache.db"), cfg.Preprocess, preprocess.FilterPipeline{})
		if err != nil {
			return fmt.Errorf("preprocess init: %w", err)
		}
		defer pre.Close()
		d.Preprocessor = pre
	}

	if !dryRun && !skipConfirm && cfg.AllowDelete {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("This deploy may delete files on %s. Continue", cfg.Auth.Host),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("aborted")
			return nil
		}
	}

	started := time.Now()
	summary, err := d.Run(cmd.Context())

	entry := deployhistory.Entry{
		ProjectName: cfg.ProjectName,
		LocalPath:   cfg.LocalPath,
		RemoteHost:  cfg.Auth.Host,
		StartedAt:   started.Format(time.RFC3339),
		Uploaded:    len(summary.Uploaded),
		Deleted:     len(summary.Deleted),
		Success:     err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if recErr := deployhistory.Record(entry); recErr != nil {
		log.Warnf("failed to record deploy history: %v", recErr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy failed: %v\n", err)
		os.Exit(1)
	}

	switch {
	case summary.AlreadySynced:
		fmt.Println("already synchronized")
	case summary.DryRun:
		fmt.Printf("dry run: %d uploads, %d deletes planned\n", len(summary.Uploaded), len(summary.Deleted))
	default:
		fmt.Printf("deployed: %d uploaded, %d deleted\n", len(summary.Uploaded), len(summary.Deleted))
		for _, err := range summary.DeleteErrors {
			fmt.Fprintf(os.Stderr, "delete error: %v\n", err)
		}
	}
	return nil
}
