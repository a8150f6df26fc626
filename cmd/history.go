package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"htdeploy/internal/deployhistory"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deploy runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := deployhistory.Load()
			if err != nil {
				return err
			}
			entries := deployhistory.Recent(h, limit)
			if len(entries) == 0 {
				fmt.Println("no deploy history yet")
				return nil
			}
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "failed: " + e.Error
				}
				fmt.Printf("%s  %-20s %-20s uploaded=%d deleted=%d  %s\n", e.StartedAt, e.ProjectName, e.RemoteHost, e.Uploaded, e.Deleted, status)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries to show")
	return cmd
}
