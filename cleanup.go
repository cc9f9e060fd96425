package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/store"
)

func newCleanupCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete compilations older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: cmd.ErrOrStderr()})

			records, err := store.Open(cfg.DatabasePath(), logger)
			if err != nil {
				return err
			}
			defer records.Close()

			removed, err := records.PurgeOlderThan(cmd.Context(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d compilations older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Age in days beyond which compilations are deleted")
	return cmd
}
