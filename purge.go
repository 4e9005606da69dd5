package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cidadao-activo/sca-go/internal/store"
)

func newPurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old synced reports",
		Long: `Delete synced reports older than the retention horizon.

Only reports confirmed on the backend are eligible; pending reports survive
regardless of age. The deletion is irreversible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			ctx := cmd.Context()

			horizon := resolvedCfg.Retention.Days
			if days > 0 {
				horizon = days
			}

			repo, closeRepo, err := openRepository(ctx, logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			cutoff := time.Now().AddDate(0, 0, -horizon)

			deleted, err := repo.PurgeSyncedOlderThan(ctx, store.ToUnixNano(cutoff))
			if err != nil {
				return err
			}

			if flagJSON {
				fmt.Printf("{\"deleted\": %d}\n", deleted)
				return nil
			}

			statusf(flagQuiet, "Purged %d synced report(s) older than %d days\n", deleted, horizon)

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "older-than", 0, "retention horizon override in days")

	return cmd
}
