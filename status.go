package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cidadao-activo/sca-go/internal/netmon"
)

// statusReport is the JSON shape for `sca status --json`.
type statusReport struct {
	Database     string `json:"database"`
	Backend      string `json:"backend"`
	Reachable    bool   `json:"reachable"`
	TotalRecords int    `json:"total_records"`
	Pending      int    `json:"pending"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and connectivity status",
		Long: `Display the local store summary and current connectivity.

Reachability is a point-in-time check of the network interfaces; it does
not contact the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			ctx := cmd.Context()

			repo, closeRepo, err := openRepository(ctx, logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			records, err := repo.All(ctx)
			if err != nil {
				return err
			}

			pending, err := repo.PendingCount(ctx)
			if err != nil {
				return err
			}

			report := statusReport{
				Database:     resolvedCfg.Storage.DBPath,
				Backend:      resolvedCfg.API.BaseURL,
				Reachable:    netmon.New(logger).Reachable(),
				TotalRecords: len(records),
				Pending:      pending,
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			fmt.Printf("Database:  %s\n", report.Database)
			fmt.Printf("Backend:   %s\n", report.Backend)
			fmt.Printf("Network:   %s\n", reachableWord(report.Reachable))
			fmt.Printf("Records:   %d (%d pending upload)\n", report.TotalRecords, report.Pending)

			return nil
		},
	}
}

func reachableWord(reachable bool) string {
	if reachable {
		return "reachable"
	}

	return "offline"
}
