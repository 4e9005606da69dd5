package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	syncengine "github.com/cidadao-activo/sca-go/internal/sync"
)

func newShareCmd() *cobra.Command {
	var bump int64

	cmd := &cobra.Command{
		Use:   "share [file.json]",
		Short: "Ingest a peer-shared report or bump a share counter",
		Long: `Ingest an incident report received from a peer.

The JSON file is inserted as a received-shared report: it is marked synced
at creation and never uploaded, because it belongs to the sender's account.

With --bump, instead increments the share counter of a local report after
passing it on. The counter is a local annotation and never triggers a
re-upload.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger()
			ctx := cmd.Context()

			if bump > 0 && len(args) > 0 {
				return fmt.Errorf("either a file or --bump, not both")
			}

			repo, closeRepo, err := openRepository(ctx, logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			if bump > 0 {
				rec, err := repo.GetByID(ctx, bump)
				if err != nil {
					return err
				}

				if rec == nil {
					return fmt.Errorf("no report with id %d", bump)
				}

				if err := repo.UpdateShareCount(ctx, bump, rec.ShareCount+1); err != nil {
					return err
				}

				statusf(flagQuiet, "Report %d shared %d time(s)\n", bump, rec.ShareCount+1)

				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("a JSON file or --bump is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading shared report: %w", err)
			}

			rec, err := syncengine.ParseShared(data)
			if err != nil {
				return err
			}

			id, err := repo.InsertShared(ctx, rec)
			if err != nil {
				return err
			}

			statusf(flagQuiet, "Ingested shared report as %d (exempt from upload)\n", id)

			return nil
		},
	}

	cmd.Flags().Int64Var(&bump, "bump", 0, "increment the share counter of the given local report")

	return cmd
}
