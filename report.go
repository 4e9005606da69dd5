package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cidadao-activo/sca-go/internal/netmon"
	"github.com/cidadao-activo/sca-go/internal/store"
	syncengine "github.com/cidadao-activo/sca-go/internal/sync"
)

func newReportCmd() *cobra.Command {
	var (
		location string
		lat      float64
		lon      float64
		urgent   bool
		photo    string
		video    string
		at       string
	)

	cmd := &cobra.Command{
		Use:   "report <description>",
		Short: "Record a new incident report",
		Long: `Record a new incident report in the local store.

The report is persisted immediately and marked pending; the next sync pass
uploads it. Nothing here requires connectivity.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger()

			occurredAt := store.NowNano()

			if at != "" {
				t, err := time.ParseInLocation(syncengine.WireTimeLayout, at, time.Local)
				if err != nil {
					return fmt.Errorf("parsing --at %q (want %s): %w", at, syncengine.WireTimeLayout, err)
				}

				occurredAt = t.UnixNano()
			}

			if photo != "" {
				if _, err := os.Stat(photo); err != nil {
					return fmt.Errorf("photo file: %w", err)
				}
			}

			if video != "" {
				if _, err := os.Stat(video); err != nil {
					return fmt.Errorf("video file: %w", err)
				}
			}

			ctx := cmd.Context()

			repo, closeRepo, err := openRepository(ctx, logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			rec := &store.Record{
				Description:      strings.Join(args, " "),
				SymbolicLocation: location,
				Latitude:         lat,
				Longitude:        lon,
				OccurredAt:       occurredAt,
				Urgent:           urgent,
				PhotoRef:         photo,
				VideoRef:         video,
			}

			id, err := repo.Insert(ctx, rec)
			if err != nil {
				return err
			}

			// Best effort: push immediately when the network allows. A
			// failed pass is not a failed report; the record is already
			// durably queued for the next sync.
			uploaded := false

			if netmon.New(logger).Reachable() {
				worker := syncengine.NewWorker(repo, newAPIClient(logger),
					resolvedCfg.API.UserID, logger)

				if res, passErr := worker.RunPass(ctx); passErr != nil {
					logger.Warn("immediate upload pass failed", "error", passErr)
				} else {
					uploaded = res.Failed == 0
				}
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"local_id":   id,
					"upload_key": rec.UploadKey,
					"synced":     uploaded,
				})
			}

			if uploaded {
				statusf(flagQuiet, "Recorded report %d (uploaded)\n", id)
			} else {
				statusf(flagQuiet, "Recorded report %d (pending upload)\n", id)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "symbolic location (e.g. street or landmark)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().BoolVarP(&urgent, "urgent", "u", false, "flag the report as urgent")
	cmd.Flags().StringVar(&photo, "photo", "", "path to a photo to attach")
	cmd.Flags().StringVar(&video, "video", "", "path to a video to attach")
	cmd.Flags().StringVar(&at, "at", "", "occurrence time (2006-01-02T15:04:05, default now)")

	return cmd
}
