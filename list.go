package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cidadao-activo/sca-go/internal/store"
)

// ANSI colors for sync-state display on a TTY.
const (
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorReset  = "\033[0m"
)

// listedRecord is the JSON shape for `sca ls --json`.
type listedRecord struct {
	LocalID    int64   `json:"local_id"`
	RemoteID   *int64  `json:"remote_id,omitempty"`
	Desc       string  `json:"description"`
	Location   string  `json:"location,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	OccurredAt string  `json:"occurred_at"`
	Urgent     bool    `json:"urgent"`
	ShareCount int     `json:"share_count,omitempty"`
	Synced     bool    `json:"synced"`
}

func newLsCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List incident reports",
		Long: `List incident reports from the local store.

With --remote, lists the incidents the backend holds for the configured
user instead; this requires connectivity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remote {
				return runLsRemote(cmd)
			}

			return runLsLocal(cmd)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "list incidents from the backend")

	return cmd
}

func runLsLocal(cmd *cobra.Command) error {
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

	if flagJSON {
		out := make([]listedRecord, 0, len(records))
		for _, r := range records {
			out = append(out, listedRecord{
				LocalID:    r.LocalID,
				RemoteID:   r.RemoteID,
				Desc:       r.Description,
				Location:   r.SymbolicLocation,
				Latitude:   r.Latitude,
				Longitude:  r.Longitude,
				OccurredAt: time.Unix(0, r.OccurredAt).Format(time.RFC3339),
				Urgent:     r.Urgent,
				ShareCount: r.ShareCount,
				Synced:     r.Synced,
			})
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(records) == 0 {
		statusf(flagQuiet, "No reports recorded.\n")
		return nil
	}

	color := isatty.IsTerminal(os.Stdout.Fd())

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.LocalID),
			formatTime(time.Unix(0, r.OccurredAt)),
			syncState(r, color),
			urgentMark(r.Urgent),
			r.SymbolicLocation,
			r.Description,
		})
	}

	printTable(os.Stdout, []string{"ID", "WHEN", "STATE", "URG", "WHERE", "DESCRIPTION"}, rows)

	return nil
}

func runLsRemote(cmd *cobra.Command) error {
	logger := buildLogger()
	client := newAPIClient(logger)

	incidents, err := client.ListUserIncidents(cmd.Context(), resolvedCfg.API.UserID)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(incidents)
	}

	if len(incidents) == 0 {
		statusf(flagQuiet, "No incidents on the backend.\n")
		return nil
	}

	rows := make([][]string, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, []string{
			fmt.Sprintf("%d", inc.ID),
			inc.Datetime,
			urgentMark(inc.Urgency),
			inc.Title,
			inc.Description,
		})
	}

	printTable(os.Stdout, []string{"ID", "WHEN", "URG", "WHERE", "DESCRIPTION"}, rows)

	return nil
}

// syncState renders a record's upload state, colorized on a TTY.
func syncState(r *store.Record, color bool) string {
	if r.Synced {
		if color {
			return colorGreen + "synced" + colorReset
		}

		return "synced"
	}

	if color {
		return colorYellow + "pending" + colorReset
	}

	return "pending"
}

func urgentMark(urgent bool) string {
	if urgent {
		return "!"
	}

	return ""
}
