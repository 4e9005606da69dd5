package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cidadao-activo/sca-go/internal/api"
	"github.com/cidadao-activo/sca-go/internal/netmon"
	"github.com/cidadao-activo/sca-go/internal/store"
	syncengine "github.com/cidadao-activo/sca-go/internal/sync"
)

// retentionSweepInterval is how often watch mode runs the retention sweep.
const retentionSweepInterval = 24 * time.Hour

func newSyncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload pending reports to the backend",
		Long: `Run one upload pass over the pending reports.

With --watch, keeps running: the auto-sync chain re-runs a pass every
interval, the share inbox is watched for peer-shared reports, and backend
push notifications (if enabled) trigger immediate passes. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch {
				return runSyncWatch(cmd.Context())
			}

			return runSyncOnce(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing until interrupted")

	return cmd
}

// buildCoordinator assembles the sync engine from the resolved config.
func buildCoordinator(repo *store.Repository, logger *slog.Logger) (*syncengine.Coordinator, error) {
	return syncengine.NewCoordinator(syncengine.Config{
		Source:     repo,
		Uploader:   newAPIClient(logger),
		Monitor:    netmon.New(logger),
		Pending:    repo,
		UserID:     resolvedCfg.API.UserID,
		Interval:   resolvedCfg.SyncInterval(),
		MaxRetries: uint64(resolvedCfg.Sync.RetryAttempts),
		MinBackoff: resolvedCfg.SyncMinBackoff(),
		Logger:     logger,
	})
}

// runSyncOnce triggers a single pass and waits for its terminal status.
func runSyncOnce(ctx context.Context) error {
	logger := buildLogger()

	repo, closeRepo, err := openRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	return runPassOn(ctx, repo, logger)
}

// runPassOn runs one pass against an already-open repository and waits for
// the terminal status.
func runPassOn(ctx context.Context, repo *store.Repository, logger *slog.Logger) error {
	coord, err := buildCoordinator(repo, logger)
	if err != nil {
		return err
	}

	if err := coord.Open(ctx); err != nil {
		return err
	}
	defer coord.Close()

	statusCh, cancelSub := coord.SubscribeStatus()
	defer cancelSub()

	coord.StartSync()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case status := <-statusCh:
			switch status {
			case syncengine.StatusNoNetwork:
				return fmt.Errorf("no network connectivity; reports stay queued")

			case syncengine.StatusError:
				return fmt.Errorf("sync pass failed; pending reports will be retried")

			case syncengine.StatusSuccess:
				pending, err := coord.PendingCount(ctx)
				if err != nil {
					return err
				}

				statusf(flagQuiet, "Sync complete, %d report(s) still pending\n", pending)

				return nil

			case syncengine.StatusIdle, syncengine.StatusSyncing:
				// Pass still in flight.
			}
		}
	}
}

// runSyncWatch runs the full daemon: the auto-sync chain, the share inbox
// watcher, the optional websocket nudge listener, and a daily retention
// sweep. Everything stops together on the first failure or signal.
func runSyncWatch(parent context.Context) error {
	logger := buildLogger()
	ctx := shutdownContext(parent, logger)

	repo, closeRepo, err := openRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	coord, err := buildCoordinator(repo, logger)
	if err != nil {
		return err
	}

	if err := coord.Open(ctx); err != nil {
		return err
	}
	defer coord.Close()

	coord.EnableAutoSync()
	coord.StartSync()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ingestor := syncengine.NewIngestor(resolvedCfg.Sync.ShareInbox, repo,
			coord.StartSync, logger)

		return ingestor.Run(gctx)
	})

	if resolvedCfg.API.Notify {
		g.Go(func() error {
			listener := api.NewNotifyListener(resolvedCfg.API.NotifyURL,
				coord.StartSync, logger)

			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		return retentionLoop(gctx, repo, logger)
	})

	statusf(flagQuiet, "Watching for reports to sync (Ctrl-C to stop)\n")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// retentionLoop purges old synced reports once at startup and then daily.
func retentionLoop(ctx context.Context, repo *store.Repository, logger *slog.Logger) error {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		cutoff := resolvedCfg.RetentionCutoff(time.Now())

		deleted, err := repo.PurgeSyncedOlderThan(ctx, store.ToUnixNano(cutoff))
		if err != nil {
			logger.Warn("retention sweep failed", slog.String("error", err.Error()))
		} else if deleted > 0 {
			logger.Info("retention sweep removed synced reports", slog.Int64("deleted", deleted))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
