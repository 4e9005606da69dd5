package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cidadao-activo/sca-go/internal/store"
)

// Worker executes a single upload pass: snapshot the pending set, then push
// each record to the backend independently. Records failing to upload stay
// pending and are picked up again on the next pass; records inserted while
// a pass runs are not part of its snapshot and wait for the next one.
type Worker struct {
	source   RecordSource
	uploader Uploader
	userID   int64
	logger   *slog.Logger
}

// NewWorker creates a Worker over the given record source and uploader.
func NewWorker(source RecordSource, uploader Uploader, userID int64, logger *slog.Logger) *Worker {
	return &Worker{source: source, uploader: uploader, userID: userID, logger: logger}
}

// RunPass drains the current pending snapshot, oldest-created first. The
// returned error is reserved for internal faults (the snapshot itself could
// not be read); per-record upload failures are counted in the result, never
// escalated. An empty pending set is a successful no-op.
func (w *Worker) RunPass(ctx context.Context) (PassResult, error) {
	pending, err := w.source.AllPending(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("sync: reading pending snapshot: %w", err)
	}

	result := PassResult{Attempted: len(pending)}

	if len(pending) == 0 {
		w.logger.Debug("sync pass: nothing pending")
		return result, nil
	}

	w.logger.Info("sync pass starting", slog.Int("pending", len(pending)))

	for _, rec := range pending {
		if err := w.uploadOne(ctx, rec); err != nil {
			result.Failed++

			w.logger.Warn("record upload failed",
				slog.Int64("local_id", rec.LocalID),
				slog.String("error", err.Error()),
			)

			continue
		}

		result.Succeeded++
	}

	w.logger.Info("sync pass finished",
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

// uploadOne pushes a single record and records its backend identity. A
// failure to persist the synced flag counts as a failure for the pass even
// though the upload landed: the record stays pending and the idempotency
// key makes the inevitable re-upload harmless.
func (w *Worker) uploadOne(ctx context.Context, rec *store.Record) error {
	remoteID, err := w.uploader.CreateOccurrence(ctx, buildRequest(rec, w.userID),
		rec.PhotoRef, rec.VideoRef)
	if err != nil {
		return err
	}

	if err := w.source.MarkSynced(ctx, rec.LocalID, store.Int64Ptr(remoteID)); err != nil {
		return fmt.Errorf("sync: marking record %d synced: %w", rec.LocalID, err)
	}

	w.logger.Debug("record uploaded",
		slog.Int64("local_id", rec.LocalID),
		slog.Int64("remote_id", remoteID),
	)

	return nil
}
