package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cidadao-activo/sca-go/internal/pubsub"
)

// Repository is the typed access layer over the Store. It stamps bookkeeping
// timestamps, assigns upload idempotency keys, enforces the sync-flag
// transitions, and publishes the reactive views (all records, pending count)
// after every committed mutation. All methods are safe for concurrent use;
// SQLite serializes conflicting writes to the same row.
type Repository struct {
	store  *Store
	logger *slog.Logger

	records      *pubsub.Value[[]*Record]
	pendingCount *pubsub.Value[int]
}

// NewRepository creates a Repository over an open Store and primes the
// reactive views with the store's current contents.
func NewRepository(ctx context.Context, s *Store, logger *slog.Logger) (*Repository, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: priming record view: %w", err)
	}

	count, err := s.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: priming pending count: %w", err)
	}

	return &Repository{
		store:        s,
		logger:       logger,
		records:      pubsub.NewValue(records),
		pendingCount: pubsub.NewValue(count),
	}, nil
}

// Close closes the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}

// Insert persists a locally-authored record as pending upload and returns
// its LocalID. CreatedAt/UpdatedAt are stamped, an upload key is assigned
// if the record doesn't carry one, and the sync flag is forced off.
func (r *Repository) Insert(ctx context.Context, rec *Record) (int64, error) {
	now := NowNano()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Synced = false

	if rec.UploadKey == "" {
		rec.UploadKey = uuid.NewString()
	}

	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}

	rec.LocalID = id
	r.publish(ctx)

	return id, nil
}

// InsertShared persists a record received from a peer share. It is marked
// synced at creation and is therefore permanently exempt from upload: it
// does not belong to this user's account of record. A peer re-sharing the
// same incident (same upload key) resolves to the existing record's LocalID.
func (r *Repository) InsertShared(ctx context.Context, rec *Record) (int64, error) {
	now := NowNano()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Synced = true
	rec.RemoteID = nil

	if rec.UploadKey == "" {
		rec.UploadKey = uuid.NewString()
	}

	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}

	rec.LocalID = id
	r.publish(ctx)

	return id, nil
}

// Update rewrites a record's content fields. The content changed, so the
// sync flag is reset and the record re-enters the pending set; RemoteID is
// kept — the next successful upload supersedes the remote copy instead of
// duplicating it.
func (r *Repository) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = NowNano()
	rec.Synced = false

	if err := r.store.Update(ctx, rec); err != nil {
		return err
	}

	r.publish(ctx)

	return nil
}

// UpdateShareCount sets a record's share counter. The counter is a
// local-only annotation: it does not reset the sync flag and never causes a
// re-upload.
func (r *Repository) UpdateShareCount(ctx context.Context, localID int64, count int) error {
	if err := r.store.UpdateShareCount(ctx, localID, count, NowNano()); err != nil {
		return err
	}

	r.publish(ctx)

	return nil
}

// Delete removes a record. Deleting a missing record is a no-op.
func (r *Repository) Delete(ctx context.Context, localID int64) error {
	if err := r.store.Delete(ctx, localID); err != nil {
		return err
	}

	r.publish(ctx)

	return nil
}

// GetByID retrieves a record by LocalID; (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, localID int64) (*Record, error) {
	return r.store.Get(ctx, localID)
}

// GetByRemoteID retrieves a record by backend identifier; (nil, nil) when absent.
func (r *Repository) GetByRemoteID(ctx context.Context, remoteID int64) (*Record, error) {
	return r.store.GetByRemoteID(ctx, remoteID)
}

// All returns every record, most recent occurrence first.
func (r *Repository) All(ctx context.Context) ([]*Record, error) {
	return r.store.ListAll(ctx)
}

// AllPending returns records awaiting upload, oldest-created first.
func (r *Repository) AllPending(ctx context.Context) ([]*Record, error) {
	return r.store.ListPending(ctx)
}

// PendingCount returns the number of records awaiting upload.
func (r *Repository) PendingCount(ctx context.Context) (int, error) {
	return r.store.PendingCount(ctx)
}

// MarkSynced flags a record as confirmed on the backend, overwriting the
// remote correlation when remoteID is non-nil. Idempotent.
func (r *Repository) MarkSynced(ctx context.Context, localID int64, remoteID *int64) error {
	if err := r.store.MarkSynced(ctx, localID, remoteID, NowNano()); err != nil {
		return err
	}

	r.publish(ctx)

	return nil
}

// PurgeSyncedOlderThan deletes synced records created before the cutoff.
// Irreversible; pending records survive regardless of age.
func (r *Repository) PurgeSyncedOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	deleted, err := r.store.PurgeSyncedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		r.publish(ctx)
	}

	return deleted, nil
}

// SubscribeRecords returns a live view of all records: the current result
// set immediately, then the full new result set after every committed
// mutation. The cancel function ends the subscription without side effects
// on the store.
func (r *Repository) SubscribeRecords() (<-chan []*Record, func()) {
	return r.records.Subscribe()
}

// SubscribePendingCount returns a live pending-count view with the same
// semantics as SubscribeRecords.
func (r *Repository) SubscribePendingCount() (<-chan int, func()) {
	return r.pendingCount.Subscribe()
}

// publish refreshes the reactive views after a committed mutation. Failures
// here are logged, not propagated: the mutation itself already succeeded,
// and the views self-correct on the next publish.
func (r *Repository) publish(ctx context.Context) {
	count, err := r.store.PendingCount(ctx)
	if err != nil {
		r.logger.Warn("refreshing pending count view", "error", err)
	} else {
		r.pendingCount.Set(count)
	}

	// Always recompute, even with nobody watching: the held value is the
	// initial delivery for the next subscriber and must stay current.
	records, err := r.store.ListAll(ctx)
	if err != nil {
		r.logger.Warn("refreshing record view", "error", err)
		return
	}

	r.records.Set(records)
}
