// Package sync implements the offline-first upload engine: the per-pass
// worker that drains the pending set, the self-chaining scheduler that keeps
// passes running while auto-sync is enabled, and the coordinator that ties
// them to connectivity and exposes observable status. The store and the API
// client are consumed through narrow interfaces defined here.
package sync

import (
	"context"
	"errors"

	"github.com/cidadao-activo/sca-go/internal/api"
	"github.com/cidadao-activo/sca-go/internal/store"
)

// Status is the externally observable state of the sync engine.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusSyncing   Status = "SYNCING"
	StatusSuccess   Status = "SUCCESS"
	StatusError     Status = "ERROR"
	StatusNoNetwork Status = "NO_NETWORK"
)

// ErrAllFailed marks a pass that attempted at least one upload and landed
// none. The scheduler retries such a pass with linear backoff; any other
// pass outcome is terminal for the attempt.
var ErrAllFailed = errors.New("sync: all uploads in pass failed")

// PassResult summarizes one upload pass over the pending set.
type PassResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Success reports whether the pass counts as successful: any progress at
// all, or nothing to do. A pass where every attempt failed is the only
// outcome worth retrying promptly.
func (r PassResult) Success() bool {
	return r.Succeeded > 0 || r.Failed == 0
}

// RecordSource is the slice of the repository the worker needs: the pending
// snapshot and the synced-flag transition.
type RecordSource interface {
	AllPending(ctx context.Context) ([]*store.Record, error)
	MarkSynced(ctx context.Context, localID int64, remoteID *int64) error
}

// Uploader is the slice of the API client the worker needs.
type Uploader interface {
	CreateOccurrence(ctx context.Context, req *api.NewIncidentRequest, photoPath, videoPath string) (int64, error)
}

// Monitor answers the point-in-time connectivity question.
type Monitor interface {
	Reachable() bool
}
