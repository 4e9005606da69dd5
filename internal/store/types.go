// Package store implements the durable incident record store: an embedded
// SQLite database holding every report recorded on this device, plus the
// typed Repository used by the sync engine and the CLI. Records carry a
// sync flag; the upload pipeline only ever sees records with the flag
// unset, ordered oldest-first.
package store

import "time"

// Record is an incident report as persisted on-device.
//
// LocalID is assigned by the store on first insert and never reused.
// RemoteID is the authoritative identifier assigned by the backend after a
// successful upload; once set it is never cleared — a re-upload after a
// local edit overwrites it rather than creating a duplicate. UploadKey is a
// client-generated idempotency key sent with every upload attempt for the
// same record.
type Record struct {
	LocalID   int64
	RemoteID  *int64
	UploadKey string

	Description      string
	SymbolicLocation string
	Latitude         float64
	Longitude        float64
	OccurredAt       int64 // Unix nanoseconds
	Urgent           bool
	ShareCount       int
	PhotoRef         string // path to externally-stored media, opaque here
	VideoRef         string

	// Synced is false while the record awaits upload. Records ingested from
	// a peer share are synced from creation and never uploaded — they do not
	// belong to this user's account of record.
	Synced bool

	CreatedAt int64 // Unix nanoseconds
	UpdatedAt int64 // Unix nanoseconds
}

// Pending reports whether the record still awaits upload.
func (r *Record) Pending() bool {
	return !r.Synced
}

// --- Timestamp helpers ---
// All persisted timestamps are int64 Unix nanoseconds. Conversion to
// time.Time happens at display and wire boundaries only.

// NowNano returns the current time as Unix nanoseconds.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// ToUnixNano converts a time.Time to Unix nanoseconds.
// Returns 0 for the zero time.
func ToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

// Int64Ptr returns a pointer to the given int64 value.
// Used for the nullable remote_id column.
func Int64Ptr(v int64) *int64 {
	return &v
}
