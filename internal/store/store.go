package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit bounds the WAL file to 64 MiB.
const walJournalSizeLimit = 67108864

// sqliteConstraintUnique is the SQLITE_CONSTRAINT_UNIQUE extended result code.
const sqliteConstraintUnique = 2067

// Store persists incident records in an embedded SQLite database with WAL
// mode. It is pure persistence: no sync policy, no notification. Callers go
// through the Repository, which layers timestamp stamping, upload keys, and
// the reactive surface on top.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmts recordStatements
}

type recordStatements struct {
	insert, update, updateShareCount, deleteByID,
	get, getByRemoteID, getByUploadKey, listAll, listPending,
	pendingCount, markSynced, markSyncedWithRemote, purge *sql.Stmt
}

// Open creates a Store, opening the database at dbPath, applying migrations,
// and preparing all repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening record database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// Sole-writer: one connection serializes all access and keeps ":memory:"
	// databases coherent across prepared statements.
	db.SetMaxOpenConns(1)

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	logger.Info("record database ready", "path", dbPath)

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// --- SQL query constants ---

const (
	sqlRecordColumns = `local_id, remote_id, upload_key, description,
		symbolic_location, latitude, longitude, occurred_at, urgent,
		share_count, photo_ref, video_ref, synced, created_at, updated_at`

	sqlInsertRecord = `INSERT INTO records
		(remote_id, upload_key, description, symbolic_location,
		 latitude, longitude, occurred_at, urgent, share_count,
		 photo_ref, video_ref, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateRecord = `UPDATE records SET
		description       = ?,
		symbolic_location = ?,
		latitude          = ?,
		longitude         = ?,
		occurred_at       = ?,
		urgent            = ?,
		photo_ref         = ?,
		video_ref         = ?,
		synced            = ?,
		updated_at        = ?
		WHERE local_id = ?`

	sqlUpdateShareCount = `UPDATE records
		SET share_count = ?, updated_at = ?
		WHERE local_id = ?`

	sqlDeleteRecord = `DELETE FROM records WHERE local_id = ?`

	sqlGetRecord = `SELECT ` + sqlRecordColumns +
		` FROM records WHERE local_id = ?`

	sqlGetByRemoteID = `SELECT ` + sqlRecordColumns +
		` FROM records WHERE remote_id = ?`

	sqlGetByUploadKey = `SELECT ` + sqlRecordColumns +
		` FROM records WHERE upload_key = ?`

	sqlListAll = `SELECT ` + sqlRecordColumns +
		` FROM records ORDER BY occurred_at DESC`

	// Oldest-first bounds starvation of early records.
	sqlListPending = `SELECT ` + sqlRecordColumns +
		` FROM records WHERE synced = 0 ORDER BY created_at ASC`

	sqlPendingCount = `SELECT COUNT(*) FROM records WHERE synced = 0`

	sqlMarkSynced = `UPDATE records
		SET synced = 1, updated_at = ?
		WHERE local_id = ?`

	sqlMarkSyncedWithRemote = `UPDATE records
		SET synced = 1, remote_id = ?, updated_at = ?
		WHERE local_id = ?`

	sqlPurgeSynced = `DELETE FROM records
		WHERE synced = 1 AND created_at < ?`
)

// stmtDef maps a SQL string to the prepared statement pointer it populates.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func (s *Store) prepareStatements(ctx context.Context) error {
	defs := []stmtDef{
		{&s.stmts.insert, sqlInsertRecord, "insertRecord"},
		{&s.stmts.update, sqlUpdateRecord, "updateRecord"},
		{&s.stmts.updateShareCount, sqlUpdateShareCount, "updateShareCount"},
		{&s.stmts.deleteByID, sqlDeleteRecord, "deleteRecord"},
		{&s.stmts.get, sqlGetRecord, "getRecord"},
		{&s.stmts.getByRemoteID, sqlGetByRemoteID, "getByRemoteID"},
		{&s.stmts.getByUploadKey, sqlGetByUploadKey, "getByUploadKey"},
		{&s.stmts.listAll, sqlListAll, "listAll"},
		{&s.stmts.listPending, sqlListPending, "listPending"},
		{&s.stmts.pendingCount, sqlPendingCount, "pendingCount"},
		{&s.stmts.markSynced, sqlMarkSynced, "markSynced"},
		{&s.stmts.markSyncedWithRemote, sqlMarkSyncedWithRemote, "markSyncedWithRemote"},
		{&s.stmts.purge, sqlPurgeSynced, "purgeSynced"},
	}

	for i := range defs {
		stmt, err := s.db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// --- Scanning helpers ---

// scanRecord scans a full record row into a Record struct.
func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	r := &Record{}

	err := row.Scan(
		&r.LocalID, &r.RemoteID, &r.UploadKey, &r.Description,
		&r.SymbolicLocation, &r.Latitude, &r.Longitude, &r.OccurredAt,
		&r.Urgent, &r.ShareCount, &r.PhotoRef, &r.VideoRef,
		&r.Synced, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// scanRecordRows iterates over sql.Rows and collects Records.
func scanRecordRows(rows *sql.Rows) ([]*Record, error) {
	var records []*Record

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}

	return records, nil
}

// --- Record CRUD ---

// Insert persists a new record and returns the assigned LocalID.
// The caller is responsible for timestamps, upload key, and sync flag;
// the Repository stamps all three. Inserting an upload key the store has
// already seen is an expected condition, not an error: the same incident
// arriving twice (a re-shared file, a replayed inbox drop) resolves to the
// existing row's LocalID and changes nothing. First writer wins.
func (s *Store) Insert(ctx context.Context, r *Record) (int64, error) {
	s.logger.Debug("inserting record", "upload_key", r.UploadKey, "synced", r.Synced)

	res, err := s.stmts.insert.ExecContext(ctx,
		r.RemoteID, r.UploadKey, r.Description, r.SymbolicLocation,
		r.Latitude, r.Longitude, r.OccurredAt, r.Urgent, r.ShareCount,
		r.PhotoRef, r.VideoRef, r.Synced, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueConflict(err) {
			existing, getErr := s.GetByUploadKey(ctx, r.UploadKey)
			if getErr != nil {
				return 0, getErr
			}

			if existing != nil {
				s.logger.Debug("duplicate upload key, keeping existing record",
					"upload_key", r.UploadKey, "local_id", existing.LocalID)

				return existing.LocalID, nil
			}
		}

		return 0, fmt.Errorf("store: insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert record id: %w", err)
	}

	return id, nil
}

// Update rewrites the mutable content fields of a record. The sync flag is
// written as passed — content edits reset it, share-count bumps bypass this
// method entirely.
func (s *Store) Update(ctx context.Context, r *Record) error {
	s.logger.Debug("updating record", "local_id", r.LocalID)

	_, err := s.stmts.update.ExecContext(ctx,
		r.Description, r.SymbolicLocation, r.Latitude, r.Longitude,
		r.OccurredAt, r.Urgent, r.PhotoRef, r.VideoRef,
		r.Synced, r.UpdatedAt, r.LocalID,
	)
	if err != nil {
		return fmt.Errorf("store: update record %d: %w", r.LocalID, err)
	}

	return nil
}

// UpdateShareCount sets the share counter without touching the sync flag.
func (s *Store) UpdateShareCount(ctx context.Context, localID int64, count int, updatedAt int64) error {
	s.logger.Debug("updating share count", "local_id", localID, "count", count)

	_, err := s.stmts.updateShareCount.ExecContext(ctx, count, updatedAt, localID)
	if err != nil {
		return fmt.Errorf("store: update share count %d: %w", localID, err)
	}

	return nil
}

// Delete removes a record. Deleting a missing record is a no-op.
func (s *Store) Delete(ctx context.Context, localID int64) error {
	s.logger.Debug("deleting record", "local_id", localID)

	_, err := s.stmts.deleteByID.ExecContext(ctx, localID)
	if err != nil {
		return fmt.Errorf("store: delete record %d: %w", localID, err)
	}

	return nil
}

// Get retrieves a single record by LocalID.
// Returns (nil, nil) if no record exists — a missing record is an expected
// condition, not an error.
func (s *Store) Get(ctx context.Context, localID int64) (*Record, error) {
	s.logger.Debug("getting record", "local_id", localID)

	r, err := scanRecord(s.stmts.get.QueryRowContext(ctx, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: get record %d: %w", localID, err)
	}

	return r, nil
}

// GetByRemoteID retrieves the record correlated with a backend identifier.
// Returns (nil, nil) if no record carries that remote ID.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID int64) (*Record, error) {
	s.logger.Debug("getting record by remote id", "remote_id", remoteID)

	r, err := scanRecord(s.stmts.getByRemoteID.QueryRowContext(ctx, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: get record by remote id %d: %w", remoteID, err)
	}

	return r, nil
}

// GetByUploadKey retrieves the record carrying a client upload key.
// Returns (nil, nil) when absent.
func (s *Store) GetByUploadKey(ctx context.Context, key string) (*Record, error) {
	s.logger.Debug("getting record by upload key", "upload_key", key)

	r, err := scanRecord(s.stmts.getByUploadKey.QueryRowContext(ctx, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: get record by upload key %q: %w", key, err)
	}

	return r, nil
}

// isUniqueConflict reports whether err is a SQLITE_CONSTRAINT_UNIQUE
// violation.
func isUniqueConflict(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqliteConstraintUnique
}

// ListAll returns every record, most recent occurrence first.
func (s *Store) ListAll(ctx context.Context) ([]*Record, error) {
	s.logger.Debug("listing all records")

	rows, err := s.stmts.listAll.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// ListPending returns all records awaiting upload, oldest-created first.
func (s *Store) ListPending(ctx context.Context) ([]*Record, error) {
	s.logger.Debug("listing pending records")

	rows, err := s.stmts.listPending.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list pending records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// PendingCount returns the number of records awaiting upload.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int

	err := s.stmts.pendingCount.QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: pending count: %w", err)
	}

	return count, nil
}

// MarkSynced flags a record as confirmed on the backend. A non-nil remoteID
// overwrites any previous correlation; nil leaves it untouched. Idempotent:
// repeating the call with the same arguments leaves the row unchanged apart
// from updated_at.
func (s *Store) MarkSynced(ctx context.Context, localID int64, remoteID *int64, updatedAt int64) error {
	s.logger.Debug("marking record synced", "local_id", localID, "remote_id", remoteID)

	var err error
	if remoteID != nil {
		_, err = s.stmts.markSyncedWithRemote.ExecContext(ctx, *remoteID, updatedAt, localID)
	} else {
		_, err = s.stmts.markSynced.ExecContext(ctx, updatedAt, localID)
	}

	if err != nil {
		return fmt.Errorf("store: mark synced %d: %w", localID, err)
	}

	return nil
}

// PurgeSyncedOlderThan deletes all synced records created before the cutoff
// (Unix nanoseconds). Pending records survive regardless of age. Returns the
// number of rows deleted.
func (s *Store) PurgeSyncedOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	s.logger.Info("purging old synced records", "cutoff", cutoff)

	res, err := s.stmts.purge.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge synced records: %w", err)
	}

	affected, rowsErr := res.RowsAffected()
	if rowsErr != nil {
		s.logger.Warn("could not read rows affected", "error", rowsErr)
	}

	s.logger.Info("purge complete", "deleted", affected)

	return affected, nil
}

// --- Maintenance ---

// Checkpoint forces a WAL checkpoint to consolidate the WAL file into the
// main database.
func (s *Store) Checkpoint() error {
	s.logger.Debug("running WAL checkpoint")

	_, err := s.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the database connection.
func (s *Store) Close() error {
	s.logger.Info("closing record database")

	if err := s.closeStatements(); err != nil {
		s.logger.Error("error closing statements", "error", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close database: %w", err)
	}

	return nil
}

func (s *Store) closeStatements() error {
	stmts := []*sql.Stmt{
		s.stmts.insert, s.stmts.update, s.stmts.updateShareCount,
		s.stmts.deleteByID, s.stmts.get, s.stmts.getByRemoteID,
		s.stmts.getByUploadKey, s.stmts.listAll, s.stmts.listPending,
		s.stmts.pendingCount, s.stmts.markSynced,
		s.stmts.markSyncedWithRemote, s.stmts.purge,
	}

	var errs []string

	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close statements: %s", strings.Join(errs, "; "))
	}

	return nil
}
