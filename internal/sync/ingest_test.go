package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidadao-activo/sca-go/internal/store"
)

func startIngestor(t *testing.T, dir string, repo SharedInserter, onIngest func()) {
	t.Helper()

	startIngestorSettle(t, dir, repo, onIngest, 50*time.Millisecond)
}

func startIngestorSettle(t *testing.T, dir string, repo SharedInserter, onIngest func(), settle time.Duration) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	ing := NewIngestor(dir, repo, onIngest, testLogger())
	ing.settle = settle

	go func() {
		defer close(done)

		if err := ing.Run(ctx); err != nil {
			t.Errorf("ingestor: %v", err)
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForGone(t *testing.T, path string) {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("file %s was never consumed", path)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

const sharedJSON = `{
	"description": "fallen lamppost",
	"symbolicLocation": "Rua Nova",
	"latitude": 38.71,
	"longitude": -9.14,
	"datetime": "2026-01-05T18:30:00",
	"urgency": true
}`

func TestIngestor_ConsumesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	path := filepath.Join(dir, "incident-1.json")
	require.NoError(t, os.WriteFile(path, []byte(sharedJSON), 0o600))

	startIngestor(t, dir, repo, nil)
	waitForGone(t, path)

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "fallen lamppost", rec.Description)
	assert.True(t, rec.Urgent)
	assert.True(t, rec.Synced, "shared records are synced at birth")
	assert.Nil(t, rec.RemoteID)

	// Exempt from upload: pending set stays empty.
	count, err := repo.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestor_ConsumesDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	ingested := make(chan struct{}, 1)
	startIngestor(t, dir, repo, func() { ingested <- struct{}{} })

	// Write-then-rename, the way a P2P receiver lands files atomically.
	tmp := filepath.Join(dir, "incoming.part")
	require.NoError(t, os.WriteFile(tmp, []byte(sharedJSON), 0o600))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "incoming.json")))

	select {
	case <-ingested:
	case <-time.After(2 * time.Second):
		t.Fatal("dropped file was never ingested")
	}

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rua Nova", records[0].SymbolicLocation)
}

func TestIngestor_DuplicateShareIsConsumed(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	const body = `{"description": "flood near the bridge", "clientKey": "peer-key-1"}`

	first := filepath.Join(dir, "a.json")
	second := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(first, []byte(body), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(body), 0o600))

	startIngestor(t, dir, repo, nil)

	// Both files must be consumed, not retried forever.
	waitForGone(t, first)
	waitForGone(t, second)

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1, "a re-shared incident lands once")
}

func TestIngestor_WaitsForSlowWriter(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	ingested := make(chan struct{}, 1)
	startIngestorSettle(t, dir, repo, func() { ingested <- struct{}{} }, time.Second)

	// A peer writing non-atomically: the first chunk is not valid JSON.
	path := filepath.Join(dir, "slow.json")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	require.NoError(t, err)

	_, err = f.WriteString(`{"description": "landslide on the`)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	time.Sleep(100 * time.Millisecond)

	_, err = f.WriteString(` north road"}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case <-ingested:
	case <-time.After(2 * time.Second):
		t.Fatal("slow-written file was never ingested")
	}

	_, err = os.Stat(path + ".rejected")
	assert.True(t, os.IsNotExist(err), "a mid-write read must not reject the file")

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "landslide on the north road", records[0].Description)
}

func TestIngestor_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	path := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o600))

	startIngestor(t, dir, repo, nil)
	waitForGone(t, path)

	// Moved aside, not deleted.
	_, err := os.Stat(path + ".rejected")
	require.NoError(t, err)

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIngestor_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	repo := newTestRepository(t)

	path := filepath.Join(dir, "README.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	startIngestor(t, dir, repo, nil)

	time.Sleep(100 * time.Millisecond)

	_, err := os.Stat(path)
	require.NoError(t, err, "non-json files are left alone")

	records, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseShared(t *testing.T) {
	t.Run("missing description", func(t *testing.T) {
		_, err := ParseShared([]byte(`{"latitude": 1}`))
		require.Error(t, err)
	})

	t.Run("bad datetime", func(t *testing.T) {
		_, err := ParseShared([]byte(`{"description": "x", "datetime": "yesterday"}`))
		require.Error(t, err)
	})

	t.Run("datetime parsed as local wire time", func(t *testing.T) {
		rec, err := ParseShared([]byte(`{"description": "x", "datetime": "2026-01-05T18:30:00"}`))
		require.NoError(t, err)

		want := time.Date(2026, 1, 5, 18, 30, 0, 0, time.Local)
		assert.Equal(t, want.UnixNano(), rec.OccurredAt)
	})

	t.Run("missing datetime defaults to now", func(t *testing.T) {
		before := store.NowNano()

		rec, err := ParseShared([]byte(`{"description": "x"}`))
		require.NoError(t, err)

		assert.GreaterOrEqual(t, rec.OccurredAt, before)
	})
}
