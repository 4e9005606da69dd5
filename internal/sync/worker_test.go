package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidadao-activo/sca-go/internal/api"
	"github.com/cidadao-activo/sca-go/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRepository(t *testing.T) *store.Repository {
	t.Helper()

	s, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repo, err := store.NewRepository(context.Background(), s, testLogger())
	require.NoError(t, err)

	return repo
}

// fakeUploader assigns sequential remote IDs and fails uploads whose
// description is listed in failing.
type fakeUploader struct {
	nextID   int64
	failing  map[string]bool
	requests []*api.NewIncidentRequest
}

func (u *fakeUploader) CreateOccurrence(_ context.Context, req *api.NewIncidentRequest, _, _ string) (int64, error) {
	u.requests = append(u.requests, req)

	if u.failing[req.Description] {
		return 0, errors.New("upstream rejected")
	}

	u.nextID++

	return u.nextID, nil
}

func insertRecord(t *testing.T, repo *store.Repository, description string) int64 {
	t.Helper()

	id, err := repo.Insert(context.Background(), &store.Record{
		Description: description,
		OccurredAt:  store.NowNano(),
	})
	require.NoError(t, err)

	return id
}

func TestRunPass_EmptyPendingSet(t *testing.T) {
	repo := newTestRepository(t)
	uploader := &fakeUploader{}
	w := NewWorker(repo, uploader, 1, testLogger())

	result, err := w.RunPass(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Zero(t, result.Attempted)
	assert.Empty(t, uploader.requests)
}

func TestRunPass_AllSucceed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	var ids []int64
	for i := range 3 {
		ids = append(ids, insertRecord(t, repo, fmt.Sprintf("report %d", i)))
	}

	uploader := &fakeUploader{}
	w := NewWorker(repo, uploader, 42, testLogger())

	result, err := w.RunPass(ctx)
	require.NoError(t, err)

	assert.Equal(t, PassResult{Attempted: 3, Succeeded: 3}, result)
	assert.True(t, result.Success())

	count, err := repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, id := range ids {
		rec, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.Synced)
		require.NotNil(t, rec.RemoteID)
		assert.Positive(t, *rec.RemoteID)
	}
}

func TestRunPass_OldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	insertRecord(t, repo, "first")
	insertRecord(t, repo, "second")
	insertRecord(t, repo, "third")

	uploader := &fakeUploader{}
	w := NewWorker(repo, uploader, 1, testLogger())

	_, err := w.RunPass(ctx)
	require.NoError(t, err)

	require.Len(t, uploader.requests, 3)
	assert.Equal(t, "first", uploader.requests[0].Description)
	assert.Equal(t, "third", uploader.requests[2].Description)
}

func TestRunPass_OneFailureDoesNotStopThePass(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	insertRecord(t, repo, "good one")
	badID := insertRecord(t, repo, "bad one")
	insertRecord(t, repo, "good two")

	uploader := &fakeUploader{failing: map[string]bool{"bad one": true}}
	w := NewWorker(repo, uploader, 1, testLogger())

	result, err := w.RunPass(ctx)
	require.NoError(t, err)

	assert.Equal(t, PassResult{Attempted: 3, Succeeded: 2, Failed: 1}, result)
	assert.True(t, result.Success(), "partial progress still counts as success")

	// The failing record stays pending for the next pass.
	rec, err := repo.GetByID(ctx, badID)
	require.NoError(t, err)
	assert.False(t, rec.Synced)
	assert.Nil(t, rec.RemoteID)

	count, err := repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunPass_AllFail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	insertRecord(t, repo, "doomed")

	uploader := &fakeUploader{failing: map[string]bool{"doomed": true}}
	w := NewWorker(repo, uploader, 1, testLogger())

	result, err := w.RunPass(ctx)
	require.NoError(t, err)

	assert.Equal(t, PassResult{Attempted: 1, Failed: 1}, result)
	assert.False(t, result.Success())
}

func TestRunPass_SharedRecordsNeverUploaded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.InsertShared(ctx, &store.Record{
		Description: "from a peer",
		OccurredAt:  store.NowNano(),
	})
	require.NoError(t, err)

	insertRecord(t, repo, "my own")

	uploader := &fakeUploader{}
	w := NewWorker(repo, uploader, 1, testLogger())

	result, err := w.RunPass(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attempted)
	require.Len(t, uploader.requests, 1)
	assert.Equal(t, "my own", uploader.requests[0].Description)
}

func TestRunPass_EditedRecordReappears(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	id := insertRecord(t, repo, "original text")

	uploader := &fakeUploader{}
	w := NewWorker(repo, uploader, 1, testLogger())

	_, err := w.RunPass(ctx)
	require.NoError(t, err)

	rec, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.RemoteID)
	firstRemote := *rec.RemoteID

	rec.Description = "corrected text"
	require.NoError(t, repo.Update(ctx, rec))

	result, err := w.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)

	// Same upload key on the retry, so the backend can deduplicate.
	require.Len(t, uploader.requests, 2)
	assert.Equal(t, uploader.requests[0].ClientKey, uploader.requests[1].ClientKey)

	rec, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Synced)
	require.NotNil(t, rec.RemoteID)
	assert.NotEqual(t, firstRemote, *rec.RemoteID)
}

func TestRunPass_SourceFaultIsInternal(t *testing.T) {
	w := NewWorker(faultySource{}, &fakeUploader{}, 1, testLogger())

	_, err := w.RunPass(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending snapshot")
}

type faultySource struct{}

func (faultySource) AllPending(context.Context) ([]*store.Record, error) {
	return nil, errors.New("disk on fire")
}

func (faultySource) MarkSynced(context.Context, int64, *int64) error {
	return nil
}
