package photo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/async"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/ingest"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

type stubQueue struct {
	enqueued []int64
}

func (q *stubQueue) Enqueue(_ context.Context, photoID int64) (async.Job, error) {
	q.enqueued = append(q.enqueued, photoID)
	return async.Job{PhotoID: photoID, RunID: "run", SubmittedAt: time.Now()}, nil
}

func (q *stubQueue) Shutdown(context.Context) {}

type fixedApprover bool

func (a fixedApprover) AutoApprove(context.Context) bool { return bool(a) }

func newService(t *testing.T, autoApprove bool) (*Service, repository.PhotoRepository, *stubQueue) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })

	photos := repository.NewPhotoRepository(db, logger)
	artifacts := storage.NewArtifactStore(storage.NewMemoryStore("photos"), storage.WithPublicBaseURL("https://photos.example.com"))
	q := &stubQueue{}
	return NewService(photos, ingest.NewPhotoIngestor(photos, artifacts, logger), q, fixedApprover(autoApprove), logger), photos, q
}

func TestUpload_WithoutAutoApproveDoesNotEnqueue(t *testing.T) {
	s, _, q := newService(t, false)

	res, err := s.Upload(context.Background(), "me.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Empty(t, res.WorkflowID)
	assert.Empty(t, q.enqueued)
	assert.Contains(t, res.Photo.OriginalSourceURL, "https://photos.example.com/original/")
}

func TestUpload_AutoApproveEnqueues(t *testing.T) {
	s, _, q := newService(t, true)

	res, err := s.Upload(context.Background(), "me.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "run", res.WorkflowID)
	assert.Equal(t, []int64{res.Photo.ID}, q.enqueued)
}

func TestProcess_UnknownPhotoIsNotQueued(t *testing.T) {
	s, _, q := newService(t, false)

	_, err := s.Process(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, q.enqueued)
}

func TestStatus_CachedUntilForgotten(t *testing.T) {
	s, photos, _ := newService(t, false)
	ctx := context.Background()
	photo, err := photos.Create(ctx, "https://cdn.example.com/a.jpg", nil)
	require.NoError(t, err)

	progress, err := s.Status(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProgressPending, progress.Status)

	key, u := "phase1/1.png", "https://photos.example.com/phase1/1.png"
	require.NoError(t, photos.Update(ctx, photo.ID, repository.PhotoUpdate{
		Phases: map[int]repository.PhaseUpdate{1: {ArtifactKey: &key, ArtifactURL: &u}},
	}))

	progress, err = s.Status(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProgressPending, progress.Status, "served from cache")

	s.Forget(photo.ID)
	progress, err = s.Status(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProgressProcessing, progress.Status)
	assert.Equal(t, 30, progress.Progress)
}

func TestList_ClampsPaging(t *testing.T) {
	s, photos, _ := newService(t, false)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := photos.Create(ctx, "https://cdn.example.com/x.jpg", nil)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, -1, -5)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[2].ID)

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestModerate_RequiresAField(t *testing.T) {
	s, photos, _ := newService(t, false)
	photo, err := photos.Create(context.Background(), "https://cdn.example.com/m.jpg", nil)
	require.NoError(t, err)

	_, err = s.Moderate(context.Background(), photo.ID, ModerateRequest{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	yes := true
	got, err := s.Moderate(context.Background(), photo.ID, ModerateRequest{IsModerated: &yes})
	require.NoError(t, err)
	assert.True(t, got.IsModerated)
}
