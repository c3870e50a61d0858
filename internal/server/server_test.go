package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-pipeline/internal/async"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/export"
	"github.com/joseph-ayodele/photo-pipeline/internal/ingest"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
	photosvc "github.com/joseph-ayodele/photo-pipeline/internal/services/photo"
	settingssvc "github.com/joseph-ayodele/photo-pipeline/internal/services/settings"
	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

type recordingQueue struct {
	mu       sync.Mutex
	enqueued []int64
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, photoID int64) (async.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return async.Job{}, q.err
	}
	q.enqueued = append(q.enqueued, photoID)
	return async.Job{PhotoID: photoID, RunID: "run-1", SubmittedAt: time.Now()}, nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

type testServer struct {
	handler http.Handler
	photos  repository.PhotoRepository
	queue   *recordingQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })

	photos := repository.NewPhotoRepository(db, logger)
	settings := settingssvc.NewService(repository.NewSettingsRepository(db, logger), logger)
	artifacts := storage.NewArtifactStore(storage.NewMemoryStore("photos"),
		storage.WithPublicBaseURL("https://photos.example.com"), storage.WithArtifactLogger(logger))
	queue := &recordingQueue{}
	svc := photosvc.NewService(photos, ingest.NewPhotoIngestor(photos, artifacts, logger), queue, settings, logger)

	srv := New(svc, settings, export.NewService(photos, logger), logger,
		WithObjects(artifacts), WithMaxUploadBytes(1<<10))
	return &testServer{handler: srv.Handler(), photos: photos, queue: queue}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateAndGetPhoto(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/photos", `{"original_source_url":"https://cdn.example.com/a.jpg"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	created := decode[entity.Photo](t, rec)

	rec = ts.do(t, http.MethodGet, "/api/photos/"+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[entity.Photo](t, rec)
	assert.Equal(t, "https://cdn.example.com/a.jpg", got.OriginalSourceURL)

	rec = ts.do(t, http.MethodGet, "/api/photos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Photo](t, rec), 1)
}

func TestCreatePhotoValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/photos", `{"original_source_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, common.CodeInvalidInput, body.Code)

	rec = ts.do(t, http.MethodPost, "/api/photos", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPhotoNotFoundAndBadID(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/photos/77", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/photos/77/status", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/photos/77/process", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/photos/abc/status", "").Code)
	rec := ts.do(t, http.MethodGet, "/api/photos/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "must be a positive integer")
	assert.Empty(t, ts.queue.enqueued)
}

func TestProcessReturnsWorkflowID(t *testing.T) {
	ts := newTestServer(t)
	photo, err := ts.photos.Create(context.Background(), "https://cdn.example.com/p.jpg", nil)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/photos/"+itoa(photo.ID)+"/process", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "run-1", decode[processResponse](t, rec).WorkflowID)
	assert.Equal(t, []int64{photo.ID}, ts.queue.enqueued)

	ts.queue.err = common.AlreadyRunningf("photo %d is already processing", photo.ID)
	rec = ts.do(t, http.MethodPost, "/api/photos/"+itoa(photo.ID)+"/process", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPhotoStatus(t *testing.T) {
	ts := newTestServer(t)
	photo, err := ts.photos.Create(context.Background(), "https://cdn.example.com/s.jpg", nil)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/photos/"+itoa(photo.ID)+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pending", body["status"])
	assert.EqualValues(t, 0, body["progress"])
	assert.Contains(t, body, "currentPhase")
}

func TestModeratePhoto(t *testing.T) {
	ts := newTestServer(t)
	photo, err := ts.photos.Create(context.Background(), "https://cdn.example.com/m.jpg", nil)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPatch, "/api/photos/"+itoa(photo.ID), `{"is_public":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[entity.Photo](t, rec)
	assert.True(t, got.IsPublic)
	assert.False(t, got.IsModerated)

	rec = ts.do(t, http.MethodPatch, "/api/photos/"+itoa(photo.ID), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadWithAutoApprove(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/config", `{"auto-approve":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"auto-approve": true}, decode[map[string]bool](t, rec))

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "me.png", []byte("png-bytes")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[photosvc.UploadResult](t, rec)
	assert.Equal(t, "run-1", res.WorkflowID)
	require.NotNil(t, res.Photo.OriginalObjectKey)
	assert.Equal(t, []int64{res.Photo.ID}, ts.queue.enqueued)

	rec = ts.do(t, http.MethodGet, "/files/"+*res.Photo.OriginalObjectKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "big.jpg", bytes.Repeat([]byte("x"), 4<<10)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/upload", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.queue.enqueued)
}

func TestConfigDefaultsAndUnknownKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"auto-approve": false}, decode[map[string]bool](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/config", `{"dark-mode":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportXLSX(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.photos.Create(context.Background(), "https://cdn.example.com/x.jpg", nil)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/photos/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestFileMissing(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/files/phase1/nope.png", "").Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "").Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
