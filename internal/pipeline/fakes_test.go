package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/replicate"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

const fakeAPIBase = "https://api.test/v1/predictions/"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type submitCall struct {
	Model string
	Input map[string]any
}

// fakeClient replays scripted prediction snapshots per id. The last snapshot
// of a script repeats once the script is exhausted.
type fakeClient struct {
	mu         sync.Mutex
	ids        map[string][]string
	scripts    map[string][]fetchResult
	statusDocs map[string]replicate.Prediction
	submits    []submitCall
	fetches    map[string]int
	submitErr  error
}

type fetchResult struct {
	pred replicate.Prediction
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		ids:        map[string][]string{},
		scripts:    map[string][]fetchResult{},
		statusDocs: map[string]replicate.Prediction{},
		fetches:    map[string]int{},
	}
}

// onSubmit queues the prediction id returned for the next submission of model.
func (f *fakeClient) onSubmit(model, id string) *fakeClient {
	f.ids[model] = append(f.ids[model], id)
	return f
}

func (f *fakeClient) script(id string, results ...fetchResult) *fakeClient {
	f.scripts[id] = results
	return f
}

func (f *fakeClient) Submit(_ context.Context, modelID string, input map[string]any) (replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submitCall{Model: modelID, Input: input})
	if f.submitErr != nil {
		return replicate.Prediction{}, f.submitErr
	}
	queue := f.ids[modelID]
	if len(queue) == 0 {
		return replicate.Prediction{}, common.UpstreamError("no scripted id for "+modelID, nil)
	}
	id := queue[0]
	f.ids[modelID] = queue[1:]
	return replicate.Prediction{
		ID:     id,
		Model:  modelID,
		Status: constants.PredictionQueued,
		URLs:   replicate.URLs{Get: fakeAPIBase + id},
	}, nil
}

func (f *fakeClient) Fetch(_ context.Context, id string) (replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.fetches[id]
	f.fetches[id] = n + 1
	script := f.scripts[id]
	if len(script) == 0 {
		return replicate.Prediction{}, common.UpstreamError("GET predictions/"+id, replicate.ErrPredictionNotFound)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].pred, script[n].err
}

func (f *fakeClient) FetchURL(_ context.Context, statusURL string) (replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.statusDocs[statusURL]
	if !ok {
		return replicate.Prediction{}, common.UpstreamError("unknown status url "+statusURL, nil)
	}
	return doc, nil
}

func (f *fakeClient) IsStatusURL(u string) bool {
	return strings.HasPrefix(u, fakeAPIBase)
}

func (f *fakeClient) submittedModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.submits))
	for _, s := range f.submits {
		out = append(out, s.Model)
	}
	return out
}

func (f *fakeClient) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

func running(id string) fetchResult {
	return fetchResult{pred: replicate.Prediction{ID: id, Status: constants.PredictionRunning}}
}

func succeeded(id string, output ...string) fetchResult {
	return fetchResult{pred: replicate.Prediction{ID: id, Status: constants.PredictionSucceeded, Output: output}}
}

func failed(id, msg string) fetchResult {
	return fetchResult{pred: replicate.Prediction{ID: id, Status: constants.PredictionFailed, Error: msg}}
}

// fakeArtifacts records persisted objects and returns a fixed public URL.
type fakeArtifacts struct {
	mu        sync.Mutex
	persisted map[string]string
	err       error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{persisted: map[string]string{}}
}

func (a *fakeArtifacts) Persist(_ context.Context, sourceURL, key string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.persisted[key] = sourceURL
	return "https://photos.test/" + key, nil
}

// countingRepo counts writes made through the repository.
type countingRepo struct {
	repository.PhotoRepository
	mu      sync.Mutex
	updates int
}

func (c *countingRepo) Update(ctx context.Context, id int64, upd repository.PhotoUpdate) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.PhotoRepository.Update(ctx, id, upd)
}

func (c *countingRepo) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

type testEnv struct {
	db     *repository.DB
	photos *countingRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{Driver: "sqlite", DSN: ":memory:"}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, quietLogger()) })
	return &testEnv{
		db:     db,
		photos: &countingRepo{PhotoRepository: repository.NewPhotoRepository(db, quietLogger())},
	}
}

// seed inserts a photo with an explicit id and applies upd, then resets the
// write counter.
func (e *testEnv) seed(t *testing.T, id int64, sourceURL string, upd repository.PhotoUpdate) *entity.Photo {
	t.Helper()
	ctx := context.Background()
	_, err := e.db.SQL.ExecContext(ctx,
		"INSERT INTO photos (id, original_source_url, create_timestamp, update_timestamp) VALUES (?, ?, ?, ?)",
		id, sourceURL, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, e.photos.PhotoRepository.Update(ctx, id, upd))
	photo, err := e.photos.Load(ctx, id)
	require.NoError(t, err)
	return photo
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRunner(client PredictionClient, artifacts ArtifactPersister, photos repository.PhotoRepository) *Runner {
	poller := NewPoller(client, quietLogger(), WithSleeper(noSleep))
	return NewRunner(client, artifacts, photos, poller, DefaultPhases(Models{}), quietLogger())
}

func artifactsFor(phases ...int) repository.PhotoUpdate {
	upd := repository.PhotoUpdate{Phases: map[int]repository.PhaseUpdate{}}
	for _, p := range phases {
		key := fmt.Sprintf("phase%d/seed", p)
		u := "https://photos.test/" + key
		upd.Phases[p] = repository.PhaseUpdate{ArtifactKey: &key, ArtifactURL: &u}
	}
	return upd
}
