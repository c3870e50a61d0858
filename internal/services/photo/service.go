package photo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joseph-ayodele/photo-pipeline/internal/async"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/ingest"
	"github.com/joseph-ayodele/photo-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

const (
	statusCacheSize = 4096
	statusCacheTTL  = 2 * time.Second
	maxListLimit    = 500
)

// AutoApprover reports whether uploads should be processed immediately.
type AutoApprover interface {
	AutoApprove(ctx context.Context) bool
}

// Service handles photo business logic for the HTTP surface and CLIs.
type Service struct {
	photos   repository.PhotoRepository
	ingestor ingest.Ingestor
	queue    async.Queue
	settings AutoApprover
	status   *expirable.LRU[int64, pipeline.Progress]
	logger   *slog.Logger
}

func NewService(photos repository.PhotoRepository, ing ingest.Ingestor, q async.Queue, settings AutoApprover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		photos:   photos,
		ingestor: ing,
		queue:    q,
		settings: settings,
		status:   expirable.NewLRU[int64, pipeline.Progress](statusCacheSize, nil, statusCacheTTL),
		logger:   logger,
	}
}

// UploadResult is returned to the uploader.
type UploadResult struct {
	Photo      *entity.Photo `json:"photo"`
	WorkflowID string        `json:"workflowId,omitempty"`
}

// Upload stores an original photo and, when auto-approve is on, starts
// processing right away.
func (s *Service) Upload(ctx context.Context, filename string, content []byte, contentType string) (*UploadResult, error) {
	r, err := s.ingestor.IngestBytes(ctx, filename, content, contentType)
	if err != nil {
		return nil, err
	}
	photo, err := s.photos.Load(ctx, r.PhotoID)
	if err != nil {
		return nil, err
	}

	out := &UploadResult{Photo: photo}
	if s.settings != nil && s.settings.AutoApprove(ctx) {
		job, err := s.queue.Enqueue(ctx, photo.ID)
		if err != nil {
			s.logger.Error("auto-approve enqueue failed", "photo_id", photo.ID, "error", err)
		} else {
			out.WorkflowID = job.RunID
		}
	}
	return out, nil
}

// CreateFromURLRequest represents photo creation parameters.
type CreateFromURLRequest struct {
	OriginalSourceURL string `json:"original_source_url"`
}

// CreateFromURL registers a photo whose original is already hosted.
func (s *Service) CreateFromURL(ctx context.Context, req CreateFromURLRequest) (*entity.Photo, error) {
	validator := common.NewValidator()
	validator.Field("original_source_url", req.OriginalSourceURL, common.Required, common.AbsoluteHTTPURL, common.MaxLength(2048))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}
	return s.photos.Create(ctx, strings.TrimSpace(req.OriginalSourceURL), nil)
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Photo, error) {
	return s.photos.Load(ctx, id)
}

// List returns photos newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.Photo, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	photos, err := s.photos.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []*entity.Photo{}
	}
	return photos, nil
}

// ModerateRequest toggles the admin flags; nil fields are left unchanged.
type ModerateRequest struct {
	IsPublic    *bool `json:"is_public"`
	IsModerated *bool `json:"is_moderated"`
}

func (s *Service) Moderate(ctx context.Context, id int64, req ModerateRequest) (*entity.Photo, error) {
	if req.IsPublic == nil && req.IsModerated == nil {
		return nil, common.InvalidInputf("nothing to update")
	}
	if err := s.photos.Update(ctx, id, repository.PhotoUpdate{IsPublic: req.IsPublic, IsModerated: req.IsModerated}); err != nil {
		return nil, err
	}
	s.logger.Info("photo moderated", "photo_id", id)
	return s.photos.Load(ctx, id)
}

// Process verifies the photo exists and schedules a run. It returns as soon
// as the run is queued.
func (s *Service) Process(ctx context.Context, id int64) (async.Job, error) {
	if _, err := s.photos.Load(ctx, id); err != nil {
		return async.Job{}, err
	}
	job, err := s.queue.Enqueue(ctx, id)
	if err != nil {
		return async.Job{}, err
	}
	s.status.Remove(id)
	return job, nil
}

// Status returns the progress projection of a photo, cached briefly.
func (s *Service) Status(ctx context.Context, id int64) (pipeline.Progress, error) {
	if cached, ok := s.status.Get(id); ok {
		return cached, nil
	}
	photo, err := s.photos.Load(ctx, id)
	if err != nil {
		return pipeline.Progress{}, err
	}
	progress := pipeline.Project(photo)
	s.status.Add(id, progress)
	return progress, nil
}

// Forget drops the cached status of a photo.
func (s *Service) Forget(id int64) {
	s.status.Remove(id)
}
