// Package bootstrap wires the orchestrator components shared by the daemon
// and the CLIs.
package bootstrap

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/photo-pipeline/internal/replicate"
	repo "github.com/joseph-ayodele/photo-pipeline/internal/repository"
	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

// Components are the long-lived pieces a process needs to run photos.
type Components struct {
	Photos    repo.PhotoRepository
	Settings  repo.SettingsRepository
	Artifacts *storage.ArtifactStore
	Client    *replicate.Client
	Processor *pipeline.Processor
}

// NewArtifactStore picks S3 when credentials are configured and an
// in-process store otherwise. fallbackBase is used as the public base URL
// of the in-process store when none is configured.
func NewArtifactStore(cfg common.StorageConfig, fallbackBase string, logger *slog.Logger) (*storage.ArtifactStore, error) {
	opts := []storage.ArtifactOption{
		storage.WithArtifactLogger(logger),
		storage.WithDownloadClient(&http.Client{Timeout: cfg.DownloadTimeout}),
	}

	var blobs storage.BlobStore
	if cfg.CanUseS3() {
		s3, err := storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "init artifact storage", err)
		}
		blobs = s3
		logger.Info("artifact storage: s3", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	} else {
		blobs = storage.NewMemoryStore(cfg.Bucket)
		logger.Warn("artifact storage: in-memory; artifacts are lost on exit", "bucket", cfg.Bucket)
		if cfg.PublicBaseURL == "" && fallbackBase != "" {
			opts = append(opts, storage.WithPublicBaseURL(fallbackBase))
		}
	}

	if cfg.PublicBaseURL != "" {
		opts = append(opts, storage.WithPublicBaseURL(strings.TrimRight(cfg.PublicBaseURL, "/")))
	}
	return storage.NewArtifactStore(blobs, opts...), nil
}

// New builds the repositories, prediction client and run processor.
func New(cfg *common.Config, db *repo.DB, artifacts *storage.ArtifactStore, logger *slog.Logger) (*Components, error) {
	client, err := replicate.NewClient(cfg.Replicate.BaseURL, cfg.Replicate.APIToken,
		replicate.WithTimeout(cfg.Replicate.Timeout),
		replicate.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	photos := repo.NewPhotoRepository(db, logger)
	poller := pipeline.NewPoller(client, logger,
		pipeline.WithPollInterval(cfg.Pipeline.PollInterval),
		pipeline.WithMaxAttempts(cfg.Pipeline.PollMaxAttempts),
	)
	phases := pipeline.DefaultPhases(pipeline.Models{
		Phase1: cfg.Pipeline.Phase1Model,
		Phase2: cfg.Pipeline.Phase2Model,
		Phase3: cfg.Pipeline.Phase3Model,
	})
	runner := pipeline.NewRunner(client, artifacts, photos, poller, phases, logger)

	return &Components{
		Photos:    photos,
		Settings:  repo.NewSettingsRepository(db, logger),
		Artifacts: artifacts,
		Client:    client,
		Processor: pipeline.NewProcessor(photos, runner, logger),
	}, nil
}
