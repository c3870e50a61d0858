package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

// PhaseRunner runs a single phase of a photo.
type PhaseRunner interface {
	RunPhase(ctx context.Context, photo *entity.Photo, index int) error
}

// Processor sequences the phases of one photo. It is safe to call Run again
// after a failure; completed phases are skipped.
type Processor struct {
	photos repository.PhotoRepository
	runner PhaseRunner
	logger *slog.Logger
}

func NewProcessor(photos repository.PhotoRepository, runner PhaseRunner, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{photos: photos, runner: runner, logger: logger}
}

// Run processes photoID until every phase artifact exists or a phase fails.
// The first failure is recorded as the photo's last error and returned.
func (p *Processor) Run(ctx context.Context, photoID int64) (*entity.Photo, error) {
	start := time.Now()
	ctx = common.WithPhotoID(ctx, photoID)
	log := p.logger.With("photo_id", photoID)
	if runID := common.RunIDFromContext(ctx); runID != "" {
		log = log.With("run_id", runID)
	}

	photo, err := p.photos.Load(ctx, photoID)
	if err != nil {
		log.Error("processor.load.failed", "error", err)
		return nil, err
	}

	if photo.LastError != nil {
		cleared := ""
		if err := p.photos.Update(ctx, photoID, repository.PhotoUpdate{LastError: &cleared}); err != nil {
			return photo, common.WrapError(err, "clear last error")
		}
		photo.LastError = nil
	}

	for index := 1; index <= constants.PhaseCount; index++ {
		if photo.ArtifactURL(index) != "" {
			log.Debug("processor.phase.done", "phase", index)
			continue
		}

		if err := p.runner.RunPhase(ctx, photo, index); err != nil {
			p.recordFailure(ctx, log, photoID, err)
			return photo, common.WrapError(err, fmt.Sprintf("photo %d phase %d", photoID, index))
		}

		photo, err = p.photos.Load(ctx, photoID)
		if err != nil {
			return nil, common.WrapError(err, fmt.Sprintf("reload photo %d", photoID))
		}
	}

	log.Info("processor.run.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return photo, nil
}

func (p *Processor) recordFailure(ctx context.Context, log *slog.Logger, photoID int64, runErr error) {
	msg := runErr.Error()
	// recorded even when ctx was canceled by shutdown
	ctx = context.WithoutCancel(ctx)
	if err := p.photos.Update(ctx, photoID, repository.PhotoUpdate{LastError: &msg}); err != nil {
		log.Error("processor.record_failure.failed", "error", err)
	}
	log.Error("processor.run.failed", "code", common.CodeOf(runErr), "error", runErr)
}
