package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one orchestrator run request.
type Job struct {
	PhotoID     int64
	RunID       string
	SubmittedAt time.Time
}

// Runner processes a photo end to end.
type Runner interface {
	Run(ctx context.Context, photoID int64) (*entity.Photo, error)
}

type Queue interface {
	Enqueue(ctx context.Context, photoID int64) (Job, error)
	Shutdown(ctx context.Context)
}
