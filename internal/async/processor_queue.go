package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

// ProcessorQueue runs photo jobs on a bounded worker pool. A photo id that is
// already queued or running is refused, so runs for one photo never overlap
// inside a process.
type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int

	base   context.Context
	cancel context.CancelFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	inflightMu sync.Mutex
	inflight   map[int64]string

	onDone func(Job, error)
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithOnDone registers a callback invoked after every run.
func WithOnDone(fn func(Job, error)) Option {
	return func(q *ProcessorQueue) {
		q.onDone = fn
	}
}

// NewProcessorQueue starts the workers. Runs inherit ctx; cancelling it (or a
// Shutdown that runs out of time) interrupts in-flight runs.
func NewProcessorQueue(ctx context.Context, runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(ctx)
	q := &ProcessorQueue{
		runner:   runner,
		logger:   logger,
		workers:  4,
		base:     base,
		cancel:   cancel,
		ch:       make(chan Job, 256),
		inflight: make(map[int64]string),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx := common.WithRunID(q.base, job.RunID)
	ctx = common.WithPhotoID(ctx, job.PhotoID)

	start := time.Now()
	_, err := q.runner.Run(ctx, job.PhotoID)
	q.release(job.PhotoID)

	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "photo_id", job.PhotoID, "run_id", job.RunID, "error", err)
	} else {
		q.logger.Info("processed photo successfully", "worker_id", workerID, "photo_id", job.PhotoID, "run_id", job.RunID,
			"elapsed_ms", time.Since(start).Milliseconds())
	}
	if q.onDone != nil {
		q.onDone(job, err)
	}
}

// Enqueue schedules a run for photoID and returns its job. It blocks while
// the buffer is full, until ctx ends.
func (q *ProcessorQueue) Enqueue(ctx context.Context, photoID int64) (Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "photo_id", photoID)
		return Job{}, ErrQueueClosed
	}

	job := Job{PhotoID: photoID, RunID: uuid.NewString(), SubmittedAt: time.Now()}
	if running, ok := q.claim(photoID, job.RunID); !ok {
		q.logger.Warn("photo already queued or running", "photo_id", photoID, "run_id", running)
		return Job{}, common.AlreadyRunningf("photo %d is already being processed", photoID)
	}

	select {
	case q.ch <- job:
		q.logger.Info("queued photo for processing", "photo_id", photoID, "run_id", job.RunID)
		return job, nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "photo_id", photoID)
	select {
	case q.ch <- job:
		return job, nil
	case <-ctx.Done():
		q.release(photoID)
		return Job{}, ctx.Err()
	}
}

// Inflight reports whether photoID is queued or running.
func (q *ProcessorQueue) Inflight(photoID int64) bool {
	q.inflightMu.Lock()
	defer q.inflightMu.Unlock()
	_, ok := q.inflight[photoID]
	return ok
}

func (q *ProcessorQueue) claim(photoID int64, runID string) (string, bool) {
	q.inflightMu.Lock()
	defer q.inflightMu.Unlock()
	if existing, ok := q.inflight[photoID]; ok {
		return existing, false
	}
	q.inflight[photoID] = runID
	return runID, true
}

func (q *ProcessorQueue) release(photoID int64) {
	q.inflightMu.Lock()
	delete(q.inflight, photoID)
	q.inflightMu.Unlock()
}

// Shutdown stops accepting jobs and drains the queue. When ctx ends first,
// in-flight runs are cancelled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context; cancelling in-flight runs")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
