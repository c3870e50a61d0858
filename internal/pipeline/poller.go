package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/replicate"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 60
)

// Sleeper waits for d. It returns early with ctx's error when ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type predictionFetcher interface {
	Fetch(ctx context.Context, id string) (replicate.Prediction, error)
}

// Poller fetches a prediction until it is terminal or the attempt budget is
// spent. Fetch errors and non-terminal statuses each consume one attempt;
// the interval is waited between attempts only.
type Poller struct {
	client      predictionFetcher
	interval    time.Duration
	maxAttempts int
	sleep       Sleeper
	logger      *slog.Logger
}

type PollerOption func(*Poller)

func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithSleeper(s Sleeper) PollerOption {
	return func(p *Poller) {
		if s != nil {
			p.sleep = s
		}
	}
}

func NewPoller(client predictionFetcher, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:      client,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollMaxAttempts,
		sleep:       contextSleep,
		logger:      logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Wait returns the first terminal snapshot of the prediction. On exhaustion
// it returns a POLL_TIMEOUT error wrapping the last fetch error, if any.
func (p *Poller) Wait(ctx context.Context, predictionID string) (replicate.Prediction, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		pred, err := p.client.Fetch(ctx, predictionID)
		switch {
		case err != nil:
			lastErr = err
			p.logger.Warn("pipeline.poll.fetch_error", "prediction_id", predictionID, "attempt", attempt, "error", err)
		case pred.Status.IsTerminal():
			p.logger.Info("pipeline.poll.terminal", "prediction_id", predictionID, "attempt", attempt, "status", pred.Status)
			return pred, nil
		default:
			p.logger.Debug("pipeline.poll.pending", "prediction_id", predictionID, "attempt", attempt, "status", pred.Status)
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return replicate.Prediction{}, fmt.Errorf("poll %s interrupted: %w", predictionID, err)
		}
	}
	return replicate.Prediction{}, common.PollTimeout(
		fmt.Sprintf("prediction %s not terminal after %d attempts", predictionID, p.maxAttempts),
		lastErr,
	)
}
