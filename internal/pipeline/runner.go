package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
	"github.com/joseph-ayodele/photo-pipeline/internal/replicate"
	"github.com/joseph-ayodele/photo-pipeline/internal/repository"
	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

// PredictionClient is the subset of the prediction API the runner needs.
type PredictionClient interface {
	Submit(ctx context.Context, modelID string, input map[string]any) (replicate.Prediction, error)
	Fetch(ctx context.Context, id string) (replicate.Prediction, error)
	FetchURL(ctx context.Context, statusURL string) (replicate.Prediction, error)
	IsStatusURL(u string) bool
}

// ArtifactPersister copies a remote output into durable storage.
type ArtifactPersister interface {
	Persist(ctx context.Context, sourceURL, key string) (string, error)
}

// PhaseState is the lifecycle of a single phase execution.
type PhaseState string

const (
	PhaseNotStarted PhaseState = "not_started"
	PhaseSubmitted  PhaseState = "submitted"
	PhasePolling    PhaseState = "polling"
	PhaseSucceeded  PhaseState = "succeeded"
	PhaseFailed     PhaseState = "failed"
	PhaseTimedOut   PhaseState = "timed_out"
)

// Runner executes one phase: submit, poll, persist the artifact and
// checkpoint the photo record along the way.
type Runner struct {
	client    PredictionClient
	artifacts ArtifactPersister
	photos    repository.PhotoRepository
	poller    *Poller
	phases    map[int]Phase
	logger    *slog.Logger
}

func NewRunner(
	client PredictionClient,
	artifacts ArtifactPersister,
	photos repository.PhotoRepository,
	poller *Poller,
	phases []Phase,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if poller == nil {
		poller = NewPoller(client, logger)
	}
	table := make(map[int]Phase, len(phases))
	for _, ph := range phases {
		table[ph.Index] = ph
	}
	return &Runner{
		client:    client,
		artifacts: artifacts,
		photos:    photos,
		poller:    poller,
		phases:    table,
		logger:    logger,
	}
}

// RunPhase drives phase index for photo to completion. A phase whose
// artifact is already stored is a no-op. A recorded job id is polled instead
// of resubmitting, unless that job ended failed or canceled.
func (r *Runner) RunPhase(ctx context.Context, photo *entity.Photo, index int) error {
	phase, ok := r.phases[index]
	if !ok || index < 1 || index > constants.PhaseCount {
		return common.PhaseOrderf("photo %d: unknown phase %d", photo.ID, index)
	}
	if index > 1 && photo.ArtifactURL(index-1) == "" {
		return common.PhaseOrderf("photo %d: phase %d requires phase %d artifact", photo.ID, index, index-1)
	}
	rec, _ := photo.Phase(index)
	log := r.logger.With("photo_id", photo.ID, "phase", phase.Name)
	if rec.Completed() {
		log.Info("pipeline.phase.skip", "artifact_url", *rec.ArtifactURL)
		return nil
	}

	start := time.Now()
	input, err := phase.BuildInput(photo)
	if err != nil {
		return err
	}

	var pred replicate.Prediction
	if rec.Submitted() {
		log.Info("pipeline.phase.resume", "prediction_id", *rec.JobID, "state", PhasePolling)
		pred, err = r.poller.Wait(ctx, *rec.JobID)
		switch {
		case errors.Is(err, replicate.ErrPredictionNotFound):
			// the recorded job expired upstream; start it over
			log.Warn("pipeline.phase.resubmit", "prediction_id", *rec.JobID, "error", err)
			pred, err = r.submitAndWait(ctx, log, photo.ID, phase, input)
		case err != nil:
			r.logFailure(log, err)
			return err
		case pred.Status != constants.PredictionSucceeded:
			log.Warn("pipeline.phase.resubmit", "prediction_id", pred.ID, "status", pred.Status)
			pred, err = r.submitAndWait(ctx, log, photo.ID, phase, input)
		}
	} else {
		pred, err = r.submitAndWait(ctx, log, photo.ID, phase, input)
	}
	if err != nil {
		return err
	}

	if pred.Status != constants.PredictionSucceeded {
		log.Error("pipeline.phase.failed", "prediction_id", pred.ID, "status", pred.Status, "state", PhaseFailed, "upstream_error", pred.ErrorMessage())
		return common.UpstreamJobFailed(pred.ErrorMessage())
	}

	outputURL, err := r.resolveOutput(ctx, pred)
	if err != nil {
		log.Error("pipeline.phase.output_error", "prediction_id", pred.ID, "error", err)
		return err
	}

	key := storage.ArtifactKey(phase.Name, photo.ID, outputURL)
	artifactURL, err := r.artifacts.Persist(ctx, outputURL, key)
	if err != nil {
		log.Error("pipeline.phase.persist_error", "prediction_id", pred.ID, "key", key, "error", err)
		return err
	}

	if err := r.photos.Update(ctx, photo.ID, repository.ArtifactUpdate(index, outputURL, key, artifactURL)); err != nil {
		return fmt.Errorf("record phase %d artifact: %w", index, err)
	}
	log.Info("pipeline.phase.ok",
		"prediction_id", pred.ID,
		"state", PhaseSucceeded,
		"artifact_key", key,
		"artifact_url", artifactURL,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (r *Runner) submitAndWait(ctx context.Context, log *slog.Logger, photoID int64, phase Phase, input map[string]any) (replicate.Prediction, error) {
	pred, err := r.client.Submit(ctx, phase.ModelID, input)
	if err != nil {
		log.Error("pipeline.phase.submit_error", "model", phase.ModelID, "error", err)
		return replicate.Prediction{}, err
	}
	if err := r.photos.Update(ctx, photoID, repository.SubmittedUpdate(phase.Index, pred.ID, pred.URLs.Get)); err != nil {
		return replicate.Prediction{}, fmt.Errorf("record phase %d submission: %w", phase.Index, err)
	}
	log.Info("pipeline.phase.submitted", "prediction_id", pred.ID, "model", phase.ModelID, "state", PhaseSubmitted)

	pred, err = r.poller.Wait(ctx, pred.ID)
	if err != nil {
		r.logFailure(log, err)
		return replicate.Prediction{}, err
	}
	return pred, nil
}

func (r *Runner) logFailure(log *slog.Logger, err error) {
	state := PhaseFailed
	if common.CodeOf(err) == common.CodePollTimeout {
		state = PhaseTimedOut
	}
	log.Error("pipeline.phase.poll_failed", "state", state, "error", err)
}

// resolveOutput returns a directly downloadable URL. When the first output
// points back at the prediction API, that document is fetched once more and
// its own output is used.
func (r *Runner) resolveOutput(ctx context.Context, pred replicate.Prediction) (string, error) {
	first, ok := pred.Output.First()
	if !ok {
		return "", common.UpstreamError(fmt.Sprintf("prediction %s succeeded without output", pred.ID), nil)
	}
	if !r.client.IsStatusURL(first) {
		return first, nil
	}

	doc, err := r.client.FetchURL(ctx, first)
	if err != nil {
		return "", err
	}
	resolved, ok := doc.Output.First()
	if !ok {
		return "", common.UpstreamError(fmt.Sprintf("status document %s has no output", first), nil)
	}
	return resolved, nil
}
