package constants

// PredictionStatus is the normalized status of an upstream prediction.
type PredictionStatus string

// Stable values; upstream "starting" and "processing" are folded into queued/running.
const (
	PredictionQueued    PredictionStatus = "queued"
	PredictionRunning   PredictionStatus = "running"
	PredictionSucceeded PredictionStatus = "succeeded"
	PredictionFailed    PredictionStatus = "failed"
	PredictionCanceled  PredictionStatus = "canceled"
)

// IsTerminal reports whether no further transitions are expected.
func (s PredictionStatus) IsTerminal() bool {
	switch s {
	case PredictionSucceeded, PredictionFailed, PredictionCanceled:
		return true
	default:
		return false
	}
}

// NormalizePredictionStatus maps the raw upstream value to a PredictionStatus.
// "aborted" counts as canceled. Unknown values become PredictionRunning so
// they keep polling within the attempt budget.
func NormalizePredictionStatus(raw string) PredictionStatus {
	switch raw {
	case "starting", "queued":
		return PredictionQueued
	case "processing", "running":
		return PredictionRunning
	case "succeeded":
		return PredictionSucceeded
	case "failed":
		return PredictionFailed
	case "canceled", "cancelled", "aborted":
		return PredictionCanceled
	default:
		return PredictionRunning
	}
}

// ProgressStatus is the coarse status exposed to external pollers.
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
)
