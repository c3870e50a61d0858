package pipeline

import (
	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
)

// Progress is the coarse view of a photo exposed to pollers.
type Progress struct {
	Status       constants.ProgressStatus `json:"status"`
	Progress     int                      `json:"progress"`
	CurrentPhase string                   `json:"currentPhase"`
	Error        string                   `json:"error,omitempty"`
}

var phaseProgress = [constants.PhaseCount + 1]int{0, 30, 60, 100}

// Project derives Progress from the highest completed phase.
func Project(photo *entity.Photo) Progress {
	var out Progress
	if photo.LastError != nil {
		out.Error = *photo.LastError
	}

	for index := constants.PhaseCount; index >= 1; index-- {
		if photo.ArtifactURL(index) == "" {
			continue
		}
		out.Progress = phaseProgress[index]
		out.CurrentPhase = phaseName(index)
		if index == constants.PhaseCount {
			out.Status = constants.ProgressCompleted
		} else {
			out.Status = constants.ProgressProcessing
		}
		return out
	}

	out.Status = constants.ProgressPending
	return out
}

func phaseName(index int) string {
	switch index {
	case 1:
		return constants.Phase1Name
	case 2:
		return constants.Phase2Name
	case 3:
		return constants.Phase3Name
	}
	return ""
}
