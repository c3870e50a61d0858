package pipeline

import (
	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/entity"
)

// Phase describes one upstream inference step. Name doubles as the artifact
// key prefix.
type Phase struct {
	Index      int
	Name       string
	ModelID    string
	BuildInput func(photo *entity.Photo) (map[string]any, error)
}

// Models selects the upstream model of every phase.
type Models struct {
	Phase1 string
	Phase2 string
	Phase3 string
}

func (m Models) withDefaults() Models {
	if m.Phase1 == "" {
		m.Phase1 = constants.Phase1Model
	}
	if m.Phase2 == "" {
		m.Phase2 = constants.Phase2Model
	}
	if m.Phase3 == "" {
		m.Phase3 = constants.Phase3Model
	}
	return m
}

// DefaultPhases returns the style transform, face-swap and image-to-video
// phases in execution order.
func DefaultPhases(models Models) []Phase {
	models = models.withDefaults()
	return []Phase{
		{
			Index:   1,
			Name:    constants.Phase1Name,
			ModelID: models.Phase1,
			BuildInput: func(photo *entity.Photo) (map[string]any, error) {
				return map[string]any{
					"prompt":      constants.Phase1Prompt,
					"input_image": photo.OriginalSourceURL,
				}, nil
			},
		},
		{
			Index:   2,
			Name:    constants.Phase2Name,
			ModelID: models.Phase2,
			BuildInput: func(photo *entity.Photo) (map[string]any, error) {
				styled := photo.ArtifactURL(1)
				if styled == "" {
					return nil, common.PhaseOrderf("photo %d: phase 2 needs the phase 1 artifact", photo.ID)
				}
				return map[string]any{
					"target_image": styled,
					"swap_image":   photo.OriginalSourceURL,
					"upscale":      false,
				}, nil
			},
		},
		{
			Index:   3,
			Name:    constants.Phase3Name,
			ModelID: models.Phase3,
			BuildInput: func(photo *entity.Photo) (map[string]any, error) {
				portrait := photo.ArtifactURL(2)
				if portrait == "" {
					return nil, common.PhaseOrderf("photo %d: phase 3 needs the phase 2 artifact", photo.ID)
				}
				return map[string]any{
					"prompt":            constants.Phase3Prompt,
					"first_frame_image": portrait,
					"go_fast":           true,
				}, nil
			},
		},
	}
}
