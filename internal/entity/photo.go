package entity

import (
	"time"

	"github.com/joseph-ayodele/photo-pipeline/constants"
)

// PhaseRecord holds the checkpoints a phase leaves on its photo.
// ArtifactURL is the only completion signal; the other fields are progress
// markers used for resumption and diagnostics.
type PhaseRecord struct {
	JobID        *string `json:"job_id,omitempty"`
	JobStatusURL *string `json:"job_status_url,omitempty"`
	OutputURL    *string `json:"output_url,omitempty"`
	ArtifactKey  *string `json:"artifact_key,omitempty"`
	ArtifactURL  *string `json:"artifact_url,omitempty"`
}

// Completed reports whether the phase artifact has been stored.
func (r PhaseRecord) Completed() bool {
	return r.ArtifactURL != nil && *r.ArtifactURL != ""
}

// Submitted reports whether an upstream job id was recorded.
func (r PhaseRecord) Submitted() bool {
	return r.JobID != nil && *r.JobID != ""
}

// Photo is the durable, resumable record of one photo's processing.
type Photo struct {
	ID                int64                             `json:"id"`
	OriginalSourceURL string                            `json:"original_source_url"`
	OriginalObjectKey *string                           `json:"original_object_key,omitempty"`
	Phases            [constants.PhaseCount]PhaseRecord `json:"phases"`
	LastError         *string                           `json:"last_error,omitempty"`
	IsPublic          bool                              `json:"is_public"`
	IsModerated       bool                              `json:"is_moderated"`
	CreatedAt         time.Time                         `json:"create_timestamp"`
	UpdatedAt         time.Time                         `json:"update_timestamp"`
}

// Phase returns the record of the 1-based phase index, or false when the
// index is out of range.
func (p *Photo) Phase(index int) (PhaseRecord, bool) {
	if index < 1 || index > constants.PhaseCount {
		return PhaseRecord{}, false
	}
	return p.Phases[index-1], true
}

// ArtifactURL returns the stored artifact URL of a phase, or "".
func (p *Photo) ArtifactURL(index int) string {
	rec, ok := p.Phase(index)
	if !ok || rec.ArtifactURL == nil {
		return ""
	}
	return *rec.ArtifactURL
}

// Setting is one key/value entry of the runtime settings store.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"update_timestamp"`
}
