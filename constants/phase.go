package constants

// PhaseCount is the number of sequential phases of a photo run.
const PhaseCount = 3

// Phase names double as object key prefixes.
const (
	Phase1Name = "phase1"
	Phase2Name = "phase2"
	Phase3Name = "phase3"
)

// Default upstream models per phase.
const (
	Phase1Model = "black-forest-labs/flux-kontext-pro"
	Phase2Model = "easel/advanced-face-swap"
	Phase3Model = "minimax/hailuo-02-fast"
)

const (
	Phase1Prompt = "Make me a wizard, Harry! Put me in front of a neutral, dark background."
	Phase3Prompt = "a living portrait of a wizard from harry potter. keep motions subtle and gentle"
)

// OriginalKeyPrefix is the object key prefix for uploaded originals.
const OriginalKeyPrefix = "original"
