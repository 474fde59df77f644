package pipeline

import "github.com/rotisserie/eris"

// Failure taxonomy for the analysis pipeline. Each sentinel marks one stage
// of the fallback state machine; only ErrExtraction surviving both the
// unified and decomposed paths ever reaches the caller.
var (
	// ErrExtraction marks an oracle call that was unreachable or returned
	// content no accepted schema could parse.
	ErrExtraction = eris.New("extraction failed")

	// ErrClassification marks a failed decomposed risk call. Recovered
	// locally by labeling every ingredient Low.
	ErrClassification = eris.New("classification failed")
)

// Stage identifies the orchestrator state that produced a result.
type Stage string

const (
	StageUnified            Stage = "unified"
	StageDecomposedExtract  Stage = "decomposed_extract"
	StageDecomposedClassify Stage = "decomposed_classify"
	StageDefaultLow         Stage = "default_low"
)
