package models

// Phase tags a ProgressEvent with the pipeline stage that emitted it.
type Phase string

const (
	PhaseBrowserSetup Phase = "browser-setup"
	PhaseScraping     Phase = "scraping"
	PhaseExtracting   Phase = "extracting"
	PhaseFinishing    Phase = "finishing"
	PhaseError        Phase = "error"
)

// ProgressEvent is one phase-tagged status message pushed to the invocation's
// observer. Events are append-only, ordered by emission time, scoped to one
// invocation, and never replayed.
type ProgressEvent struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
