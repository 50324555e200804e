package supervisor

import "github.com/sentinel-dev/sentinel-core/internal/ringlog"

// Event names broadcast on the event bus.
const (
	EventProcessOutput = "process-output"
	EventProcessExit   = "process-exit"
	EventProcessState  = "process-state"
)

// OutputPayload is the process-output event payload: an ordered batch of
// lines produced by one process.
type OutputPayload struct {
	ID    string           `json:"id"`
	Lines []ringlog.LogLine `json:"lines"`
}

// ExitPayload is the process-exit event payload. ExitCode is nil when the
// process never reached a point where an OS exit code was observed.
type ExitPayload struct {
	ID       string `json:"id"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// StatePayload is the process-state event payload.
type StatePayload struct {
	ID    string `json:"id"`
	State string `json:"state"`
}
