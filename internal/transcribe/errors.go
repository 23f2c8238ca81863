package transcribe

import (
	"fmt"

	"speaker-transcriber/internal/media"
)

// Pipeline stage names.
const (
	StageFetch      = "fetch"
	StageNormalize  = "normalize"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageAlign      = "align"
	StagePersist    = "persist"
)

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string           `json:"stage"`
	Message    string           `json:"message"`
	CommandLog media.CommandLog `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats pipeline failures for logs and job status.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
