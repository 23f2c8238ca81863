package domain

import (
	"fmt"
	"time"
)

// JobStatus tracks the lifecycle of one transcription job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus accepts one of the four lifecycle states.
func ParseJobStatus(raw string) (JobStatus, error) {
	switch status := JobStatus(raw); status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q: %w", raw, ErrValidation)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AudioAsset describes an accepted upload.
type AudioAsset struct {
	Path     string   `json:"path"`
	Filename string   `json:"filename"`
	Duration *float64 `json:"duration,omitempty"`
	Size     int64    `json:"size"`
	Format   string   `json:"format,omitempty"`
}

// TranscriptSegment is one timed piece of speech-to-text output, in seconds.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerTurn is one diarization interval with an engine-local speaker label.
type SpeakerTurn struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id"`
}

// AlignedSegment is a transcript segment attributed to a canonical speaker.
type AlignedSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// SpeakerSegment is the per-speaker view of an aligned segment.
type SpeakerSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the raw output of a speech-to-text engine.
type Transcript struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
}

// TranscriptionResult is attached to a completed job and never mutated.
type TranscriptionResult struct {
	FullText        string                      `json:"text"`
	SpeakerText     string                      `json:"speakers_text"`
	SpeakerSegments map[string][]SpeakerSegment `json:"speakers"`
	Segments        []AlignedSegment            `json:"segments,omitempty"`
	Language        string                      `json:"language"`
}

// Job stores identity, lifecycle status, and the terminal payload.
type Job struct {
	ID        string               `json:"id"`
	Status    JobStatus            `json:"status"`
	Progress  int                  `json:"progress"`
	Message   string               `json:"message"`
	Result    *TranscriptionResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	Asset     AudioAsset           `json:"audio"`
	Edited    bool                 `json:"is_edited"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// JobSnapshot is the read-only view returned to status queries.
type JobSnapshot = Job
