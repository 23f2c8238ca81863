package domain

import "errors"

var (
	// ErrValidation marks bad or missing caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown job or resource id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when creating a job whose id is already tracked.
	ErrDuplicateID = errors.New("duplicate job id")
	// ErrInvalidTransition is returned for backward or illegal status changes.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrModel marks a speech-to-text or diarization hard failure.
	ErrModel = errors.New("model error")
	// ErrPipelineUnavailable marks a diarization engine that cannot serve requests.
	ErrPipelineUnavailable = errors.New("pipeline unavailable")
	// ErrThrottling marks a transient upstream failure that may be retried.
	ErrThrottling = errors.New("throttled")
	// ErrClient marks a fatal generative-text client failure.
	ErrClient = errors.New("client error")
	// ErrRetriesExhausted is returned after the backoff policy gives up.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrPersistence marks a durable-store failure.
	ErrPersistence = errors.New("persistence error")
	// ErrIO marks a filesystem or network fetch failure.
	ErrIO = errors.New("io error")
	// ErrNotReady is returned when a job has no result yet.
	ErrNotReady = errors.New("job not completed")
	// ErrQueueFull is returned when the worker pool cannot accept more jobs.
	ErrQueueFull = errors.New("job queue is full")
)
