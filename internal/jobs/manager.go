// Package jobs tracks transcription job lifecycles and publishes their events.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/media"
)

const defaultMirrorTimeout = 10 * time.Second

// Mirror is the durable copy of job state, written at creation and on
// terminal transitions.
type Mirror interface {
	CreateRecord(ctx context.Context, job domain.Job) error
	UpdateRecord(ctx context.Context, job domain.Job) error
}

// Manager tracks every submitted job and validates its transitions.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job

	mirror        Mirror
	mirrorTimeout time.Duration
	events        *EventBus
	logger        *log.Logger
	now           func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMirror sets the durable mirror.
func WithMirror(mirror Mirror) ManagerOption {
	return func(m *Manager) { m.mirror = mirror }
}

// WithEvents sets the bus receiving state-change events.
func WithEvents(bus *EventBus) ManagerOption {
	return func(m *Manager) { m.events = bus }
}

// WithLogger sets the logger used for mirror failures.
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty job table.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		jobs:          make(map[string]*domain.Job),
		mirrorTimeout: defaultMirrorTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events == nil {
		m.events = NewEventBus(0)
	}
	if m.logger == nil {
		m.logger = log.New("jobs")
		m.logger.SetLevel(log.OFF)
	}
	return m
}

// Events returns the bus the manager publishes to.
func (m *Manager) Events() *EventBus {
	return m.events
}

// Create registers a pending job with zero progress.
func (m *Manager) Create(jobID string, asset domain.AudioAsset) (domain.Job, error) {
	if jobID == "" {
		return domain.Job{}, fmt.Errorf("job id is required: %w", domain.ErrValidation)
	}

	m.mu.Lock()
	if _, ok := m.jobs[jobID]; ok {
		m.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, domain.ErrDuplicateID)
	}
	now := m.now()
	job := &domain.Job{
		ID:        jobID,
		Status:    domain.JobStatusPending,
		Message:   "Queued",
		Asset:     asset,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[jobID] = job
	snapshot := *job
	m.mu.Unlock()

	m.publish(EventTypeCreated, snapshot)
	m.mirrorWrite(snapshot, true)
	return snapshot, nil
}

// Transition moves a job to pending or processing with new progress and message.
// Terminal states are reached only through AttachResult and AttachError.
func (m *Manager) Transition(jobID string, status domain.JobStatus, progress int, message string) error {
	if status.IsTerminal() {
		return fmt.Errorf("job %s: %s requires an attached outcome: %w", jobID, status, domain.ErrInvalidTransition)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("job %s: progress %d out of range: %w", jobID, progress, domain.ErrValidation)
	}

	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err := checkTransition(job, status); err != nil {
		m.mu.Unlock()
		return err
	}
	if progress < job.Progress {
		m.mu.Unlock()
		return fmt.Errorf("job %s: progress %d -> %d: %w", jobID, job.Progress, progress, domain.ErrInvalidTransition)
	}

	job.Status = status
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = m.now()
	snapshot := *job
	m.mu.Unlock()

	m.publish(EventTypeStatus, snapshot)
	return nil
}

// AttachResult completes a job with its result.
func (m *Manager) AttachResult(jobID string, result domain.TranscriptionResult, message string) error {
	snapshot, err := m.finish(jobID, domain.JobStatusCompleted, func(job *domain.Job) {
		job.Progress = 100
		job.Message = message
		job.Result = &result
	})
	if err != nil {
		return err
	}

	m.publish(EventTypeResult, snapshot)
	m.mirrorWrite(snapshot, false)
	return nil
}

// AttachError fails a job with a descriptive message.
func (m *Manager) AttachError(jobID string, errMsg string) error {
	snapshot, err := m.finish(jobID, domain.JobStatusFailed, func(job *domain.Job) {
		job.Message = errMsg
		job.Error = errMsg
	})
	if err != nil {
		return err
	}

	m.publish(EventTypeError, snapshot)
	m.mirrorWrite(snapshot, false)
	return nil
}

// Log publishes an external command invocation for a job without changing its state.
func (m *Manager) Log(jobID string, entry media.CommandLog) {
	m.events.Publish(Event{
		JobID:    jobID,
		Type:     EventTypeLog,
		Command:  entry.Command,
		Args:     entry.Args,
		ExitCode: entry.ExitCode,
		Stderr:   entry.Stderr,
	})
}

// Get returns a snapshot of one job.
func (m *Manager) Get(jobID string) (domain.JobSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.JobSnapshot{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return *job, nil
}

// List returns snapshots of all tracked jobs, oldest first.
func (m *Manager) List() []domain.JobSnapshot {
	m.mu.RLock()
	out := make([]domain.JobSnapshot, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Remove forgets a finished job. Jobs still pending or processing cannot be removed.
func (m *Manager) Remove(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrInvalidTransition)
	}
	delete(m.jobs, jobID)
	return nil
}

// finish applies a terminal transition under the lock and returns the snapshot.
func (m *Manager) finish(jobID string, status domain.JobStatus, apply func(job *domain.Job)) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err := checkTransition(job, status); err != nil {
		return domain.Job{}, err
	}

	job.Status = status
	apply(job)
	job.UpdatedAt = m.now()
	return *job, nil
}

func (m *Manager) publish(kind EventType, job domain.Job) {
	m.events.Publish(Event{
		JobID:    job.ID,
		Type:     kind,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	})
}

// mirrorWrite copies job state to the durable mirror. Failures are logged only.
func (m *Manager) mirrorWrite(job domain.Job, create bool) {
	if m.mirror == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.mirrorTimeout)
	defer cancel()

	var err error
	if create {
		err = m.mirror.CreateRecord(ctx, job)
	} else {
		err = m.mirror.UpdateRecord(ctx, job)
	}
	if err != nil {
		m.logger.Errorf("job %s: mirror write (%s) failed: %v", job.ID, job.Status, err)
	}
}

// checkTransition validates a status move against the current job state.
func checkTransition(job *domain.Job, to domain.JobStatus) error {
	if job.Status == to && !to.IsTerminal() {
		return nil
	}
	if !isValidTransition(job.Status, to) {
		return fmt.Errorf("job %s: %s -> %s: %w", job.ID, job.Status, to, domain.ErrInvalidTransition)
	}
	return nil
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusPending:
		return to == domain.JobStatusProcessing || to == domain.JobStatusFailed
	case domain.JobStatusProcessing:
		return to == domain.JobStatusProcessing || to == domain.JobStatusCompleted || to == domain.JobStatusFailed
	default:
		return false
	}
}
