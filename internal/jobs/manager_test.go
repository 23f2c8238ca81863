package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"speaker-transcriber/internal/domain"
)

// fakeMirror records durable writes and can be told to fail.
type fakeMirror struct {
	mu      sync.Mutex
	created []domain.Job
	updated []domain.Job
	fail    error
}

func (f *fakeMirror) CreateRecord(ctx context.Context, job domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, job)
	return f.fail
}

func (f *fakeMirror) UpdateRecord(ctx context.Context, job domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, job)
	return f.fail
}

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	mirror := &fakeMirror{}
	m := NewManager(WithMirror(mirror))

	job, err := m.Create("job-1", domain.AudioAsset{Filename: "call.wav"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.Progress != 0 {
		t.Fatalf("created job = %+v", job)
	}

	for _, progress := range []int{0, 20, 40, 70, 90} {
		if err := m.Transition("job-1", domain.JobStatusProcessing, progress, "working"); err != nil {
			t.Fatalf("transition to %d: %v", progress, err)
		}
	}

	result := domain.TranscriptionResult{FullText: "hello", SpeakerText: "hello"}
	if err := m.AttachResult("job-1", result, "Transcription completed"); err != nil {
		t.Fatalf("attach result: %v", err)
	}

	current, err := m.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != domain.JobStatusCompleted || current.Progress != 100 {
		t.Fatalf("current = %+v, want completed/100", current)
	}
	if current.Result == nil || current.Result.FullText != "hello" {
		t.Fatalf("result = %+v", current.Result)
	}

	if len(mirror.created) != 1 || len(mirror.updated) != 1 {
		t.Fatalf("mirror writes = %d created, %d updated; want 1, 1", len(mirror.created), len(mirror.updated))
	}
	if mirror.updated[0].Status != domain.JobStatusCompleted {
		t.Fatalf("mirrored status = %s, want completed", mirror.updated[0].Status)
	}
}

// TestManagerRejectsDuplicateID verifies ids are unique.
func TestManagerRejectsDuplicateID(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("job-1", domain.AudioAsset{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create("job-1", domain.AudioAsset{}); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("second create error = %v, want ErrDuplicateID", err)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("job-1", domain.AudioAsset{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.AttachResult("job-1", domain.TranscriptionResult{}, "done"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending -> completed error = %v, want ErrInvalidTransition", err)
	}
	if err := m.Transition("job-1", domain.JobStatusCompleted, 100, "done"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("plain transition to completed error = %v, want ErrInvalidTransition", err)
	}

	if err := m.Transition("job-1", domain.JobStatusProcessing, 40, "transcribing"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := m.Transition("job-1", domain.JobStatusPending, 40, "back"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("backward status error = %v, want ErrInvalidTransition", err)
	}
	if err := m.Transition("job-1", domain.JobStatusProcessing, 20, "back"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("backward progress error = %v, want ErrInvalidTransition", err)
	}
	if err := m.Transition("job-1", domain.JobStatusProcessing, 101, "over"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("progress 101 error = %v, want ErrValidation", err)
	}
}

// TestManagerTerminalIsFinal verifies nothing moves a job after it fails.
func TestManagerTerminalIsFinal(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("job-1", domain.AudioAsset{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.AttachError("job-1", "normalize: ffmpeg failed"); err != nil {
		t.Fatalf("attach error: %v", err)
	}

	if err := m.Transition("job-1", domain.JobStatusProcessing, 50, "again"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("transition after failure error = %v, want ErrInvalidTransition", err)
	}
	if err := m.AttachError("job-1", "twice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second attach error = %v, want ErrInvalidTransition", err)
	}

	job, _ := m.Get("job-1")
	if job.Status != domain.JobStatusFailed || job.Error != "normalize: ffmpeg failed" || job.Result != nil {
		t.Fatalf("job = %+v", job)
	}
}

// TestManagerUnknownJob verifies NotFound for every operation.
func TestManagerUnknownJob(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get error = %v, want ErrNotFound", err)
	}
	if err := m.Transition("missing", domain.JobStatusProcessing, 0, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("transition error = %v, want ErrNotFound", err)
	}
	if err := m.AttachError("missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("attach error = %v, want ErrNotFound", err)
	}
}

// TestManagerMirrorFailureIsNotFatal verifies durable write errors are swallowed.
func TestManagerMirrorFailureIsNotFatal(t *testing.T) {
	mirror := &fakeMirror{fail: errors.New("db down")}
	m := NewManager(WithMirror(mirror))

	if _, err := m.Create("job-1", domain.AudioAsset{}); err != nil {
		t.Fatalf("create error = %v, want nil", err)
	}
	if err := m.AttachError("job-1", "boom"); err != nil {
		t.Fatalf("attach error = %v, want nil", err)
	}
	if len(mirror.created) != 1 || len(mirror.updated) != 1 {
		t.Fatalf("mirror calls = %d/%d, want 1/1", len(mirror.created), len(mirror.updated))
	}
}

// TestManagerPublishesEvents verifies each state change reaches the bus.
func TestManagerPublishesEvents(t *testing.T) {
	bus := NewEventBus(10)
	m := NewManager(WithEvents(bus))

	_, _ = m.Create("job-1", domain.AudioAsset{})
	_ = m.Transition("job-1", domain.JobStatusProcessing, 20, "Normalizing audio...")
	_ = m.AttachError("job-1", "boom")

	events := bus.ForJob("job-1", 0)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[1].Progress != 20 || events[1].Message != "Normalizing audio..." {
		t.Fatalf("status event = %+v", events[1])
	}
	if !events[2].Terminal() || events[2].Error != "boom" {
		t.Fatalf("terminal event = %+v", events[2])
	}
}

// TestManagerRemove verifies only finished jobs can be forgotten.
func TestManagerRemove(t *testing.T) {
	m := NewManager()
	if _, err := m.Create("job-1", domain.AudioAsset{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Remove("job-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("remove pending error = %v, want ErrInvalidTransition", err)
	}
	if err := m.AttachError("job-1", "boom"); err != nil {
		t.Fatalf("attach error: %v", err)
	}
	if err := m.Remove("job-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.Get("job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after remove error = %v, want ErrNotFound", err)
	}
	if err := m.Remove("job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove error = %v, want ErrNotFound", err)
	}
}

// TestManagerConcurrentReaders verifies readers never observe torn updates.
func TestManagerConcurrentReaders(t *testing.T) {
	m := NewManager()
	const count = 20
	for i := 0; i < count; i++ {
		if _, err := m.Create(fmt.Sprintf("job-%d", i), domain.AudioAsset{}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("job-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 0; p <= 90; p += 10 {
				_ = m.Transition(id, domain.JobStatusProcessing, p, fmt.Sprintf("step %d", p))
			}
			_ = m.AttachResult(id, domain.TranscriptionResult{FullText: id}, "done")
		}()
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				job, err := m.Get(id)
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				if job.Status == domain.JobStatusCompleted && (job.Result == nil || job.Progress != 100) {
					t.Errorf("torn completed snapshot: %+v", job)
					return
				}
				if job.Status != domain.JobStatusCompleted && job.Result != nil {
					t.Errorf("result without completion: %+v", job)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := len(m.List()); got != count {
		t.Fatalf("list = %d, want %d", got, count)
	}
}
