package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"speaker-transcriber/internal/domain"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	jsonStore, err := NewJSONStore(filepath.Join(t.TempDir(), "records"))
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	sqlStore, err := OpenGorm(domain.StoreDriverSQLite, filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("OpenGorm() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Store{"json": jsonStore, "sqlite": sqlStore}
}

func sampleJob() domain.Job {
	duration := 12.5
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.Job{
		ID:        "7f1c2d8e-0000-4000-8000-000000000001",
		Status:    domain.JobStatusPending,
		Message:   "Queued",
		Asset:     domain.AudioAsset{Path: "/uploads/x_call.wav", Filename: "call.wav", Duration: &duration, Size: 2048, Format: "wav"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleResult() domain.TranscriptionResult {
	return domain.TranscriptionResult{
		FullText:    "Hello. Hi.",
		SpeakerText: "=== SPEAKER_00 ===\n[0.00-1.00] Hello.",
		SpeakerSegments: map[string][]domain.SpeakerSegment{
			"SPEAKER_00": {{Start: 0, End: 1, Text: "Hello."}},
		},
		Segments: []domain.AlignedSegment{{Start: 0, End: 1, Speaker: "SPEAKER_00", Text: "Hello."}},
		Language: "en",
	}
}

// TestStoreRecordLifecycle verifies create, update, and result persistence for each backend.
func TestStoreRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			job := sampleJob()
			if err := s.CreateRecord(ctx, job); err != nil {
				t.Fatalf("CreateRecord() error = %v", err)
			}

			got, err := s.GetRecord(ctx, job.ID)
			if err != nil {
				t.Fatalf("GetRecord() error = %v", err)
			}
			if got.Status != domain.JobStatusPending || got.Asset.Filename != "call.wav" || got.Result != nil {
				t.Fatalf("record = %+v", got)
			}
			if got.Asset.Duration == nil || *got.Asset.Duration != 12.5 {
				t.Fatalf("duration = %v, want 12.5", got.Asset.Duration)
			}

			if err := s.SaveResult(ctx, job.ID, sampleResult()); err != nil {
				t.Fatalf("SaveResult() error = %v", err)
			}
			job.Status = domain.JobStatusCompleted
			job.Progress = 100
			job.Message = "Transcription completed"
			result := sampleResult()
			job.Result = &result
			if err := s.UpdateRecord(ctx, job); err != nil {
				t.Fatalf("UpdateRecord() error = %v", err)
			}

			got, err = s.GetRecord(ctx, job.ID)
			if err != nil {
				t.Fatalf("GetRecord() error = %v", err)
			}
			if got.Status != domain.JobStatusCompleted || got.Progress != 100 || got.Message != "Transcription completed" {
				t.Fatalf("record = %+v", got)
			}
			if got.Result == nil || got.Result.FullText != "Hello. Hi." || got.Result.Language != "en" {
				t.Fatalf("result = %+v", got.Result)
			}
			if segs := got.Result.SpeakerSegments["SPEAKER_00"]; len(segs) != 1 || segs[0].Text != "Hello." {
				t.Fatalf("speaker segments = %+v", got.Result.SpeakerSegments)
			}
			if len(got.Result.Segments) != 1 || got.Result.Segments[0].Speaker != "SPEAKER_00" {
				t.Fatalf("segments = %+v", got.Result.Segments)
			}
		})
	}
}

// TestStoreFailedRecord verifies a failed job keeps its error and no result.
func TestStoreFailedRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			job := sampleJob()
			job.Status = domain.JobStatusFailed
			job.Error = "transcribe: both models failed"
			if err := s.UpdateRecord(ctx, job); err != nil {
				t.Fatalf("UpdateRecord() error = %v", err)
			}

			got, err := s.GetRecord(ctx, job.ID)
			if err != nil {
				t.Fatalf("GetRecord() error = %v", err)
			}
			if got.Status != domain.JobStatusFailed || got.Error != job.Error || got.Result != nil {
				t.Fatalf("record = %+v", got)
			}
		})
	}
}

// TestStoreUnknownRecord verifies NotFound for missing jobs.
func TestStoreUnknownRecord(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetRecord(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("GetRecord() error = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestStoreDeleteAsset verifies uploads are removed and missing files are ignored.
func TestStoreDeleteAsset(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "upload.wav")
			if err := os.WriteFile(path, []byte("wav"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := s.DeleteAsset(context.Background(), path); err != nil {
				t.Fatalf("DeleteAsset() error = %v", err)
			}
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("asset still present: %v", err)
			}
			if err := s.DeleteAsset(context.Background(), path); err != nil {
				t.Fatalf("second DeleteAsset() error = %v", err)
			}
		})
	}
}

// TestStoreListRecordsPagesNewestFirst verifies ordering, status filtering, and page math.
func TestStoreListRecordsPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			for i, id := range []string{"job-a", "job-b", "job-c"} {
				job := sampleJob()
				job.ID = id
				job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				job.UpdatedAt = job.CreatedAt
				if id == "job-b" {
					job.Status = domain.JobStatusFailed
					job.Error = "boom"
				}
				if err := s.CreateRecord(ctx, job); err != nil {
					t.Fatalf("CreateRecord(%s) error = %v", id, err)
				}
			}

			page, err := s.ListRecords(ctx, "", 1, 2)
			if err != nil {
				t.Fatalf("ListRecords() error = %v", err)
			}
			if page.Total != 3 || page.Pages != 2 || !page.HasNext || page.HasPrev {
				t.Fatalf("page = %+v", page)
			}
			if len(page.Records) != 2 || page.Records[0].ID != "job-c" || page.Records[1].ID != "job-b" {
				t.Fatalf("records = %+v", page.Records)
			}

			page, err = s.ListRecords(ctx, "", 2, 2)
			if err != nil {
				t.Fatalf("ListRecords(page 2) error = %v", err)
			}
			if len(page.Records) != 1 || page.Records[0].ID != "job-a" || page.HasNext || !page.HasPrev {
				t.Fatalf("page 2 = %+v", page)
			}

			page, err = s.ListRecords(ctx, domain.JobStatusFailed, 0, 0)
			if err != nil {
				t.Fatalf("ListRecords(failed) error = %v", err)
			}
			if page.Total != 1 || page.Page != 1 || page.PerPage != domain.DefaultPerPage || page.Records[0].ID != "job-b" {
				t.Fatalf("failed page = %+v", page)
			}

			page, err = s.ListRecords(ctx, "", 5, 2)
			if err != nil {
				t.Fatalf("ListRecords(past end) error = %v", err)
			}
			if len(page.Records) != 0 || page.Total != 3 {
				t.Fatalf("past end page = %+v", page)
			}
		})
	}
}

// TestStoreUpdateText verifies edits apply to completed records only and mark them edited.
func TestStoreUpdateText(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			job := sampleJob()
			if err := s.CreateRecord(ctx, job); err != nil {
				t.Fatalf("CreateRecord() error = %v", err)
			}

			text := "Hello there."
			if _, err := s.UpdateText(ctx, job.ID, domain.TextEdit{Text: &text}); !errors.Is(err, domain.ErrNotReady) {
				t.Fatalf("UpdateText(pending) error = %v, want ErrNotReady", err)
			}
			if _, err := s.UpdateText(ctx, "missing", domain.TextEdit{Text: &text}); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("UpdateText(missing) error = %v, want ErrNotFound", err)
			}

			if err := s.SaveResult(ctx, job.ID, sampleResult()); err != nil {
				t.Fatalf("SaveResult() error = %v", err)
			}
			if _, err := s.UpdateText(ctx, job.ID, domain.TextEdit{}); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("UpdateText(empty) error = %v, want ErrValidation", err)
			}

			updated, err := s.UpdateText(ctx, job.ID, domain.TextEdit{Text: &text})
			if err != nil {
				t.Fatalf("UpdateText() error = %v", err)
			}
			if !updated.Edited || updated.Result == nil || updated.Result.FullText != text {
				t.Fatalf("updated = %+v", updated)
			}

			got, err := s.GetRecord(ctx, job.ID)
			if err != nil {
				t.Fatalf("GetRecord() error = %v", err)
			}
			if !got.Edited || got.Result.FullText != text || got.Result.SpeakerText != sampleResult().SpeakerText {
				t.Fatalf("record = %+v", got)
			}
		})
	}
}

// TestStoreDeleteRecord verifies a deleted record is gone and its asset path is returned.
func TestStoreDeleteRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			job := sampleJob()
			if err := s.CreateRecord(ctx, job); err != nil {
				t.Fatalf("CreateRecord() error = %v", err)
			}

			deleted, err := s.DeleteRecord(ctx, job.ID)
			if err != nil {
				t.Fatalf("DeleteRecord() error = %v", err)
			}
			if deleted.ID != job.ID || deleted.Asset.Path != job.Asset.Path {
				t.Fatalf("deleted = %+v", deleted)
			}
			if _, err := s.GetRecord(ctx, job.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("GetRecord() after delete error = %v, want ErrNotFound", err)
			}
			if _, err := s.DeleteRecord(ctx, job.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("second DeleteRecord() error = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestJSONStoreRejectsPathIDs verifies ids cannot escape the records directory.
func TestJSONStoreRejectsPathIDs(t *testing.T) {
	s, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	job := sampleJob()
	job.ID = "../escape"
	if err := s.CreateRecord(context.Background(), job); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateRecord() error = %v, want ErrValidation", err)
	}
}

// TestOpenSelectsDriver verifies driver dispatch.
func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open("", "", t.TempDir())
	if err != nil {
		t.Fatalf("Open(json) error = %v", err)
	}
	if _, ok := s.(*JSONStore); !ok {
		t.Fatalf("store type = %T, want *JSONStore", s)
	}
	if _, err := Open("mongo", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Open(mongo) error = %v, want ErrValidation", err)
	}
}
