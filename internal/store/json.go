package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
)

// JSONStore keeps one JSON file per job in a directory.
type JSONStore struct {
	mu  sync.Mutex
	dir string
}

// NewJSONStore creates the records directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("records directory is required: %w", domain.ErrValidation)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records dir: %w: %w", domain.ErrPersistence, err)
	}
	return &JSONStore{dir: dir}, nil
}

// CreateRecord writes the initial record of a job.
func (s *JSONStore) CreateRecord(ctx context.Context, job domain.Job) error {
	return s.UpdateRecord(ctx, job)
}

// UpdateRecord replaces the stored record of a job.
func (s *JSONStore) UpdateRecord(ctx context.Context, job domain.Job) error {
	path, err := s.path(job.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(path, job); err != nil {
		return persistenceError("update record", job.ID, err)
	}
	return nil
}

// SaveResult stores a finished result on the job record, creating it if missing.
func (s *JSONStore) SaveResult(ctx context.Context, jobID string, result domain.TranscriptionResult) error {
	path, err := s.path(jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := readJob(path)
	if errors.Is(err, domain.ErrNotFound) {
		job = domain.Job{ID: jobID}
	} else if err != nil {
		return persistenceError("save result", jobID, err)
	}

	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Result = &result
	if err := writeJSON(path, job); err != nil {
		return persistenceError("save result", jobID, err)
	}
	return nil
}

// GetRecord reads the stored record of a job.
func (s *JSONStore) GetRecord(ctx context.Context, jobID string) (domain.Job, error) {
	path, err := s.path(jobID)
	if err != nil {
		return domain.Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := readJob(path)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Job{}, persistenceError("get record", jobID, err)
	}
	return job, err
}

// ListRecords returns one page of records, newest first, optionally filtered by status.
func (s *JSONStore) ListRecords(ctx context.Context, status domain.JobStatus, page, perPage int) (domain.RecordPage, error) {
	page, perPage = domain.NormalizePaging(page, perPage)

	s.mu.Lock()
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		s.mu.Unlock()
		return domain.RecordPage{}, persistenceError("list records", s.dir, err)
	}
	records := make([]domain.Job, 0, len(paths))
	for _, path := range paths {
		job, err := readJob(path)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.mu.Unlock()
			return domain.RecordPage{}, persistenceError("list records", filepath.Base(path), err)
		}
		records = append(records, job)
	}
	s.mu.Unlock()

	if status != "" {
		records = lo.Filter(records, func(job domain.Job, _ int) bool { return job.Status == status })
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := int64(len(records))
	start := min((page-1)*perPage, len(records))
	end := min(start+perPage, len(records))
	return domain.NewRecordPage(records[start:end], page, perPage, total), nil
}

// UpdateText replaces the stored text of a completed record and marks it edited.
func (s *JSONStore) UpdateText(ctx context.Context, jobID string, edit domain.TextEdit) (domain.Job, error) {
	path, err := s.path(jobID)
	if err != nil {
		return domain.Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := readJob(path)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Job{}, err
	} else if err != nil {
		return domain.Job{}, persistenceError("update text", jobID, err)
	}
	if err := checkEdit(job, edit); err != nil {
		return domain.Job{}, err
	}

	result := *job.Result
	edit.Apply(&result)
	job.Result = &result
	job.Edited = true
	if err := writeJSON(path, job); err != nil {
		return domain.Job{}, persistenceError("update text", jobID, err)
	}
	return job, nil
}

// DeleteRecord removes a record and returns what it held.
func (s *JSONStore) DeleteRecord(ctx context.Context, jobID string) (domain.Job, error) {
	path, err := s.path(jobID)
	if err != nil {
		return domain.Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := readJob(path)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Job{}, err
	} else if err != nil {
		return domain.Job{}, persistenceError("delete record", jobID, err)
	}
	if err := os.Remove(path); err != nil {
		return domain.Job{}, persistenceError("delete record", jobID, err)
	}
	return job, nil
}

// DeleteAsset removes an uploaded file.
func (s *JSONStore) DeleteAsset(ctx context.Context, path string) error {
	return removeAsset(path)
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) path(jobID string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id %q: %w", jobID, domain.ErrValidation)
	}
	return filepath.Join(s.dir, jobID+".json"), nil
}

func readJob(path string) (domain.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Job{}, fmt.Errorf("record %s: %w", filepath.Base(path), domain.ErrNotFound)
		}
		return domain.Job{}, err
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.Job{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return job, nil
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
