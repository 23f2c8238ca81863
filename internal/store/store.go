// Package store keeps the durable record of every job and owns uploaded assets.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"speaker-transcriber/internal/domain"
)

// Store is the durable mirror of job state and results.
type Store interface {
	CreateRecord(ctx context.Context, job domain.Job) error
	UpdateRecord(ctx context.Context, job domain.Job) error
	SaveResult(ctx context.Context, jobID string, result domain.TranscriptionResult) error
	GetRecord(ctx context.Context, jobID string) (domain.Job, error)
	ListRecords(ctx context.Context, status domain.JobStatus, page, perPage int) (domain.RecordPage, error)
	UpdateText(ctx context.Context, jobID string, edit domain.TextEdit) (domain.Job, error)
	DeleteRecord(ctx context.Context, jobID string) (domain.Job, error)
	DeleteAsset(ctx context.Context, path string) error
	Close() error
}

// Open selects a Store implementation by driver name.
func Open(driver, dsn, recordsDir string) (Store, error) {
	switch driver {
	case "", domain.StoreDriverJSON:
		return NewJSONStore(recordsDir)
	case domain.StoreDriverSQLite, domain.StoreDriverPostgres:
		return OpenGorm(driver, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q: %w", driver, domain.ErrValidation)
	}
}

// removeAsset deletes an uploaded file. A file that is already gone is not an error.
func removeAsset(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset %s: %w: %w", path, domain.ErrPersistence, err)
	}
	return nil
}

// checkEdit rejects edits that change nothing and records without a result.
func checkEdit(job domain.Job, edit domain.TextEdit) error {
	if edit.Empty() {
		return fmt.Errorf("edit of %s changes no text: %w", job.ID, domain.ErrValidation)
	}
	if job.Result == nil {
		return fmt.Errorf("job %s is %s: %w", job.ID, job.Status, domain.ErrNotReady)
	}
	return nil
}

func persistenceError(op, jobID string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, jobID, domain.ErrPersistence, err)
}
