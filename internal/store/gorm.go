package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"speaker-transcriber/internal/domain"
)

// Transcription is the durable row for one job.
type Transcription struct {
	ID           uint                               `gorm:"primarykey" json:"id"`
	UUID         string                             `gorm:"size:64;uniqueIndex;not null" json:"uuid"`
	Filename     string                             `json:"filename"`
	AudioPath    string                             `json:"audio_path"`
	Duration     *float64                           `json:"duration"`
	Size         int64                              `json:"size"`
	Format       string                             `gorm:"size:32" json:"format"`
	Status       string                             `gorm:"size:32;index;default:pending" json:"status"`
	Progress     int                                `json:"progress"`
	Message      string                             `gorm:"type:text" json:"message"`
	Error        string                             `gorm:"type:text" json:"error"`
	Text         string                             `gorm:"type:text" json:"text"`
	SpeakersText string                             `gorm:"type:text" json:"speakers_text"`
	Speakers     map[string][]domain.SpeakerSegment `gorm:"type:text;serializer:json" json:"speakers"`
	Segments     []domain.AlignedSegment            `gorm:"type:text;serializer:json" json:"segments"`
	Language     string                             `gorm:"size:50" json:"language"`
	HasResult    bool                               `json:"has_result"`
	IsEdited     bool                               `gorm:"default:false" json:"is_edited"`
	CreatedAt    time.Time                          `json:"created_at"`
	UpdatedAt    time.Time                          `json:"updated_at"`
}

// TableName specifies the table name for Transcription.
func (Transcription) TableName() string {
	return "transcriptions"
}

// GormStore keeps job records in a SQL database.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to sqlite or postgres and migrates the schema.
func OpenGorm(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case domain.StoreDriverSQLite:
		dialector = sqlite.Open(dsn)
	case domain.StoreDriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q: %w", driver, domain.ErrValidation)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", driver, domain.ErrPersistence, err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open connection and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Transcription{}); err != nil {
		return nil, fmt.Errorf("migrate: %w: %w", domain.ErrPersistence, err)
	}
	return &GormStore{db: db}, nil
}

// CreateRecord inserts the initial row of a job.
func (s *GormStore) CreateRecord(ctx context.Context, job domain.Job) error {
	rec := toRecord(job)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return persistenceError("create record", job.ID, err)
	}
	return nil
}

// UpdateRecord replaces the row of a job, inserting it when missing.
func (s *GormStore) UpdateRecord(ctx context.Context, job domain.Job) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findRecord(tx, job.ID)
		rec := toRecord(job)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return tx.Save(&rec).Error
	})
	if err != nil {
		return persistenceError("update record", job.ID, err)
	}
	return nil
}

// SaveResult stores a finished result on the job row, creating it if missing.
func (s *GormStore) SaveResult(ctx context.Context, jobID string, result domain.TranscriptionResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findRecord(tx, jobID)
		if errors.Is(err, domain.ErrNotFound) {
			rec = Transcription{UUID: jobID}
		} else if err != nil {
			return err
		}
		applyResult(&rec, result)
		rec.Status = string(domain.JobStatusCompleted)
		rec.Progress = 100
		return tx.Save(&rec).Error
	})
	if err != nil {
		return persistenceError("save result", jobID, err)
	}
	return nil
}

// GetRecord loads the row of a job.
func (s *GormStore) GetRecord(ctx context.Context, jobID string) (domain.Job, error) {
	rec, err := findRecord(s.db.WithContext(ctx), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Job{}, err
		}
		return domain.Job{}, persistenceError("get record", jobID, err)
	}
	return toJob(rec), nil
}

// ListRecords returns one page of rows, newest first, optionally filtered by status.
func (s *GormStore) ListRecords(ctx context.Context, status domain.JobStatus, page, perPage int) (domain.RecordPage, error) {
	page, perPage = domain.NormalizePaging(page, perPage)

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&Transcription{})
		if status != "" {
			q = q.Where("status = ?", string(status))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return domain.RecordPage{}, persistenceError("count records", string(status), err)
	}

	var rows []Transcription
	err := query().Order("created_at desc").Order("id desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error
	if err != nil {
		return domain.RecordPage{}, persistenceError("list records", string(status), err)
	}
	return domain.NewRecordPage(lo.Map(rows, func(rec Transcription, _ int) domain.Job {
		return toJob(rec)
	}), page, perPage, total), nil
}

// UpdateText replaces the stored text of a completed row and marks it edited.
func (s *GormStore) UpdateText(ctx context.Context, jobID string, edit domain.TextEdit) (domain.Job, error) {
	var updated domain.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findRecord(tx, jobID)
		if err != nil {
			return err
		}
		job := toJob(rec)
		if err := checkEdit(job, edit); err != nil {
			return err
		}
		if edit.Text != nil {
			rec.Text = *edit.Text
		}
		if edit.SpeakerText != nil {
			rec.SpeakersText = *edit.SpeakerText
		}
		rec.IsEdited = true
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		updated = toJob(rec)
		return nil
	})
	if err != nil {
		return domain.Job{}, classify("update text", jobID, err)
	}
	return updated, nil
}

// DeleteRecord removes a row and returns what it held.
func (s *GormStore) DeleteRecord(ctx context.Context, jobID string) (domain.Job, error) {
	var deleted domain.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findRecord(tx, jobID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&rec).Error; err != nil {
			return err
		}
		deleted = toJob(rec)
		return nil
	})
	if err != nil {
		return domain.Job{}, classify("delete record", jobID, err)
	}
	return deleted, nil
}

// DeleteAsset removes an uploaded file.
func (s *GormStore) DeleteAsset(ctx context.Context, path string) error {
	return removeAsset(path)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify keeps domain errors as they are and wraps the rest as persistence failures.
func classify(op, jobID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotReady) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return persistenceError(op, jobID, err)
}

func findRecord(db *gorm.DB, jobID string) (Transcription, error) {
	var rec Transcription
	err := db.Where("uuid = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Transcription{}, fmt.Errorf("record %s: %w", jobID, domain.ErrNotFound)
	}
	return rec, err
}

func toRecord(job domain.Job) Transcription {
	rec := Transcription{
		UUID:      job.ID,
		Filename:  job.Asset.Filename,
		AudioPath: job.Asset.Path,
		Duration:  job.Asset.Duration,
		Size:      job.Asset.Size,
		Format:    job.Asset.Format,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
		IsEdited:  job.Edited,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Result != nil {
		applyResult(&rec, *job.Result)
	}
	return rec
}

func applyResult(rec *Transcription, result domain.TranscriptionResult) {
	rec.Text = result.FullText
	rec.SpeakersText = result.SpeakerText
	rec.Speakers = result.SpeakerSegments
	rec.Segments = result.Segments
	rec.Language = result.Language
	rec.HasResult = true
}

func toJob(rec Transcription) domain.Job {
	job := domain.Job{
		ID:       rec.UUID,
		Status:   domain.JobStatus(rec.Status),
		Progress: rec.Progress,
		Message:  rec.Message,
		Error:    rec.Error,
		Edited:   rec.IsEdited,
		Asset: domain.AudioAsset{
			Path:     rec.AudioPath,
			Filename: rec.Filename,
			Duration: rec.Duration,
			Size:     rec.Size,
			Format:   rec.Format,
		},
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.HasResult {
		speakers := rec.Speakers
		if speakers == nil {
			speakers = map[string][]domain.SpeakerSegment{}
		}
		job.Result = &domain.TranscriptionResult{
			FullText:        rec.Text,
			SpeakerText:     rec.SpeakersText,
			SpeakerSegments: speakers,
			Segments:        rec.Segments,
			Language:        rec.Language,
		}
	}
	return job
}
