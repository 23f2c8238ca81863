package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"speaker-transcriber/internal/domain"
)

// Transcriptions pages through the durable records, newest first.
func (a *App) Transcriptions(ctx context.Context, status domain.JobStatus, page, perPage int) (domain.RecordPage, error) {
	return a.Records.ListRecords(ctx, status, page, perPage)
}

// Transcription returns one durable record. A job still running reports its live state.
func (a *App) Transcription(ctx context.Context, jobID string) (domain.Job, error) {
	live, liveErr := a.Manager.Get(jobID)
	if liveErr == nil && !live.Status.IsTerminal() {
		return live, nil
	}

	record, err := a.Records.GetRecord(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) && liveErr == nil {
		return live, nil
	}
	return record, err
}

// EditTranscription replaces the stored text of a completed transcription.
func (a *App) EditTranscription(ctx context.Context, jobID string, edit domain.TextEdit) (domain.Job, error) {
	job, err := a.Records.UpdateText(ctx, jobID, edit)
	if err != nil {
		return domain.Job{}, err
	}
	a.logger.Infof("job %s: transcription text edited", jobID)
	return job, nil
}

// DeleteTranscription removes a finished transcription and its uploaded audio.
func (a *App) DeleteTranscription(ctx context.Context, jobID string) error {
	if live, err := a.Manager.Get(jobID); err == nil && !live.Status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", jobID, live.Status, domain.ErrNotReady)
	}

	job, err := a.Records.DeleteRecord(ctx, jobID)
	if err != nil {
		return err
	}
	if err := a.Manager.Remove(jobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.logger.Warnf("job %s: forget live state: %v", jobID, err)
	}
	if err := a.Records.DeleteAsset(ctx, job.Asset.Path); err != nil {
		a.logger.Warnf("job %s: delete upload %s: %v", jobID, job.Asset.Path, err)
	}
	a.logger.Infof("job %s: deleted", jobID)
	return nil
}
