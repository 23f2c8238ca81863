// Package transcribe runs the staged transcription pipeline for one job.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/align"
	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/media"
	"speaker-transcriber/internal/retry"
)

// Transcriber converts audio into timed text with the named model.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model string) (domain.Transcript, error)
}

// Diarizer splits audio into speaker turns.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]domain.SpeakerTurn, error)
}

// Fetcher makes a job source available as a local file inside destDir.
type Fetcher interface {
	Fetch(ctx context.Context, source, destDir string) (string, error)
}

// Normalizer converts audio into the engines' input format inside outDir.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outDir string, duration *float64) (string, error)
}

// ResultStore persists finished results and owns uploaded assets.
type ResultStore interface {
	SaveResult(ctx context.Context, jobID string, result domain.TranscriptionResult) error
	DeleteAsset(ctx context.Context, path string) error
}

// JobUpdater receives progress and the terminal outcome of a job.
type JobUpdater interface {
	Transition(jobID string, status domain.JobStatus, progress int, message string) error
	AttachResult(jobID string, result domain.TranscriptionResult, message string) error
	AttachError(jobID string, errMsg string) error
	Log(jobID string, entry media.CommandLog)
}

// Task is one unit of work for the executor.
type Task struct {
	JobID  string
	Source string
	Asset  domain.AudioAsset
}

// Models names the primary and fallback speech-to-text models.
type Models struct {
	Primary  string
	Baseline string
}

// Diarization is the outcome of the diarize stage: either turns or a reason
// the job continues without speaker attribution.
type Diarization struct {
	Turns  []domain.SpeakerTurn
	Reason string
}

// Diarized wraps a successful turn list.
func Diarized(turns []domain.SpeakerTurn) Diarization {
	return Diarization{Turns: turns}
}

// Degraded records why speaker attribution was skipped.
func Degraded(reason string) Diarization {
	return Diarization{Reason: reason}
}

// OK reports whether turns are available for alignment.
func (d Diarization) OK() bool {
	return d.Reason == "" && len(d.Turns) > 0
}

// Deps groups the executor's collaborators.
type Deps struct {
	Fetcher     Fetcher
	Normalizer  Normalizer
	Transcriber Transcriber
	Diarizer    Diarizer
	Store       ResultStore
	Jobs        JobUpdater
	Invoker     *retry.Invoker
	Logger      *log.Logger
}

// Executor runs fetch, normalize, transcribe, diarize, align, and persist for one job.
type Executor struct {
	deps      Deps
	models    Models
	tempDir   string
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
}

// NewExecutor builds an executor writing scratch files under tempDir.
func NewExecutor(deps Deps, models Models, tempDir string) *Executor {
	if deps.Invoker == nil {
		deps.Invoker = retry.NewInvoker(retry.Policy{})
	}
	if deps.Logger == nil {
		deps.Logger = log.New("transcribe")
		deps.Logger.SetLevel(log.OFF)
	}
	if strings.TrimSpace(models.Baseline) == "" {
		models.Baseline = models.Primary
	}

	return &Executor{
		deps:      deps,
		models:    models,
		tempDir:   tempDir,
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
	}
}

// Run executes every stage in order and records the outcome on the job.
// The returned error is informational; the job already carries it.
func (e *Executor) Run(ctx context.Context, task Task) error {
	err := e.run(ctx, task)
	if err == nil {
		return nil
	}

	e.deps.Logger.Errorf("job %s: %v", task.JobID, err)
	if attachErr := e.deps.Jobs.AttachError(task.JobID, err.Error()); attachErr != nil {
		e.deps.Logger.Errorf("job %s: record failure: %v", task.JobID, attachErr)
	}
	return err
}

func (e *Executor) run(ctx context.Context, task Task) error {
	if e.tempDir != "" {
		if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
			return &PipelineError{Stage: StageFetch, Message: "cannot create temp directory", Err: err}
		}
	}
	workDir, err := e.mkdirTemp(e.tempDir, "job-"+task.JobID+"-*")
	if err != nil {
		return &PipelineError{
			Stage:   StageFetch,
			Message: "failed to create temporary workspace",
			Err:     fmt.Errorf("%w: %w", domain.ErrIO, err),
		}
	}
	defer e.cleanup(task.JobID, workDir)

	e.progress(task.JobID, 0, "Fetching audio...")
	source := task.Source
	if source == "" {
		source = task.Asset.Path
	}
	local, err := e.deps.Fetcher.Fetch(ctx, source, workDir)
	if err != nil {
		return stageError(StageFetch, "cannot fetch audio", err)
	}

	e.progress(task.JobID, 20, "Normalizing audio...")
	normalized, err := e.deps.Normalizer.Normalize(ctx, local, workDir, task.Asset.Duration)
	if err != nil {
		e.logCommand(task.JobID, err)
		return stageError(StageNormalize, "audio normalization failed", err)
	}

	e.progress(task.JobID, 40, "Transcribing audio...")
	transcript, err := e.transcribe(ctx, task.JobID, normalized)
	if err != nil {
		return err
	}

	e.progress(task.JobID, 70, "Identifying speakers...")
	diarization := e.diarize(ctx, task.JobID, normalized)

	e.progress(task.JobID, 90, "Aligning speakers...")
	result := BuildResult(transcript, diarization)

	e.progress(task.JobID, 90, "Saving results...")
	if err := e.deps.Store.SaveResult(ctx, task.JobID, result); err != nil {
		return &PipelineError{
			Stage:   StagePersist,
			Message: fmt.Sprintf("failed to save results: %v", err),
			Err:     err,
		}
	}
	if task.Asset.Path != "" {
		if err := e.deps.Store.DeleteAsset(ctx, task.Asset.Path); err != nil {
			e.deps.Logger.Warnf("job %s: delete upload %s: %v", task.JobID, task.Asset.Path, err)
		}
	}

	if err := e.deps.Jobs.AttachResult(task.JobID, result, "Transcription completed"); err != nil {
		e.deps.Logger.Errorf("job %s: record result: %v", task.JobID, err)
	}
	return nil
}

// transcribe runs the primary model and falls back to the baseline model once.
func (e *Executor) transcribe(ctx context.Context, jobID, audioPath string) (domain.Transcript, error) {
	primary, primaryErr := e.transcribeWith(ctx, jobID, audioPath, e.models.Primary)
	if primaryErr == nil {
		return primary, nil
	}
	e.deps.Logger.Warnf("job %s: stage %s: model %s failed, falling back to %s: %v",
		jobID, StageTranscribe, e.models.Primary, e.models.Baseline, primaryErr)

	baseline, baselineErr := e.transcribeWith(ctx, jobID, audioPath, e.models.Baseline)
	if baselineErr == nil {
		return baseline, nil
	}

	return domain.Transcript{}, &PipelineError{
		Stage: StageTranscribe,
		Message: fmt.Sprintf("primary model %s failed (%v); baseline model %s failed (%v)",
			e.models.Primary, primaryErr, e.models.Baseline, baselineErr),
		Err: errors.Join(primaryErr, baselineErr),
	}
}

func (e *Executor) transcribeWith(ctx context.Context, jobID, audioPath, model string) (domain.Transcript, error) {
	out, err := retry.Do(ctx, e.deps.Invoker, "transcribe:"+model, func(ctx context.Context) (domain.Transcript, error) {
		return e.deps.Transcriber.Transcribe(ctx, audioPath, model)
	})
	if err != nil {
		e.logCommand(jobID, err)
	}
	return out, err
}

// diarize never fails the job. Any error or an empty result degrades it.
func (e *Executor) diarize(ctx context.Context, jobID, audioPath string) Diarization {
	if e.deps.Diarizer == nil {
		return Degraded("diarization disabled")
	}

	turns, err := retry.Do(ctx, e.deps.Invoker, "diarize", func(ctx context.Context) ([]domain.SpeakerTurn, error) {
		return e.deps.Diarizer.Diarize(ctx, audioPath)
	})
	if err != nil {
		e.deps.Logger.Warnf("job %s: stage %s: continuing without speakers: %v", jobID, StageDiarize, err)
		return Degraded(err.Error())
	}
	if len(turns) == 0 {
		e.deps.Logger.Warnf("job %s: stage %s: no speaker turns detected", jobID, StageDiarize)
		return Degraded("no speaker turns detected")
	}
	return Diarized(turns)
}

// BuildResult combines a transcript with the diarization outcome.
func BuildResult(transcript domain.Transcript, diarization Diarization) domain.TranscriptionResult {
	fullText := strings.TrimSpace(transcript.Text)

	if !diarization.OK() {
		segments := align.Unattributed(transcript.Segments)
		return domain.TranscriptionResult{
			FullText:        fullText,
			SpeakerText:     fullText,
			SpeakerSegments: map[string][]domain.SpeakerSegment{},
			Segments:        segments,
			Language:        transcript.Language,
		}
	}

	alignment := align.Align(diarization.Turns, transcript.Segments)
	return domain.TranscriptionResult{
		FullText:        fullText,
		SpeakerText:     alignment.Text,
		SpeakerSegments: alignment.Speakers,
		Segments:        alignment.Segments,
		Language:        transcript.Language,
	}
}

func (e *Executor) progress(jobID string, progress int, message string) {
	if err := e.deps.Jobs.Transition(jobID, domain.JobStatusProcessing, progress, message); err != nil {
		e.deps.Logger.Warnf("job %s: progress %d: %v", jobID, progress, err)
	}
}

// logCommand forwards a captured command log to the job's event stream.
func (e *Executor) logCommand(jobID string, err error) {
	var cmdErr *media.CommandError
	if errors.As(err, &cmdErr) {
		e.deps.Jobs.Log(jobID, cmdErr.Log)
	}
}

func (e *Executor) cleanup(jobID, workDir string) {
	if err := e.removeAll(workDir); err != nil {
		e.deps.Logger.Warnf("job %s: cleanup %s: %v", jobID, workDir, err)
	}
}

// stageError wraps err as a PipelineError, keeping any command log.
func stageError(stage, message string, err error) *PipelineError {
	pe := &PipelineError{Stage: stage, Message: fmt.Sprintf("%s: %v", message, err), Err: err}
	var cmdErr *media.CommandError
	if errors.As(err, &cmdErr) {
		pe.CommandLog = cmdErr.Log
	}
	return pe
}
