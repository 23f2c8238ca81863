// Package bootstrap wires configuration, storage, engines, the job pipeline,
// and the HTTP server into one runnable service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/clients"
	"speaker-transcriber/internal/config"
	"speaker-transcriber/internal/diagnostics"
	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/httpapi"
	"speaker-transcriber/internal/jobs"
	"speaker-transcriber/internal/media"
	"speaker-transcriber/internal/retry"
	"speaker-transcriber/internal/store"
	"speaker-transcriber/internal/summarize"
	"speaker-transcriber/internal/transcribe"
	"speaker-transcriber/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var allowedExtensions = map[string]struct{}{
	".wav": {}, ".mp3": {}, ".m4a": {}, ".flac": {}, ".aac": {}, ".ogg": {},
	".opus": {}, ".webm": {}, ".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {},
}

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, task transcribe.Task) error
}

// prober reads audio metadata from an accepted upload.
type prober interface {
	Probe(ctx context.Context, path string) (media.AudioInfo, error)
}

// summarizer produces generative-text outputs from a transcript.
type summarizer interface {
	Run(ctx context.Context, kind summarize.Kind, conversation string) (string, error)
}

// App wires configuration, jobs, the pipeline, and the HTTP server.
type App struct {
	Settings domain.Settings
	Manager  *jobs.Manager
	Records  store.Store
	Pipeline pipelineRunner
	Pool     *worker.Pool[transcribe.Task]

	prober      prober
	summarizer  summarizer
	checker     *diagnostics.Checker
	transport   *clients.HTTP
	server      *echo.Echo
	logger      *log.Logger
	newID       func() string
	modelSource string

	mu          sync.Mutex
	diagnostics domain.DiagnosticReport
}

// New loads settings from .env, the config file, and the environment, then builds the service.
func New() (*App, error) {
	if err := ensureLocalBinOnPATH(filepath.Join(config.HomeDir(), "bin")); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	settings, err := config.Load(config.NewYAMLStore(config.DefaultPath()))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return Build(settings)
}

// Build constructs every component from settings.
func Build(settings domain.Settings) (*App, error) {
	settings = config.Normalize(settings)
	logger := newLogger(settings.Log.Level)

	for _, dir := range []string{settings.Storage.UploadDir, settings.Storage.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	records, err := store.Open(settings.Storage.Driver, settings.Storage.DSN, settings.Storage.RecordsDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	transport := clients.NewHTTP()
	invoker := retry.NewInvoker(retry.Policy{
		MaxAttempts: settings.Retry.MaxAttempts,
		BaseDelay:   settings.Retry.BaseDelay,
	}, retry.WithLogger(logger))

	engine, err := newTranscriber(settings.Transcription, transport, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	ffmpeg := media.NewFFmpeg(settings.Transcription.FFmpegPath, settings.Transcription.FFprobePath, media.ExecRunner{})
	manager := jobs.NewManager(
		jobs.WithMirror(records),
		jobs.WithEvents(jobs.NewEventBus(1000)),
		jobs.WithLogger(logger),
	)
	var diarizer transcribe.Diarizer
	if settings.Diarization.URL != "" {
		diarizer = clients.NewDiarizationClient(transport, settings.Diarization.URL)
	}
	executor := transcribe.NewExecutor(transcribe.Deps{
		Fetcher:     transcribe.NewHTTPFetcher(transport.Client()),
		Normalizer:  ffmpeg,
		Transcriber: engine,
		Diarizer:    diarizer,
		Store:       records,
		Jobs:        manager,
		Invoker:     invoker,
		Logger:      logger,
	}, transcribe.Models{
		Primary:  settings.Transcription.PrimaryModel,
		Baseline: settings.Transcription.BaselineModel,
	}, settings.Storage.TempDir)

	app := &App{
		Settings:    settings,
		Manager:     manager,
		Records:     records,
		Pipeline:    executor,
		prober:      ffmpeg,
		checker:     diagnostics.NewChecker(),
		transport:   transport,
		logger:      logger,
		newID:       uuid.NewString,
		modelSource: clients.GGMLBaseURL,
	}
	if settings.Summary.APIKey != "" {
		completer := clients.NewOpenAICompleter(
			clients.NewOpenAIClient(settings.Summary.APIKey, settings.Summary.BaseURL, transport),
			settings.Summary.Model,
		)
		app.summarizer = summarize.New(completer, invoker, completer.Model(), settings.Summary.MaxInputChars, logger)
	}
	app.Pool = worker.NewPool[transcribe.Task](settings.Workers.Count, settings.Workers.QueueSize, app.runTask, logger)
	app.server = httpapi.NewRouter(app, logger)
	app.RefreshDiagnostics()
	return app, nil
}

// newTranscriber selects the speech-to-text engine.
func newTranscriber(t domain.TranscriptionSettings, transport *clients.HTTP, logger *log.Logger) (transcribe.Transcriber, error) {
	switch t.Engine {
	case domain.EngineWhisperCPP:
		w := clients.NewWhisperCPP(t.WhisperPath, t.ModelDir, t.Language, media.ExecRunner{})
		w.OnLog(func(entry media.CommandLog) {
			logger.Debugf("%s %s (exit %d)", entry.Command, strings.Join(entry.Args, " "), entry.ExitCode)
		})
		return w, nil
	case domain.EngineHTTP:
		return clients.NewASRClient(transport, t.ServiceURL, t.Language), nil
	case domain.EngineOpenAI:
		client := clients.NewOpenAIClient(t.OpenAIAPIKey, "", transport)
		return clients.NewOpenAITranscriber(client, t.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine %q: %w", t.Engine, domain.ErrValidation)
	}
}

// Run serves until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts the workers and the HTTP server, then shuts both down when ctx ends.
// Jobs still queued at shutdown run with a cancelled context and fail.
func (a *App) Serve(ctx context.Context) error {
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	a.Pool.Start(workCtx)

	report := a.Diagnostics()
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusFail {
			a.logger.Warnf("diagnostic %s: %s", item.ID, item.Message)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("listening on %s", a.Settings.Server.Addr)
		err := a.server.Start(a.Settings.Server.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Infof("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warnf("http shutdown: %v", err)
	}

	cancelWork()
	a.Pool.Stop()
	if err := a.Records.Close(); err != nil {
		a.logger.Warnf("close store: %v", err)
	}
	return serveErr
}

// Submit validates and stores an upload, creates its job, and enqueues it.
func (a *App) Submit(ctx context.Context, upload domain.Upload) (string, error) {
	name := filepath.Base(strings.TrimSpace(upload.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("filename is required: %w", domain.ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file type %q: %w", ext, domain.ErrValidation)
	}
	limit := a.Settings.Server.MaxUploadBytes
	if limit > 0 && upload.Size > limit {
		return "", fmt.Errorf("file is %d bytes, limit is %d: %w", upload.Size, limit, domain.ErrValidation)
	}
	if upload.Body == nil {
		return "", fmt.Errorf("file is empty: %w", domain.ErrValidation)
	}

	id := a.newID()
	path := filepath.Join(a.Settings.Storage.UploadDir, id+"_"+name)
	size, err := saveUpload(path, upload.Body, limit)
	if err != nil {
		return "", err
	}

	asset := domain.AudioAsset{
		Path:     path,
		Filename: name,
		Size:     size,
		Format:   strings.TrimPrefix(ext, "."),
	}
	if info, err := a.prober.Probe(ctx, path); err != nil {
		a.logger.Warnf("job %s: probe %s: %v", id, name, err)
	} else {
		asset.Duration = info.Duration
		if info.Format != "" {
			asset.Format = info.Format
		}
		for _, issue := range info.Issues() {
			a.logger.Warnf("job %s: %s", id, issue)
		}
	}

	if _, err := a.Manager.Create(id, asset); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	if err := a.Pool.Submit(transcribe.Task{JobID: id, Source: path, Asset: asset}); err != nil {
		if attachErr := a.Manager.AttachError(id, "Rejected: "+err.Error()); attachErr != nil {
			a.logger.Errorf("job %s: record rejection: %v", id, attachErr)
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			a.logger.Warnf("job %s: remove upload: %v", id, rmErr)
		}
		if errors.Is(err, worker.ErrPoolClosed) {
			return "", fmt.Errorf("job %s: %w: %w", id, domain.ErrQueueFull, err)
		}
		return "", fmt.Errorf("job %s: %w", id, err)
	}

	a.logger.Infof("job %s: queued %s", id, name)
	return id, nil
}

// Status returns the live job snapshot, falling back to the durable record.
func (a *App) Status(ctx context.Context, jobID string) (domain.JobSnapshot, error) {
	job, err := a.Manager.Get(jobID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.JobSnapshot{}, err
	}
	return a.Records.GetRecord(ctx, jobID)
}

// Jobs returns snapshots of every job tracked since startup.
func (a *App) Jobs() []domain.JobSnapshot {
	return a.Manager.List()
}

// Summarize runs a generative-text kind over a completed job's speaker-labeled text,
// including any edits saved to its record.
func (a *App) Summarize(ctx context.Context, jobID string, kind summarize.Kind) (string, error) {
	if a.summarizer == nil {
		return "", fmt.Errorf("summary service is not configured: %w", domain.ErrPipelineUnavailable)
	}

	job, err := a.Transcription(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		return "", fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrNotReady)
	}

	text := job.Result.SpeakerText
	if strings.TrimSpace(text) == "" {
		text = job.Result.FullText
	}
	return a.summarizer.Run(ctx, kind, text)
}

// JobEvents returns a job's events with sequence greater than sinceSeq.
func (a *App) JobEvents(jobID string, sinceSeq int64) []jobs.Event {
	return a.Manager.Events().ForJob(jobID, sinceSeq)
}

// Diagnostics returns the latest cached diagnostics report.
func (a *App) Diagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns dependency checks and caches the report.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	if a.checker == nil {
		return a.Diagnostics()
	}
	report := a.checker.Run(a.Settings)

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

// runTask is the worker pool handler.
func (a *App) runTask(ctx context.Context, task transcribe.Task) error {
	return a.Pipeline.Run(ctx, task)
}

// saveUpload copies body to path, enforcing limit when positive.
func saveUpload(path string, body io.Reader, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w: %w", domain.ErrIO, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w: %w", domain.ErrIO, err)
	}

	reader := body
	if limit > 0 {
		reader = io.LimitReader(body, limit+1)
	}
	size, copyErr := io.Copy(file, reader)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("write upload: %w: %w", domain.ErrIO, copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("close upload: %w: %w", domain.ErrIO, closeErr)
	case limit > 0 && size > limit:
		_ = os.Remove(path)
		return 0, fmt.Errorf("file exceeds %d bytes: %w", limit, domain.ErrValidation)
	case size == 0:
		_ = os.Remove(path)
		return 0, fmt.Errorf("file is empty: %w", domain.ErrValidation)
	}
	return size, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *log.Logger {
	logger := log.New("transcriber")
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(log.DEBUG)
	case "warn", "warning":
		logger.SetLevel(log.WARN)
	case "error":
		logger.SetLevel(log.ERROR)
	case "off":
		logger.SetLevel(log.OFF)
	default:
		logger.SetLevel(log.INFO)
	}
	return logger
}
