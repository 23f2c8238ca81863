// Package httpapi exposes the transcription service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"speaker-transcriber/internal/align"
	"speaker-transcriber/internal/clients"
	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/jobs"
	"speaker-transcriber/internal/summarize"
)

const defaultPollInterval = 250 * time.Millisecond

// Service is the application surface served over HTTP.
type Service interface {
	Submit(ctx context.Context, upload domain.Upload) (string, error)
	Status(ctx context.Context, jobID string) (domain.JobSnapshot, error)
	Jobs() []domain.JobSnapshot
	Transcriptions(ctx context.Context, status domain.JobStatus, page, perPage int) (domain.RecordPage, error)
	Transcription(ctx context.Context, jobID string) (domain.Job, error)
	EditTranscription(ctx context.Context, jobID string, edit domain.TextEdit) (domain.Job, error)
	DeleteTranscription(ctx context.Context, jobID string) error
	Summarize(ctx context.Context, jobID string, kind summarize.Kind) (string, error)
	JobEvents(jobID string, sinceSeq int64) []jobs.Event
	Diagnostics() domain.DiagnosticReport
	WhisperModels() []clients.WhisperModel
	DownloadWhisperModel(ctx context.Context, modelID string) (clients.WhisperModel, error)
}

// Handler serves the REST and websocket routes.
type Handler struct {
	svc          Service
	logger       *log.Logger
	upgrader     websocket.Upgrader
	pollInterval time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithPollInterval sets how often the event stream checks for new events.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handler) { h.pollInterval = d }
}

// NewRouter builds an echo instance with every route registered.
func NewRouter(svc Service, logger *log.Logger, opts ...Option) *echo.Echo {
	if logger == nil {
		logger = log.New("http")
		logger.SetLevel(log.OFF)
	}
	h := &Handler{
		svc:          svc,
		logger:       logger,
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(h)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	h.Register(e)
	return e
}

// Register adds the routes to e.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/upload", h.upload)
	e.GET("/status/:id", h.status)
	e.GET("/jobs", h.list)
	e.GET("/jobs/:id/events", h.events)
	e.GET("/transcriptions", h.transcriptions)
	e.GET("/transcriptions/:id", h.transcription)
	e.PUT("/transcriptions/:id", h.editTranscription)
	e.DELETE("/transcriptions/:id", h.deleteTranscription)
	e.GET("/transcriptions/:id/vtt", h.vtt)
	e.POST("/transcriptions/:id/summary", h.summary)
	e.GET("/healthz", h.health)
	e.GET("/models", h.models)
	e.POST("/models/:id/download", h.downloadModel)
}

type uploadResponse struct {
	UUID   string           `json:"uuid"`
	Status domain.JobStatus `json:"status"`
}

type summaryResponse struct {
	Kind summarize.Kind `json:"kind"`
	Text string         `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) upload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, fmt.Errorf("multipart field %q is required: %w", "file", domain.ErrValidation))
	}
	file, err := header.Open()
	if err != nil {
		return h.fail(c, fmt.Errorf("open upload: %w: %w", domain.ErrIO, err))
	}
	defer file.Close()

	id, err := h.svc.Submit(c.Request().Context(), domain.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, uploadResponse{UUID: id, Status: domain.JobStatusPending})
}

func (h *Handler) status(c echo.Context) error {
	job, err := h.svc.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Jobs())
}

func (h *Handler) transcriptions(c echo.Context) error {
	page, perPage := 1, domain.DefaultPerPage
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("per_page", &perPage).
		BindError(); err != nil {
		return h.fail(c, fmt.Errorf("invalid paging: %w: %w", domain.ErrValidation, err))
	}

	var status domain.JobStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := domain.ParseJobStatus(raw)
		if err != nil {
			return h.fail(c, err)
		}
		status = parsed
	}

	records, err := h.svc.Transcriptions(c.Request().Context(), status, page, perPage)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) transcription(c echo.Context) error {
	job, err := h.svc.Transcription(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) editTranscription(c echo.Context) error {
	var edit domain.TextEdit
	if err := c.Bind(&edit); err != nil {
		return h.fail(c, fmt.Errorf("invalid edit body: %w: %w", domain.ErrValidation, err))
	}
	job, err := h.svc.EditTranscription(c.Request().Context(), c.Param("id"), edit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) deleteTranscription(c echo.Context) error {
	if err := h.svc.DeleteTranscription(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) vtt(c echo.Context) error {
	job, err := h.svc.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		return h.fail(c, domain.ErrNotReady)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+job.ID+`.vtt"`)
	return c.Blob(http.StatusOK, "text/vtt; charset=utf-8", []byte(align.FormatVTT(job.Result.Segments)))
}

func (h *Handler) summary(c echo.Context) error {
	kind, err := summarize.ParseKind(c.QueryParam("kind"))
	if err != nil {
		return h.fail(c, err)
	}
	text, err := h.svc.Summarize(c.Request().Context(), c.Param("id"), kind)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, summaryResponse{Kind: kind, Text: text})
}

func (h *Handler) health(c echo.Context) error {
	report := h.svc.Diagnostics()
	code := http.StatusOK
	if report.HasFailures {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}

func (h *Handler) models(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.WhisperModels())
}

func (h *Handler) downloadModel(c echo.Context) error {
	model, err := h.svc.DownloadWhisperModel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, model)
}

// fail writes err as a JSON error body with the status its class maps to.
func (h *Handler) fail(c echo.Context, err error) error {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return c.JSON(code, errorResponse{Error: err.Error()})
}

// StatusCode maps a domain error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrDuplicateID),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQueueFull),
		errors.Is(err, domain.ErrPipelineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRetriesExhausted),
		errors.Is(err, domain.ErrModel),
		errors.Is(err, domain.ErrClient):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrThrottling):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
