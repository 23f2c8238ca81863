package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"speaker-transcriber/internal/domain"
)

const (
	appDirName = ".speaker-transcriber"

	defaultAddr           = ":8080"
	defaultMaxUploadBytes = 500 << 20
	defaultWorkers        = 2
	defaultQueueSize      = 32
	defaultPrimaryModel   = "large-v3"
	defaultBaselineModel  = "base"
	defaultSummaryModel   = "gpt-4o-mini"
	defaultMaxInputChars  = 8000
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 2 * time.Second
)

// HomeDir returns the per-user application directory.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}

// DefaultPath returns the settings file location, honoring TRANSCRIBER_CONFIG.
func DefaultPath() string {
	if path := strings.TrimSpace(os.Getenv("TRANSCRIBER_CONFIG")); path != "" {
		return path
	}
	return filepath.Join(HomeDir(), "config.yaml")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	base := HomeDir()

	return domain.Settings{
		Server: domain.ServerSettings{
			Addr:           defaultAddr,
			MaxUploadBytes: defaultMaxUploadBytes,
		},
		Storage: domain.StorageSettings{
			UploadDir:  filepath.Join(base, "uploads"),
			TempDir:    filepath.Join(os.TempDir(), "speaker-transcriber"),
			Driver:     domain.StoreDriverJSON,
			RecordsDir: filepath.Join(base, "records"),
		},
		Workers: domain.WorkerSettings{
			Count:     defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		Transcription: domain.TranscriptionSettings{
			Engine:        domain.EngineWhisperCPP,
			PrimaryModel:  defaultPrimaryModel,
			BaselineModel: defaultBaselineModel,
			Language:      "auto",
			ModelDir:      filepath.Join(base, "models"),
			WhisperPath:   "whisper-cli",
			FFmpegPath:    "ffmpeg",
			FFprobePath:   "ffprobe",
		},
		Summary: domain.SummarySettings{
			Model:         defaultSummaryModel,
			MaxInputChars: defaultMaxInputChars,
		},
		Retry: domain.RetrySettings{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
		},
		Log: domain.LogSettings{
			Level: "info",
		},
	}
}

// Normalize trims user inputs and fills empty or invalid fields from defaults.
func Normalize(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()

	cfg.Server.Addr = orDefault(cfg.Server.Addr, def.Server.Addr)
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = def.Server.MaxUploadBytes
	}

	cfg.Storage.UploadDir = orDefault(cfg.Storage.UploadDir, def.Storage.UploadDir)
	cfg.Storage.TempDir = orDefault(cfg.Storage.TempDir, def.Storage.TempDir)
	cfg.Storage.Driver = strings.ToLower(orDefault(cfg.Storage.Driver, def.Storage.Driver))
	cfg.Storage.DSN = strings.TrimSpace(cfg.Storage.DSN)
	cfg.Storage.RecordsDir = orDefault(cfg.Storage.RecordsDir, def.Storage.RecordsDir)
	if cfg.Storage.Driver == domain.StoreDriverSQLite && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = filepath.Join(filepath.Dir(cfg.Storage.RecordsDir), "transcriptions.db")
	}

	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = def.Workers.Count
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = def.Workers.QueueSize
	}

	t := &cfg.Transcription
	t.Engine = strings.ToLower(orDefault(t.Engine, def.Transcription.Engine))
	t.PrimaryModel = orDefault(t.PrimaryModel, def.Transcription.PrimaryModel)
	t.BaselineModel = orDefault(t.BaselineModel, def.Transcription.BaselineModel)
	t.Language = orDefault(t.Language, def.Transcription.Language)
	t.ModelDir = orDefault(t.ModelDir, def.Transcription.ModelDir)
	t.WhisperPath = orDefault(t.WhisperPath, def.Transcription.WhisperPath)
	t.FFmpegPath = orDefault(t.FFmpegPath, def.Transcription.FFmpegPath)
	t.FFprobePath = orDefault(t.FFprobePath, def.Transcription.FFprobePath)
	t.ServiceURL = strings.TrimSpace(t.ServiceURL)
	t.OpenAIAPIKey = strings.TrimSpace(t.OpenAIAPIKey)

	cfg.Diarization.URL = strings.TrimSpace(cfg.Diarization.URL)

	cfg.Summary.Model = orDefault(cfg.Summary.Model, def.Summary.Model)
	cfg.Summary.APIKey = strings.TrimSpace(cfg.Summary.APIKey)
	cfg.Summary.BaseURL = strings.TrimSpace(cfg.Summary.BaseURL)
	if cfg.Summary.MaxInputChars <= 0 {
		cfg.Summary.MaxInputChars = def.Summary.MaxInputChars
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = def.Retry.BaseDelay
	}

	cfg.Log.Level = strings.ToLower(orDefault(cfg.Log.Level, def.Log.Level))
	return cfg
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
