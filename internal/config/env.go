package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"speaker-transcriber/internal/domain"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables looked up through getenv.
// Unparseable numeric values are ignored.
func ApplyEnv(cfg domain.Settings, getenv func(string) string) domain.Settings {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}

	str("TRANSCRIBER_ADDR", &cfg.Server.Addr)
	if v, err := strconv.ParseInt(strings.TrimSpace(getenv("TRANSCRIBER_MAX_UPLOAD_BYTES")), 10, 64); err == nil {
		cfg.Server.MaxUploadBytes = v
	}

	str("TRANSCRIBER_UPLOAD_DIR", &cfg.Storage.UploadDir)
	str("TRANSCRIBER_TEMP_DIR", &cfg.Storage.TempDir)
	str("TRANSCRIBER_STORE_DRIVER", &cfg.Storage.Driver)
	str("TRANSCRIBER_STORE_DSN", &cfg.Storage.DSN)
	str("TRANSCRIBER_RECORDS_DIR", &cfg.Storage.RecordsDir)

	num("TRANSCRIBER_WORKERS", &cfg.Workers.Count)
	num("TRANSCRIBER_QUEUE_SIZE", &cfg.Workers.QueueSize)

	str("TRANSCRIBER_ENGINE", &cfg.Transcription.Engine)
	str("TRANSCRIBER_PRIMARY_MODEL", &cfg.Transcription.PrimaryModel)
	str("TRANSCRIBER_BASELINE_MODEL", &cfg.Transcription.BaselineModel)
	str("TRANSCRIBER_LANGUAGE", &cfg.Transcription.Language)
	str("TRANSCRIBER_MODEL_DIR", &cfg.Transcription.ModelDir)
	str("TRANSCRIBER_WHISPER_PATH", &cfg.Transcription.WhisperPath)
	str("TRANSCRIBER_FFMPEG_PATH", &cfg.Transcription.FFmpegPath)
	str("TRANSCRIBER_FFPROBE_PATH", &cfg.Transcription.FFprobePath)
	str("TRANSCRIBER_ASR_URL", &cfg.Transcription.ServiceURL)
	str("OPENAI_API_KEY", &cfg.Transcription.OpenAIAPIKey)

	str("TRANSCRIBER_DIARIZATION_URL", &cfg.Diarization.URL)

	str("TRANSCRIBER_SUMMARY_MODEL", &cfg.Summary.Model)
	str("OPENAI_API_KEY", &cfg.Summary.APIKey)
	str("TRANSCRIBER_SUMMARY_API_KEY", &cfg.Summary.APIKey)
	str("TRANSCRIBER_SUMMARY_BASE_URL", &cfg.Summary.BaseURL)
	num("TRANSCRIBER_SUMMARY_MAX_CHARS", &cfg.Summary.MaxInputChars)

	num("TRANSCRIBER_RETRY_ATTEMPTS", &cfg.Retry.MaxAttempts)
	if v, err := time.ParseDuration(strings.TrimSpace(getenv("TRANSCRIBER_RETRY_BASE_DELAY"))); err == nil {
		cfg.Retry.BaseDelay = v
	}

	str("TRANSCRIBER_LOG_LEVEL", &cfg.Log.Level)
	return cfg
}

// Load reads .env, the settings file, and environment overrides, in that order
// of increasing precedence, and returns normalized settings.
func Load(store Store) (domain.Settings, error) {
	if err := LoadDotEnv(); err != nil {
		return domain.Settings{}, err
	}
	cfg, err := store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return Normalize(ApplyEnv(cfg, os.Getenv)), nil
}
