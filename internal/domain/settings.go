package domain

import "time"

// Transcription engine identifiers.
const (
	EngineWhisperCPP = "whispercpp"
	EngineHTTP       = "http"
	EngineOpenAI     = "openai"
)

// Durable store drivers.
const (
	StoreDriverJSON     = "json"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Settings contains the full runtime configuration of the service.
type Settings struct {
	Server        ServerSettings        `yaml:"server"`
	Storage       StorageSettings       `yaml:"storage"`
	Workers       WorkerSettings        `yaml:"workers"`
	Transcription TranscriptionSettings `yaml:"transcription"`
	Diarization   DiarizationSettings   `yaml:"diarization"`
	Summary       SummarySettings       `yaml:"summary"`
	Retry         RetrySettings         `yaml:"retry"`
	Log           LogSettings           `yaml:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// StorageSettings configures uploads, scratch space, and the durable store.
type StorageSettings struct {
	UploadDir  string `yaml:"upload_dir"`
	TempDir    string `yaml:"temp_dir"`
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	RecordsDir string `yaml:"records_dir"`
}

// WorkerSettings bounds pipeline concurrency.
type WorkerSettings struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// TranscriptionSettings selects the speech-to-text engine and its models.
type TranscriptionSettings struct {
	Engine        string `yaml:"engine"`
	PrimaryModel  string `yaml:"primary_model"`
	BaselineModel string `yaml:"baseline_model"`
	Language      string `yaml:"language"`
	ModelDir      string `yaml:"model_dir"`
	WhisperPath   string `yaml:"whisper_path"`
	FFmpegPath    string `yaml:"ffmpeg_path"`
	FFprobePath   string `yaml:"ffprobe_path"`
	ServiceURL    string `yaml:"service_url"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
}

// DiarizationSettings points at the diarization service.
type DiarizationSettings struct {
	URL string `yaml:"url"`
}

// SummarySettings configures the generative text service.
type SummarySettings struct {
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	MaxInputChars int    `yaml:"max_input_chars"`
}

// RetrySettings configures the backoff policy for flaky engine calls.
type RetrySettings struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level string `yaml:"level"`
}
