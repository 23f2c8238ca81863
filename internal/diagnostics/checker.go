// Package diagnostics checks external tools and writable paths the service depends on.
package diagnostics

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes all startup checks and returns a combined report.
// Checks that only apply to the whisper.cpp engine are skipped for other engines.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	t := settings.Transcription
	local := t.Engine == domain.EngineWhisperCPP

	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", t.FFmpegPath),
		c.checkTool("ffprobe", t.FFprobePath),
	}
	if local {
		items = append(items,
			c.checkTool("whisper", t.WhisperPath),
			c.checkModelDir(t.ModelDir),
		)
	} else {
		items = append(items,
			skipped("tool_whisper", "whisper", t.Engine),
			skipped("model_dir", "Model directory", t.Engine),
		)
	}
	items = append(items,
		checkEngine(t),
		c.checkWritableDir("upload_dir", "Upload directory", settings.Storage.UploadDir),
		c.checkWritableDir("temp_dir", "Temp directory", settings.Storage.TempDir),
	)

	return domain.DiagnosticReport{
		GeneratedAt: c.now(),
		HasFailures: lo.SomeBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items: items,
	}
}

// checkTool verifies a required CLI executable is on PATH or at the configured path.
func (c *Checker) checkTool(name, configured string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "tool_" + name, Name: name}

	bin := strings.TrimSpace(configured)
	if bin == "" {
		bin = name
	}
	path, err := c.lookPath(bin)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found: %s", bin)
		item.Hint = "Install it and ensure the binary is available on PATH before starting a transcription job."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkModelDir validates that the model directory holds at least one whisper model.
func (c *Checker) checkModelDir(modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_dir",
		Name: "Model directory",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set transcription.model_dir to a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model directory does not exist: %s", modelDir)
		} else {
			item.Message = fmt.Sprintf("Cannot access model directory: %s", modelDir)
		}
		item.Hint = "Download a whisper.cpp model with POST /models/{id}/download."
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model path is not a directory: %s", modelDir)
		item.Hint = "Point transcription.model_dir at a directory."
		return item
	}

	entries, err := c.readDir(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelDir)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelDir)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelDir)
	item.Hint = "Place a .bin or .gguf model file in this directory."
	return item
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " is empty."
		item.Hint = "Configure a writable directory."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Adjust filesystem permissions for the service user."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkEngine validates the settings the selected remote engine needs.
func checkEngine(t domain.TranscriptionSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "engine", Name: "Transcription engine"}

	switch t.Engine {
	case domain.EngineWhisperCPP:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Local whisper.cpp engine"
	case domain.EngineHTTP:
		if u, err := url.Parse(t.ServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Invalid speech-to-text service URL: %q", t.ServiceURL)
			item.Hint = "Set transcription.service_url or TRANSCRIBER_ASR_URL."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Speech-to-text service at " + t.ServiceURL
	case domain.EngineOpenAI:
		if t.OpenAIAPIKey == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = "OpenAI API key is not configured."
			item.Hint = "Set OPENAI_API_KEY."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = "OpenAI transcription API"
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown engine: %q", t.Engine)
		item.Hint = "Use whispercpp, http, or openai."
	}
	return item
}

func skipped(id, name, engine string) domain.DiagnosticItem {
	return domain.DiagnosticItem{
		ID:      id,
		Name:    name,
		Status:  domain.DiagnosticStatusSkip,
		Message: fmt.Sprintf("Not used by the %s engine", engine),
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	c := NewChecker()
	c.lookPath = lookPath
	c.stat = stat
	c.readDir = readDir
	c.mkdirAll = mkdirAll
	c.createTemp = createTemp
	c.remove = remove
	return c
}
