package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"speaker-transcriber/internal/clients"
	"speaker-transcriber/internal/config"
	"speaker-transcriber/internal/domain"
)

const modelDownloadTimeout = 2 * time.Hour

// WhisperModels returns built-in whisper.cpp model presets marked with local availability.
func (a *App) WhisperModels() []clients.WhisperModel {
	dir, err := resolveModelDownloadDirectory(a.Settings.Transcription.ModelDir)
	if err != nil {
		dir = ""
	}
	return clients.WhisperModels(dir)
}

// DownloadWhisperModel downloads a catalog model into the configured model directory.
func (a *App) DownloadWhisperModel(ctx context.Context, modelID string) (clients.WhisperModel, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return clients.WhisperModel{}, fmt.Errorf("model id is required: %w", domain.ErrValidation)
	}
	model, found := clients.LookupWhisperModel(id)
	if !found {
		return clients.WhisperModel{}, fmt.Errorf("unknown model id %s: %w", id, domain.ErrNotFound)
	}

	downloadDir, err := resolveModelDownloadDirectory(a.Settings.Transcription.ModelDir)
	if err != nil {
		return clients.WhisperModel{}, err
	}

	source := a.modelSource + model.FileName
	targetPath := filepath.Join(downloadDir, model.FileName)
	ctx, cancel := context.WithTimeout(ctx, modelDownloadTimeout)
	defer cancel()
	if err := downloadURLToFile(ctx, a.transport.Client(), targetPath, source); err != nil {
		return clients.WhisperModel{}, fmt.Errorf("download model %s: %w", model.Name, err)
	}
	a.logger.Infof("downloaded whisper model %s to %s", model.ID, targetPath)

	a.RefreshDiagnostics()
	model.Downloaded = true
	model.LocalPath = targetPath
	return model, nil
}

// resolveModelDownloadDirectory maps the configured model location to a directory.
// A path ending in a model file extension resolves to its parent.
func resolveModelDownloadDirectory(modelDir string) (string, error) {
	trimmed := strings.TrimSpace(modelDir)
	if trimmed == "" {
		return filepath.Join(config.HomeDir(), "models"), nil
	}

	info, err := os.Stat(trimmed)
	if err == nil {
		if info.IsDir() {
			return trimmed, nil
		}
		ext := strings.ToLower(filepath.Ext(trimmed))
		if ext == ".bin" || ext == ".gguf" {
			return filepath.Dir(trimmed), nil
		}
		return "", fmt.Errorf("model path points to non-model file %s: %w", trimmed, domain.ErrValidation)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("check model path: %w: %w", domain.ErrIO, err)
	}

	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext == ".bin" || ext == ".gguf" {
		return filepath.Dir(trimmed), nil
	}
	return trimmed, nil
}

// downloadURLToFile streams sourceURL into destinationPath through a temp file.
func downloadURLToFile(ctx context.Context, client *http.Client, destinationPath, sourceURL string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w: %w", domain.ErrIO, err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w: %w", domain.ErrIO, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "speaker-transcriber")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w: %w", domain.ErrIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %s: %w", resp.Status, domain.ErrIO)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w: %w", domain.ErrIO, err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w: %w", domain.ErrIO, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w: %w", domain.ErrIO, closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w: %w", domain.ErrIO, err)
	}
	return nil
}

// ensureLocalBinOnPATH prepends the per-user tool directory to PATH so locally
// installed ffmpeg and whisper.cpp binaries are found.
func ensureLocalBinOnPATH(binDir string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}
