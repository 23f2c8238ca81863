package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speaker-transcriber/internal/domain"
)

func fakeLookPath(name string) (string, error) { return "/usr/local/bin/" + name, nil }

func localSettings(root string) domain.Settings {
	return domain.Settings{
		Storage: domain.StorageSettings{
			UploadDir: filepath.Join(root, "uploads"),
			TempDir:   filepath.Join(root, "tmp"),
		},
		Transcription: domain.TranscriptionSettings{
			Engine:      domain.EngineWhisperCPP,
			ModelDir:    filepath.Join(root, "models"),
			WhisperPath: "whisper-cli",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
	}
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	settings := localSettings(root)
	if err := os.MkdirAll(settings.Transcription.ModelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	modelFile := filepath.Join(settings.Transcription.ModelDir, "ggml-base.bin")
	if err := os.WriteFile(modelFile, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	checker := NewCheckerForTests(fakeLookPath, os.Stat, os.ReadDir, os.MkdirAll, os.CreateTemp, os.Remove)
	report := checker.Run(settings)

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	assertStatusByID(t, report, "tool_whisper", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "upload_dir", domain.DiagnosticStatusPass)
	if _, err := os.Stat(settings.Storage.TempDir); err != nil {
		t.Fatalf("temp dir not created: %v", err)
	}
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.Stat, os.ReadDir, os.MkdirAll, os.CreateTemp, os.Remove,
	)

	report := checker.Run(domain.Settings{
		Transcription: domain.TranscriptionSettings{
			Engine:   domain.EngineWhisperCPP,
			ModelDir: "/path/that/does/not/exist",
		},
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_ffprobe", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_whisper", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "upload_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "temp_dir", domain.DiagnosticStatusFail)
}

// TestCheckerRunModelDirectoryWithoutModelFilesFails validates model check.
func TestCheckerRunModelDirectoryWithoutModelFilesFails(t *testing.T) {
	root := t.TempDir()
	settings := localSettings(root)
	if err := os.MkdirAll(settings.Transcription.ModelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(settings.Transcription.ModelDir, "README.txt"), []byte("no model"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	checker := NewCheckerForTests(fakeLookPath, os.Stat, os.ReadDir, os.MkdirAll, os.CreateTemp, os.Remove)
	report := checker.Run(settings)

	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusFail)
}

// TestCheckerRunSkipsLocalChecksForRemoteEngine validates engine-specific checks.
func TestCheckerRunSkipsLocalChecksForRemoteEngine(t *testing.T) {
	root := t.TempDir()
	settings := localSettings(root)
	settings.Transcription.Engine = domain.EngineHTTP
	settings.Transcription.ServiceURL = "http://asr:9000"

	checker := NewCheckerForTests(fakeLookPath, os.Stat, os.ReadDir, os.MkdirAll, os.CreateTemp, os.Remove)
	report := checker.Run(settings)

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	assertStatusByID(t, report, "tool_whisper", domain.DiagnosticStatusSkip)
	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusSkip)
	assertStatusByID(t, report, "engine", domain.DiagnosticStatusPass)
}

// TestCheckerRunEngineSettings validates remote engine configuration checks.
func TestCheckerRunEngineSettings(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(fakeLookPath, os.Stat, os.ReadDir, os.MkdirAll, os.CreateTemp, os.Remove)

	settings := localSettings(root)
	settings.Transcription.Engine = domain.EngineHTTP
	settings.Transcription.ServiceURL = "not a url"
	assertStatusByID(t, checker.Run(settings), "engine", domain.DiagnosticStatusFail)

	settings.Transcription.Engine = domain.EngineOpenAI
	assertStatusByID(t, checker.Run(settings), "engine", domain.DiagnosticStatusFail)

	settings.Transcription.OpenAIAPIKey = "sk-test"
	assertStatusByID(t, checker.Run(settings), "engine", domain.DiagnosticStatusPass)

	settings.Transcription.Engine = "vosk"
	assertStatusByID(t, checker.Run(settings), "engine", domain.DiagnosticStatusFail)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
