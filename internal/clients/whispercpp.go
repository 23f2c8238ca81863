package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/media"
)

// WhisperCPP runs the whisper.cpp CLI as a speech-to-text engine.
type WhisperCPP struct {
	whisperPath string
	modelDir    string
	language    string
	runner      media.Runner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readFile    func(name string) ([]byte, error)
	onLog       func(media.CommandLog)
}

// NewWhisperCPP builds the engine. Models are looked up in modelDir.
func NewWhisperCPP(whisperPath, modelDir, language string, runner media.Runner) *WhisperCPP {
	if strings.TrimSpace(whisperPath) == "" {
		whisperPath = "whisper-cli"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &WhisperCPP{
		whisperPath: whisperPath,
		modelDir:    modelDir,
		language:    language,
		runner:      runner,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readFile:    os.ReadFile,
	}
}

// OnLog registers a callback receiving every whisper.cpp invocation.
func (w *WhisperCPP) OnLog(cb func(media.CommandLog)) {
	w.onLog = cb
}

// whisperJSON is the subset of whisper.cpp -oj output we read.
type whisperJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp with the named model and parses its JSON output.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath, model string) (domain.Transcript, error) {
	modelPath, err := w.resolveModelPath(model)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper.cpp: %w: %w", domain.ErrModel, err)
	}

	outDir, err := w.mkdirTemp("", "whisper-out-*")
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper.cpp workspace: %w: %w", domain.ErrIO, err)
	}
	defer func() { _ = w.removeAll(outDir) }()

	outBase := filepath.Join(outDir, "transcript")
	args := buildWhisperArgs(modelPath, audioPath, outBase, w.language)

	log, runErr := media.RunLogged(ctx, w.runner, w.whisperPath, args...)
	if w.onLog != nil {
		w.onLog(log)
	}
	if runErr != nil {
		return domain.Transcript{}, fmt.Errorf("whisper.cpp transcription failed: %w",
			&media.CommandError{Log: log, Err: fmt.Errorf("%w: %w", domain.ErrModel, runErr)})
	}

	raw, err := w.readFile(outBase + ".json")
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper.cpp completed but transcript .json is missing: %w: %w", domain.ErrModel, err)
	}
	return parseWhisperJSON(raw)
}

func parseWhisperJSON(raw []byte) (domain.Transcript, error) {
	var out whisperJSON
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper.cpp decode: %w: %w", domain.ErrModel, err)
	}

	segments := make([]domain.TranscriptSegment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		if t.Offsets.To <= t.Offsets.From {
			continue
		}
		segments = append(segments, domain.TranscriptSegment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  t.Text,
		})
	}
	return domain.Transcript{
		Text:     joinSegmentText(segments),
		Segments: segments,
		Language: out.Result.Language,
	}, nil
}

// resolveModelPath accepts a catalog id, a file name inside modelDir, or a path.
func (w *WhisperCPP) resolveModelPath(model string) (string, error) {
	name := strings.TrimSpace(model)
	if name == "" {
		return "", fmt.Errorf("model is required")
	}

	if filepath.IsAbs(name) {
		if _, err := w.stat(name); err != nil {
			return "", fmt.Errorf("cannot access model path: %s", name)
		}
		return name, nil
	}

	file, ok := WhisperModelFile(name)
	if !ok {
		return "", fmt.Errorf("unknown whisper model: %s", name)
	}
	path := filepath.Join(w.modelDir, file)
	info, err := w.stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("model %s not found in %s", name, w.modelDir)
	}
	return path, nil
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export.
// whisper-cli assumes English without -l, so detection is requested explicitly.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	lang := normalizeLanguage(language)
	if lang == "" {
		lang = "auto"
	}
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-l", lang,
	}
}
