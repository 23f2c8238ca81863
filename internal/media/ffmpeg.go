package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"speaker-transcriber/internal/domain"
)

const (
	// NormalizedFileName is the normalizer output inside the job temp dir.
	NormalizedFileName = "normalized-16k-mono.wav"

	// bandLimitMinSeconds is the shortest clip that gets the speech band filter.
	bandLimitMinSeconds = 5.0
)

// CommandError wraps an ffmpeg or ffprobe failure with its captured log.
type CommandError struct {
	Log CommandLog
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with %d: %v", e.Log.Command, e.Log.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// AudioInfo is what ffprobe reports about an upload.
type AudioInfo struct {
	Duration   *float64
	SampleRate int
	Channels   int
	Format     string
}

// Issues lists properties that tend to degrade diarization quality.
func (i AudioInfo) Issues() []string {
	var issues []string
	if i.Duration != nil && *i.Duration < 10 {
		issues = append(issues, "audio too short for reliable diarization")
	}
	if i.SampleRate > 0 && i.SampleRate < 16000 {
		issues = append(issues, "sample rate too low for optimal diarization")
	}
	return issues
}

// FFmpeg runs ffmpeg and ffprobe through a Runner.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
	stat        func(name string) (os.FileInfo, error)
	onLog       func(CommandLog)
}

// NewFFmpeg builds an FFmpeg wrapper. Empty paths fall back to PATH lookups.
func NewFFmpeg(ffmpegPath, ffprobePath string, runner Runner) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		stat:        os.Stat,
	}
}

// OnLog registers a callback receiving every command log.
func (f *FFmpeg) OnLog(cb func(CommandLog)) {
	f.onLog = cb
}

// Normalize converts input to 16 kHz mono PCM WAV in outDir with loudness
// normalization and compression. Clips longer than five seconds, or of unknown
// length, are also band-limited to 80 Hz - 4 kHz.
func (f *FFmpeg) Normalize(ctx context.Context, inputPath, outDir string, duration *float64) (string, error) {
	outPath := filepath.Join(outDir, NormalizedFileName)
	args := buildNormalizeArgs(inputPath, outPath, duration)

	log, err := RunLogged(ctx, f.runner, f.ffmpegPath, args...)
	f.emit(log)
	if err != nil {
		return "", fmt.Errorf("ffmpeg normalize: %w", &CommandError{Log: log, Err: asIO(err)})
	}
	if _, err := f.stat(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg completed but output file is missing: %w", &CommandError{Log: log, Err: asIO(err)})
	}
	return outPath, nil
}

// Probe reads duration, sample rate, and channel count with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (AudioInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_entries", "format=duration,format_name:stream=sample_rate,channels,codec_type",
		path,
	}

	log, err := RunLogged(ctx, f.runner, f.ffprobePath, args...)
	f.emit(log)
	if err != nil {
		return AudioInfo{}, fmt.Errorf("ffprobe: %w", &CommandError{Log: log, Err: asIO(err)})
	}
	return parseProbe(log.Stdout)
}

func (f *FFmpeg) emit(log CommandLog) {
	if f.onLog != nil {
		f.onLog(log)
	}
}

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func parseProbe(raw string) (AudioInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return AudioInfo{}, fmt.Errorf("decode ffprobe output: %w", asIO(err))
	}

	info := AudioInfo{Format: out.Format.FormatName}
	if d, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64); err == nil && d >= 0 {
		info.Duration = &d
	}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Channels = s.Channels
		break
	}
	return info, nil
}

// buildNormalizeArgs builds ffmpeg args for the speech-ready WAV output.
func buildNormalizeArgs(inputPath, outPath string, duration *float64) []string {
	filters := []string{"loudnorm"}
	if duration == nil || *duration > bandLimitMinSeconds {
		filters = append(filters, "lowpass=f=4000", "highpass=f=80")
	}
	filters = append(filters, "acompressor=threshold=0.1:ratio=2")

	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-af", strings.Join(filters, ","),
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// asIO tags err with the IO class while keeping the original cause.
func asIO(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrIO, err)
}
