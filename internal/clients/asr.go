package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
)

// asrSegment is one segment of the ASR service reply.
type asrSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type asrResponse struct {
	Text     string       `json:"text"`
	Segments []asrSegment `json:"segments"`
	Language string       `json:"language"`
}

// ASRClient calls a speech-to-text service over HTTP.
type ASRClient struct {
	http     *HTTP
	baseURL  string
	language string
}

// NewASRClient builds a client for the service at baseURL.
func NewASRClient(h *HTTP, baseURL, language string) *ASRClient {
	return &ASRClient{http: h, baseURL: baseURL, language: normalizeLanguage(language)}
}

// Transcribe posts the audio file with the requested model name.
func (c *ASRClient) Transcribe(ctx context.Context, audioPath, model string) (domain.Transcript, error) {
	body, err := c.http.postAudio(ctx, "asr", joinURL(c.baseURL, "/transcribe"), audioPath, map[string]string{
		"model":    model,
		"language": c.language,
	})
	if err != nil {
		return domain.Transcript{}, classifyEngineError("asr", err)
	}

	var out asrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Transcript{}, fmt.Errorf("asr decode: %w: %w", domain.ErrModel, err)
	}

	segments := lo.FilterMap(out.Segments, func(s asrSegment, _ int) (domain.TranscriptSegment, bool) {
		return timedSegment(s.Start, s.End, s.Text)
	})
	text := out.Text
	if strings.TrimSpace(text) == "" {
		text = joinSegmentText(segments)
	}
	return domain.Transcript{Text: text, Segments: segments, Language: out.Language}, nil
}

// classifyEngineError maps transport and status failures onto the error taxonomy.
func classifyEngineError(service string, err error) error {
	var se *statusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", service, domain.ErrThrottling, err)
	}
	return fmt.Errorf("%s: %w: %w", service, domain.ErrModel, err)
}

// timedSegment drops empty and inverted intervals.
func timedSegment(start, end float64, text string) (domain.TranscriptSegment, bool) {
	return domain.TranscriptSegment{Start: start, End: end, Text: text}, end > start
}

func joinSegmentText(segments []domain.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// normalizeLanguage maps "auto" and empty language to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
