package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
)

// wireTurn accepts the speaker field names diarization services use.
type wireTurn struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Speaker   string  `json:"speaker"`
	SpeakerID string  `json:"speaker_id"`
	Label     string  `json:"label"`
}

type diarizeResponse struct {
	Segments    []wireTurn `json:"segments"`
	Turns       []wireTurn `json:"turns"`
	NumSpeakers int        `json:"num_speakers"`
}

// DiarizationClient calls a speaker diarization service over HTTP.
type DiarizationClient struct {
	http    *HTTP
	baseURL string
}

// NewDiarizationClient builds a client for the service at baseURL.
func NewDiarizationClient(h *HTTP, baseURL string) *DiarizationClient {
	return &DiarizationClient{http: h, baseURL: baseURL}
}

// Diarize returns the speaker turns of the audio file. An unreachable service
// or a 503 reply is reported as domain.ErrPipelineUnavailable.
func (c *DiarizationClient) Diarize(ctx context.Context, audioPath string) ([]domain.SpeakerTurn, error) {
	if strings.TrimSpace(c.baseURL) == "" {
		return nil, fmt.Errorf("diarize: no service configured: %w", domain.ErrPipelineUnavailable)
	}

	body, err := c.http.postAudio(ctx, "diarize", joinURL(c.baseURL, "/diarize"), audioPath, nil)
	if err != nil {
		return nil, classifyDiarizeError(err)
	}

	var out diarizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("diarize decode: %w: %w", domain.ErrModel, err)
	}
	return normalizeTurns(append(out.Segments, out.Turns...)), nil
}

func classifyDiarizeError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		if se.Code == http.StatusServiceUnavailable {
			return fmt.Errorf("diarize: %w: %w", domain.ErrPipelineUnavailable, err)
		}
		return fmt.Errorf("diarize: %w: %w", domain.ErrModel, err)
	}

	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return fmt.Errorf("diarize: %w: %w", domain.ErrPipelineUnavailable, err)
	}
	return fmt.Errorf("diarize: %w: %w", domain.ErrModel, err)
}

// normalizeTurns converts wire turns to SpeakerTurn, dropping empty or
// inverted intervals and unlabeled turns.
func normalizeTurns(raw []wireTurn) []domain.SpeakerTurn {
	return lo.FilterMap(raw, func(t wireTurn, _ int) (domain.SpeakerTurn, bool) {
		id := firstNonEmpty(t.Speaker, t.SpeakerID, t.Label)
		if id == "" || t.End <= t.Start || t.Start < 0 {
			return domain.SpeakerTurn{}, false
		}
		return domain.SpeakerTurn{Start: t.Start, End: t.End, SpeakerID: id}, true
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
