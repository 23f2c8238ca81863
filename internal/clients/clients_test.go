package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"speaker-transcriber/internal/domain"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

// TestASRClientSendsModelAndDecodes checks the multipart form, reply mapping, and
// that empty or inverted segments are dropped.
func TestASRClientSendsModelAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("path = %q, want /transcribe", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "large-v3" {
			t.Errorf("model = %q, want large-v3", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file field: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"segments": []map[string]any{
				{"start": 0, "end": 1.5, "text": " Hello"},
				{"start": 1.5, "end": 2, "text": " world"},
				{"start": 3, "end": 3, "text": " empty"},
				{"start": 5, "end": 4, "text": " inverted"},
			},
			"language": "en",
		})
	}))
	defer srv.Close()

	client := NewASRClient(NewHTTPWithClient(srv.Client()), srv.URL, "auto")
	got, err := client.Transcribe(context.Background(), writeAudio(t), "large-v3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "Hello world" || len(got.Segments) != 2 || got.Language != "en" {
		t.Fatalf("transcript = %+v", got)
	}
}

// TestASRClientMapsStatusCodes checks throttling vs model failures.
func TestASRClientMapsStatusCodes(t *testing.T) {
	for _, tc := range []struct {
		code int
		want error
	}{
		{http.StatusTooManyRequests, domain.ErrThrottling},
		{http.StatusInternalServerError, domain.ErrModel},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.code)
		}))
		client := NewASRClient(NewHTTPWithClient(srv.Client()), srv.URL, "")
		_, err := client.Transcribe(context.Background(), writeAudio(t), "base")
		srv.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d error = %v, want %v", tc.code, err, tc.want)
		}
	}
}

// TestDiarizationClientNormalizesTurns checks mixed wire shapes and invalid intervals.
func TestDiarizationClientNormalizesTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"segments": [
			{"start": 0, "end": 2, "speaker": "SPK_1"},
			{"start": 2, "end": 2, "speaker": "SPK_2"},
			{"start": 3, "end": 5, "speaker_id": "SPK_2"},
			{"start": 5, "end": 6, "label": "SPK_1"},
			{"start": 6, "end": 7}
		]}`))
	}))
	defer srv.Close()

	turns, err := NewDiarizationClient(NewHTTPWithClient(srv.Client()), srv.URL).Diarize(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	want := []domain.SpeakerTurn{
		{Start: 0, End: 2, SpeakerID: "SPK_1"},
		{Start: 3, End: 5, SpeakerID: "SPK_2"},
		{Start: 5, End: 6, SpeakerID: "SPK_1"},
	}
	if len(turns) != len(want) {
		t.Fatalf("turns = %+v, want %+v", turns, want)
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Fatalf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

// TestDiarizationClientUnavailable checks 503 and unreachable hosts.
func TestDiarizationClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	client := NewDiarizationClient(NewHTTPWithClient(srv.Client()), srv.URL)
	_, err := client.Diarize(context.Background(), writeAudio(t))
	srv.Close()
	if !errors.Is(err, domain.ErrPipelineUnavailable) {
		t.Fatalf("503 error = %v, want ErrPipelineUnavailable", err)
	}

	_, err = client.Diarize(context.Background(), writeAudio(t))
	if !errors.Is(err, domain.ErrPipelineUnavailable) {
		t.Fatalf("closed server error = %v, want ErrPipelineUnavailable", err)
	}

	_, err = NewDiarizationClient(NewHTTP(), "").Diarize(context.Background(), writeAudio(t))
	if !errors.Is(err, domain.ErrPipelineUnavailable) {
		t.Fatalf("unconfigured error = %v, want ErrPipelineUnavailable", err)
	}
}

// TestDiarizationClientModelError checks other statuses are hard model errors.
func TestDiarizationClientModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewDiarizationClient(NewHTTPWithClient(srv.Client()), srv.URL).Diarize(context.Background(), writeAudio(t))
	if !errors.Is(err, domain.ErrModel) {
		t.Fatalf("error = %v, want ErrModel", err)
	}
}
