// Package clients adapts external speech-to-text, diarization, and
// generative-text engines to the pipeline's capability interfaces.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxErrorBody = 4096

// HTTP is a shared transport tuned for large audio uploads.
type HTTP struct{ c *http.Client }

// NewHTTP builds the production transport.
func NewHTTP() *HTTP {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   1 * time.Minute,
			KeepAlive: 3 * time.Minute,
		}).DialContext,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       2 * time.Minute,
		TLSHandshakeTimeout:   1 * time.Minute,
		ExpectContinueTimeout: 1 * time.Minute,
		ResponseHeaderTimeout: 30 * time.Minute,
	}
	return &HTTP{
		c: &http.Client{
			Transport: tr,
			Timeout:   60 * time.Minute,
		},
	}
}

// NewHTTPWithClient wraps an existing client, mainly for tests.
func NewHTTPWithClient(c *http.Client) *HTTP {
	if c == nil {
		c = http.DefaultClient
	}
	return &HTTP{c: c}
}

// Client exposes the underlying *http.Client.
func (h *HTTP) Client() *http.Client {
	return h.c
}

// statusError is a non-200 reply from an engine service.
type statusError struct {
	Service string
	Status  string
	Code    int
	Body    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Service, e.Status, e.Body)
}

// postAudio uploads audioPath as the multipart "file" field plus extra form
// fields and returns the response body for a 200 reply.
func (h *HTTP) postAudio(ctx context.Context, service, url, audioPath string, fields map[string]string) ([]byte, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", audioPath, err)
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &statusError{
			Service: service,
			Status:  resp.Status,
			Code:    resp.StatusCode,
			Body:    strings.TrimSpace(string(body)),
		}
	}
	return io.ReadAll(resp.Body)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
