package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"speaker-transcriber/internal/domain"
)

// HTTPFetcher resolves a job source to a local file, downloading http(s) URLs.
type HTTPFetcher struct {
	client *http.Client
	stat   func(name string) (os.FileInfo, error)
}

// NewHTTPFetcher builds a fetcher using client for downloads.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, stat: os.Stat}
}

// Fetch returns a readable local path for source. Remote sources are saved in destDir.
func (f *HTTPFetcher) Fetch(ctx context.Context, source, destDir string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("audio source is required: %w", domain.ErrIO)
	}

	if isRemote(source) {
		return f.download(ctx, source, destDir)
	}

	info, err := f.stat(source)
	if err != nil {
		return "", fmt.Errorf("cannot access audio %s: %w: %w", source, domain.ErrIO, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("audio source %s is a directory: %w", source, domain.ErrIO)
	}
	return source, nil
}

func (f *HTTPFetcher) download(ctx context.Context, source, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w: %w", domain.ErrIO, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w: %w", source, domain.ErrIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s: %w", source, resp.Status, domain.ErrIO)
	}

	target := filepath.Join(destDir, downloadName(source))
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w: %w", target, domain.ErrIO, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("write %s: %w: %w", target, domain.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w: %w", target, domain.ErrIO, err)
	}
	return target, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// downloadName picks a file name from the URL path.
func downloadName(source string) string {
	name := ""
	if u, err := url.Parse(source); err == nil {
		name = filepath.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	if filepath.Ext(name) == "" {
		name += ".wav"
	}
	return "source-" + name
}
