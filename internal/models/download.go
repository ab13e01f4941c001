package models

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
)

// DefaultTimeout bounds one model download.
const DefaultTimeout = 45 * time.Minute

// ProgressFunc receives bytes written so far and the expected total (-1 when unknown).
type ProgressFunc func(written, total int64)

// Downloader fetches catalog models into a model directory.
type Downloader struct {
	client  *http.Client
	timeout time.Duration
}

// NewDownloader builds a downloader using the default HTTP client.
func NewDownloader() *Downloader {
	return &Downloader{client: http.DefaultClient, timeout: DefaultTimeout}
}

// NewDownloaderForTests builds a downloader with an injected client.
func NewDownloaderForTests(client *http.Client, timeout time.Duration) *Downloader {
	return &Downloader{client: client, timeout: timeout}
}

// Download stores the model with the given ID under modelDir and returns its path.
func (d *Downloader) Download(ctx context.Context, id, modelDir string, progress ProgressFunc) (string, error) {
	model, ok := Lookup(id)
	if !ok {
		return "", fmt.Errorf("unknown model id: %s", strings.TrimSpace(id))
	}
	if strings.TrimSpace(modelDir) == "" {
		return "", fmt.Errorf("model directory is required")
	}

	target := filepath.Join(modelDir, model.FileName)
	if err := d.fetch(ctx, target, model.URL, progress); err != nil {
		return "", fmt.Errorf("download model %s: %w", model.Name, err)
	}
	return target, nil
}

// fetch streams sourceURL into a temp file next to destinationPath and renames it into place.
func (d *Downloader) fetch(ctx context.Context, destinationPath, sourceURL string, progress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "tube-transcriber")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	var dst io.Writer = file
	if progress != nil {
		dst = &countingWriter{w: file, total: resp.ContentLength, progress: progress}
	}

	_, copyErr := io.Copy(dst, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}

type countingWriter struct {
	w        io.Writer
	written  int64
	total    int64
	progress ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	c.progress(c.written, c.total)
	return n, err
}
