package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tube-transcriber/internal/command"
	"tube-transcriber/internal/domain"
)

const stageFetching = "fetching"

// Source produces a local audio asset for one reference.
type Source interface {
	Fetch(ctx context.Context, ref domain.VideoReference, destDir string, index int) (domain.FetchResult, error)
}

// Config names the yt-dlp binary and audio settings.
type Config struct {
	YtDlpPath    string
	AudioQuality string
}

// Fetcher downloads audio through a yt-dlp subprocess.
type Fetcher struct {
	ytDlpPath    string
	audioQuality string
	runner       command.Runner
	stat         func(name string) (os.FileInfo, error)
	glob         func(pattern string) ([]string, error)
	remove       func(name string) error
}

// New constructs the production fetcher with OS dependencies.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		ytDlpPath:    "yt-dlp",
		audioQuality: "192K",
		runner:       &command.ExecRunner{},
		stat:         os.Stat,
		glob:         filepath.Glob,
		remove:       os.Remove,
	}
	if p := strings.TrimSpace(cfg.YtDlpPath); p != "" {
		f.ytDlpPath = p
	}
	if q := strings.TrimSpace(cfg.AudioQuality); q != "" {
		f.audioQuality = q
	}
	return f
}

// NewForTests constructs a fetcher with an injectable runner.
func NewForTests(cfg Config, runner command.Runner) *Fetcher {
	f := New(cfg)
	f.runner = runner
	return f
}

// AudioPath returns where the mp3 for item index lands inside destDir.
func AudioPath(destDir string, index int) string {
	return filepath.Join(destDir, fmt.Sprintf("temp_audio_%d.mp3", index))
}

// outputTemplate returns the yt-dlp -o template for item index.
func outputTemplate(destDir string, index int) string {
	return filepath.Join(destDir, fmt.Sprintf("temp_audio_%d.%%(ext)s", index))
}

// videoInfo is the subset of yt-dlp's info JSON we read.
type videoInfo struct {
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
}

// Fetch downloads ref as mp3 into destDir and reads its title and duration.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.VideoReference, destDir string, index int) (domain.FetchResult, error) {
	args := buildYtDlpArgs(string(ref), outputTemplate(destDir, index), f.audioQuality)
	res, runErr := f.runner.Run(ctx, f.ytDlpPath, args...)
	log := command.NewLog(f.ytDlpPath, args, res)
	if runErr != nil {
		f.removePartials(destDir, index)
		return domain.FetchResult{}, &command.Error{
			Stage:   stageFetching,
			Message: downloadFailureMessage(res.Stderr),
			Log:     log,
			Err:     runErr,
		}
	}

	audioPath := AudioPath(destDir, index)
	if _, err := f.stat(audioPath); err != nil {
		f.removePartials(destDir, index)
		return domain.FetchResult{}, &command.Error{
			Stage:   stageFetching,
			Message: "audio file not found after download",
			Log:     log,
			Err:     err,
		}
	}

	result := domain.FetchResult{
		AudioPath: audioPath,
		Title:     fmt.Sprintf("Unknown_Video_%d", index),
	}
	var info videoInfo
	if line := command.LastLine(res.Stdout); line != "" && json.Unmarshal([]byte(line), &info) == nil {
		if title := strings.TrimSpace(info.Title); title != "" {
			result.Title = title
		}
		if info.Duration != nil && *info.Duration > 0 {
			result.DurationSeconds = *info.Duration
		}
	}
	return result, nil
}

// removePartials deletes whatever yt-dlp left behind for item index.
func (f *Fetcher) removePartials(destDir string, index int) {
	matches, err := f.glob(filepath.Join(destDir, fmt.Sprintf("temp_audio_%d.*", index)))
	if err != nil {
		return
	}
	for _, path := range matches {
		_ = f.remove(path)
	}
}

// downloadFailureMessage picks the most useful line from yt-dlp stderr.
func downloadFailureMessage(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if line := command.LastLine(stderr); line != "" {
		return line
	}
	return "yt-dlp download failed"
}

// buildYtDlpArgs builds yt-dlp args for single-video mp3 extraction.
func buildYtDlpArgs(url, outTemplate, quality string) []string {
	return []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", quality,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--no-simulate",
		"--dump-json",
		"-o", outTemplate,
		url,
	}
}

// Throttled spaces out downloads so consecutive items do not hammer the host.
type Throttled struct {
	next    Source
	limiter *rate.Limiter
}

// NewThrottled wraps next with a limiter allowing one fetch per interval.
func NewThrottled(next Source, interval time.Duration) Source {
	if interval <= 0 {
		return next
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Fetch waits for the limiter and then delegates.
func (t *Throttled) Fetch(ctx context.Context, ref domain.VideoReference, destDir string, index int) (domain.FetchResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return domain.FetchResult{}, &command.Error{
			Stage:   stageFetching,
			Message: "waiting for download slot",
			Err:     err,
		}
	}
	return t.next.Fetch(ctx, ref, destDir, index)
}
