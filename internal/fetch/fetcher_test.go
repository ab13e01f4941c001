package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tube-transcriber/internal/command"
	"tube-transcriber/internal/domain"
)

// fakeRunner simulates yt-dlp invocations.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (command.Result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	return f.run(ctx, name, args...)
}

// materialize writes the file yt-dlp would produce for the -o template.
func materialize(t *testing.T, args []string, ext string) string {
	t.Helper()
	tmpl := argValue(args, "-o")
	path := strings.Replace(tmpl, "%(ext)s", ext, 1)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TestFetchSuccessReadsMetadata verifies title/duration and expected path.
func TestFetchSuccessReadsMetadata(t *testing.T) {
	dir := t.TempDir()
	var gotName string
	var gotArgs []string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		gotName = name
		gotArgs = args
		materialize(t, args, "mp3")
		return command.Result{Stdout: `{"title":"Go Concurrency Patterns","duration":1825.0}` + "\n"}, nil
	}}

	f := NewForTests(Config{YtDlpPath: "yt-dlp-custom"}, runner)
	res, err := f.Fetch(context.Background(), "https://youtu.be/f6kdp27TYZs", dir, 3)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotName != "yt-dlp-custom" {
		t.Fatalf("command = %q", gotName)
	}
	if got := argValue(gotArgs, "-o"); got != filepath.Join(dir, "temp_audio_3.%(ext)s") {
		t.Fatalf("output template = %q", got)
	}
	if gotArgs[len(gotArgs)-1] != "https://youtu.be/f6kdp27TYZs" {
		t.Fatalf("url arg = %q", gotArgs[len(gotArgs)-1])
	}
	if res.AudioPath != filepath.Join(dir, "temp_audio_3.mp3") {
		t.Fatalf("audio path = %q", res.AudioPath)
	}
	if res.Title != "Go Concurrency Patterns" || res.DurationSeconds != 1825 {
		t.Fatalf("metadata = %+v", res)
	}
}

// TestFetchMissingTitleUsesFallback verifies the Unknown_Video_{i} title.
func TestFetchMissingTitleUsesFallback(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		materialize(t, args, "mp3")
		return command.Result{Stdout: `{"duration":null}`}, nil
	}}

	res, err := NewForTests(Config{}, runner).Fetch(context.Background(), "youtu.be/x", dir, 7)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Title != "Unknown_Video_7" || res.DurationSeconds != 0 {
		t.Fatalf("metadata = %+v", res)
	}
}

// TestFetchFailureRemovesPartials verifies the error and leftover cleanup.
func TestFetchFailureRemovesPartials(t *testing.T) {
	dir := t.TempDir()
	var partial string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		partial = materialize(t, args, "webm.part")
		return command.Result{
			Stderr:   "WARNING: something\nERROR: [youtube] abc: Video unavailable\n",
			ExitCode: 1,
		}, errors.New("exit status 1")
	}}

	_, err := NewForTests(Config{}, runner).Fetch(context.Background(), "https://youtu.be/abc", dir, 1)
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Stage != "fetching" || cmdErr.Message != "[youtube] abc: Video unavailable" {
		t.Fatalf("unexpected error: %+v", cmdErr)
	}
	if _, statErr := os.Stat(partial); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial download should be removed, stat err = %v", statErr)
	}
}

// TestFetchMissingAudioAfterSuccess verifies the post-download existence check.
func TestFetchMissingAudioAfterSuccess(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
		return command.Result{Stdout: `{"title":"x"}`}, nil
	}}

	_, err := NewForTests(Config{}, runner).Fetch(context.Background(), "https://youtu.be/abc", t.TempDir(), 2)
	if err == nil || !strings.Contains(err.Error(), "audio file not found after download") {
		t.Fatalf("error = %v", err)
	}
}

// countingSource records fetch calls.
type countingSource struct {
	calls int
}

// Fetch counts and succeeds.
func (c *countingSource) Fetch(ctx context.Context, ref domain.VideoReference, destDir string, index int) (domain.FetchResult, error) {
	c.calls++
	return domain.FetchResult{}, nil
}

// TestNewThrottledZeroIntervalPassesThrough verifies no wrapper without an interval.
func TestNewThrottledZeroIntervalPassesThrough(t *testing.T) {
	src := &countingSource{}
	if got := NewThrottled(src, 0); got != Source(src) {
		t.Fatalf("expected passthrough, got %T", got)
	}
}

// TestThrottledHonorsCancellation verifies a cancelled wait surfaces as a fetch error.
func TestThrottledHonorsCancellation(t *testing.T) {
	src := &countingSource{}
	throttled := NewThrottled(src, time.Hour)

	if _, err := throttled.Fetch(context.Background(), "a", "", 1); err != nil {
		t.Fatalf("first fetch error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := throttled.Fetch(ctx, "b", "", 2); err == nil {
		t.Fatal("expected error for cancelled wait")
	}
	if src.calls != 1 {
		t.Fatalf("calls = %d, want 1", src.calls)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}
