package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tube-transcriber/internal/command"
)

const sampleWhisperJSON = `{
  "result": {"language": "en"},
  "transcription": [
    {"offsets": {"from": 0, "to": 2500}, "text": " Hello there."},
    {"offsets": {"from": 2500, "to": 61000}, "text": " General Kenobi. "}
  ]
}`

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (command.Result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	if f.run == nil {
		return command.Result{}, nil
	}
	return f.run(ctx, name, args...)
}

// foundTool pretends every tool is installed.
func foundTool(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

// TestEngineTranscribeSuccessAutoLanguage checks the full happy path.
func TestEngineTranscribeSuccessAutoLanguage(t *testing.T) {
	root := t.TempDir()
	audioPath := filepath.Join(root, "temp_audio_1.mp3")
	modelDir := filepath.Join(root, "models")
	mustWriteFile(t, audioPath, "mp3")
	mustWriteFile(t, filepath.Join(modelDir, "ggml-base.bin"), "model")

	call := 0
	var whisperArgs []string
	var tempDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			call++
			switch call {
			case 1:
				if name != "ffmpeg-custom" {
					t.Fatalf("command 1 name = %q, want ffmpeg-custom", name)
				}
				outPath := args[len(args)-1]
				tempDir = filepath.Dir(outPath)
				mustWriteFile(t, outPath, "wav")
				return command.Result{}, nil
			case 2:
				if name != "whisper-custom" {
					t.Fatalf("command 2 name = %q, want whisper-custom", name)
				}
				whisperArgs = append([]string{}, args...)
				mustWriteFile(t, argValue(args, "-of")+".json", sampleWhisperJSON)
				return command.Result{Stderr: "whisper_full: auto-detected language: en (p = 0.973421)\n"}, nil
			default:
				t.Fatalf("unexpected command call: %d", call)
				return command.Result{}, nil
			}
		},
	}

	engine := NewEngineForTests(Config{
		FFmpegPath:  "ffmpeg-custom",
		WhisperPath: "whisper-custom",
		ModelDir:    modelDir,
	}, runner, foundTool, nil)

	session, err := engine.Load(context.Background(), "base")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session.ModelPath() != filepath.Join(modelDir, "ggml-base.bin") {
		t.Fatalf("model path = %q", session.ModelPath())
	}

	result, err := session.Transcribe(context.Background(), audioPath, "auto")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if call != 2 {
		t.Fatalf("command calls = %d, want 2", call)
	}
	if got := argValue(whisperArgs, "-l"); got != "auto" {
		t.Fatalf("language arg = %q, want auto", got)
	}
	if !hasArg(whisperArgs, "-oj") {
		t.Fatalf("expected -oj in args: %v", whisperArgs)
	}
	if result.FullText != "Hello there. General Kenobi." {
		t.Fatalf("full text = %q", result.FullText)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(result.Segments))
	}
	if result.Segments[1].Start != 2.5 || result.Segments[1].End != 61 {
		t.Fatalf("segment 2 = %+v", result.Segments[1])
	}
	if result.DetectedLanguage != "en" || result.LanguageConfidence != 0.973421 {
		t.Fatalf("language = %q (%v)", result.DetectedLanguage, result.LanguageConfidence)
	}
	if _, err := os.Stat(tempDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp dir cleanup, stat err = %v", err)
	}
}

// TestEngineTranscribeFFmpegFailureReturnsPreprocessingError checks conversion error path.
func TestEngineTranscribeFFmpegFailureReturnsPreprocessingError(t *testing.T) {
	root := t.TempDir()
	audioPath := filepath.Join(root, "clip.mp3")
	modelPath := filepath.Join(root, "model.bin")
	mustWriteFile(t, audioPath, "mp3")
	mustWriteFile(t, modelPath, "model")

	var cleaned string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			return command.Result{Stderr: "ffmpeg failed", ExitCode: 1}, errors.New("exit status 1")
		},
	}
	engine := NewEngineForTests(Config{ModelDir: root}, runner, foundTool, func(path string) error {
		cleaned = path
		return os.RemoveAll(path)
	})

	session, err := engine.Load(context.Background(), modelPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err = session.Transcribe(context.Background(), audioPath, "")
	if err == nil {
		t.Fatal("expected error")
	}

	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Stage != "preprocessing" {
		t.Fatalf("stage = %s, want preprocessing", cmdErr.Stage)
	}
	if cmdErr.Log.Command != "ffmpeg" || cmdErr.Log.ExitCode != 1 {
		t.Fatalf("command log = %+v", cmdErr.Log)
	}
	if strings.TrimSpace(cleaned) == "" {
		t.Fatal("expected temporary directory cleanup")
	}
}

// TestEngineTranscribeWhisperFailure checks the transcription error path.
func TestEngineTranscribeWhisperFailure(t *testing.T) {
	root := t.TempDir()
	audioPath := filepath.Join(root, "clip.mp3")
	mustWriteFile(t, audioPath, "mp3")
	mustWriteFile(t, filepath.Join(root, "ggml-tiny.bin"), "model")

	var tempDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			if name == "ffmpeg" {
				outPath := args[len(args)-1]
				tempDir = filepath.Dir(outPath)
				mustWriteFile(t, outPath, "wav")
				return command.Result{}, nil
			}
			return command.Result{Stderr: "whisper failed", ExitCode: 1}, errors.New("exit status 1")
		},
	}
	engine := NewEngineForTests(Config{ModelDir: root}, runner, foundTool, nil)

	session, err := engine.Load(context.Background(), "tiny")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err = session.Transcribe(context.Background(), audioPath, "ru")

	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Stage != "transcribing" {
		t.Fatalf("stage = %s, want transcribing", cmdErr.Stage)
	}
	if got := argValue(cmdErr.Log.Args, "-l"); got != "ru" {
		t.Fatalf("language arg = %q, want ru", got)
	}
	if _, statErr := os.Stat(tempDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("temp dir should be removed on failure, stat err = %v", statErr)
	}
}

// TestEngineTranscribeMissingJSON checks a whisper run that produced no output file.
func TestEngineTranscribeMissingJSON(t *testing.T) {
	root := t.TempDir()
	audioPath := filepath.Join(root, "clip.mp3")
	mustWriteFile(t, audioPath, "mp3")
	mustWriteFile(t, filepath.Join(root, "ggml-tiny.bin"), "model")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (command.Result, error) {
			if name == "ffmpeg" {
				mustWriteFile(t, args[len(args)-1], "wav")
			}
			return command.Result{}, nil
		},
	}
	session, err := NewEngineForTests(Config{ModelDir: root}, runner, foundTool, nil).Load(context.Background(), "tiny")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = session.Transcribe(context.Background(), audioPath, "")
	if err == nil || !strings.Contains(err.Error(), ".json file is missing") {
		t.Fatalf("error = %v, want missing json", err)
	}
}

// TestEngineTranscribeMissingAudio checks validation for an absent audio file.
func TestEngineTranscribeMissingAudio(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "ggml-tiny.bin"), "model")
	session, err := NewEngineForTests(Config{ModelDir: root}, &fakeRunner{}, foundTool, nil).Load(context.Background(), "tiny")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = session.Transcribe(context.Background(), filepath.Join(root, "missing.mp3"), "")
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) || cmdErr.Stage != "preprocessing" {
		t.Fatalf("error = %v, want preprocessing error", err)
	}
}

// TestEngineLoadMissingTool checks tool verification at load time.
func TestEngineLoadMissingTool(t *testing.T) {
	engine := NewEngineForTests(Config{ModelDir: t.TempDir()}, &fakeRunner{}, func(file string) (string, error) {
		if file == "whisper.cpp" {
			return "", errors.New("not found")
		}
		return file, nil
	}, nil)

	_, err := engine.Load(context.Background(), "base")
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *command.Error", err)
	}
	if cmdErr.Stage != "loading" || !strings.Contains(cmdErr.Message, "whisper.cpp") {
		t.Fatalf("unexpected error: %v", cmdErr)
	}
}

// TestEngineLoadUnknownModel checks a named model missing from the directory.
func TestEngineLoadUnknownModel(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "ggml-base.bin"), "model")

	_, err := NewEngineForTests(Config{ModelDir: dir}, &fakeRunner{}, foundTool, nil).Load(context.Background(), "large-v3")
	if err == nil || !strings.Contains(err.Error(), "ggml-large-v3.bin") {
		t.Fatalf("error = %v, want hint with expected file name", err)
	}
}

// TestEngineLoadFirstModelWhenUnnamed checks directory discovery.
func TestEngineLoadFirstModelWhenUnnamed(t *testing.T) {
	dir := t.TempDir()
	// lexical sort should pick this first.
	mustWriteFile(t, filepath.Join(dir, "a-small.gguf"), "model")
	mustWriteFile(t, filepath.Join(dir, "z-large.bin"), "model")
	mustWriteFile(t, filepath.Join(dir, "notes.txt"), "x")

	session, err := NewEngineForTests(Config{ModelDir: dir}, &fakeRunner{}, foundTool, nil).Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session.ModelPath() != filepath.Join(dir, "a-small.gguf") {
		t.Fatalf("model path = %q", session.ModelPath())
	}
}

// TestBuildFFmpegArgs verifies deterministic ffmpeg command arguments.
func TestBuildFFmpegArgs(t *testing.T) {
	args := buildFFmpegArgs("/in.mp3", "/tmp/out.wav")
	want := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", "/in.mp3",
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"/tmp/out.wav",
	}

	if len(args) != len(want) {
		t.Fatalf("args len = %d, want %d", len(args), len(want))
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// TestParseWhisperJSONEmpty verifies an empty transcription list.
func TestParseWhisperJSONEmpty(t *testing.T) {
	result, err := parseWhisperJSON([]byte(`{"result":{"language":"de"},"transcription":[]}`))
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if result.FullText != "" || len(result.Segments) != 0 || result.DetectedLanguage != "de" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := parseWhisperJSON([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
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

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
