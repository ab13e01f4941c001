package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestApplyEnvOverrides verifies environment variables win over file values.
func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TUBE_TRANSCRIBER_MODEL":             "medium",
		"TUBE_TRANSCRIBER_OUTPUT_DIR":        "/env/out",
		"TUBE_TRANSCRIBER_COMBINE":           "true",
		"TUBE_TRANSCRIBER_CONTINUE_ON_ERROR": "false",
		"TUBE_TRANSCRIBER_CONCURRENCY":       "3",
		"TUBE_TRANSCRIBER_TIMESTAMPS":        "not-a-bool",
	}

	got := applyEnv(DefaultSettings(), func(k string) string { return env[k] })
	if got.ModelName != "medium" || got.OutputDir != "/env/out" {
		t.Fatalf("string overrides not applied: %+v", got)
	}
	if !got.CombineOutputs || got.ContinueOnError {
		t.Fatalf("bool overrides not applied: %+v", got)
	}
	if got.Concurrency != 3 {
		t.Fatalf("concurrency = %d, want 3", got.Concurrency)
	}
	if got.IncludeTimestamps {
		t.Fatal("invalid bool should be ignored")
	}
}

// TestLoadEnvFile verifies .env loading and missing-file tolerance.
func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	mustWrite(t, path, "TUBE_TRANSCRIBER_TEST_ONLY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("TUBE_TRANSCRIBER_TEST_ONLY") })

	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("TUBE_TRANSCRIBER_TEST_ONLY"); got != "from-dotenv" {
		t.Fatalf("env = %q", got)
	}
}

// TestLoadNormalizesAndExpands verifies defaults fill gaps and ~ expands.
func TestLoadNormalizesAndExpands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	mustWrite(t, path, `{"outputDir":"~/tt-out","modelName":"","concurrency":0}`)

	got, store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := store.(*JSONStore); !ok {
		t.Fatalf("store = %T", store)
	}
	home, _ := os.UserHomeDir()
	if got.OutputDir != filepath.Join(home, "tt-out") {
		t.Fatalf("output dir = %q", got.OutputDir)
	}
	if got.ModelName != "base" || got.Concurrency != 1 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

// TestParseLogLevel verifies level names.
func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestSetupLoggerWithWriters verifies fanout to both handlers.
func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, slog.LevelInfo)

	logger.Info("batch started", "items", 3)

	if !strings.Contains(console.String(), "batch started") {
		t.Fatalf("console output = %q", console.String())
	}
	if !strings.Contains(file.String(), `"items":3`) {
		t.Fatalf("file output = %q", file.String())
	}
}

// TestSetupLoggerWritesFile verifies the file handler is attached.
func TestSetupLoggerWritesFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	logger, closeFn := SetupLoggerTo(&console, slog.LevelWarn, path, slog.LevelDebug)
	logger.Debug("hello")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file = %q", data)
	}
	if console.Len() != 0 {
		t.Fatalf("console should stay quiet below warn, got %q", console.String())
	}
}
