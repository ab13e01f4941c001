package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"tube-transcriber/internal/domain"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "TUBE_TRANSCRIBER_"

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overlays TUBE_TRANSCRIBER_* variables on s.
func ApplyEnv(s domain.Settings) domain.Settings {
	return applyEnv(s, os.Getenv)
}

// applyEnv overlays variables read through getenv.
func applyEnv(s domain.Settings, getenv func(string) string) domain.Settings {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(strings.TrimSpace(getenv(EnvPrefix + key))); err == nil {
			*dst = v
		}
	}

	str("MODEL", &s.ModelName)
	str("MODEL_DIR", &s.ModelDir)
	str("OUTPUT_DIR", &s.OutputDir)
	str("LANGUAGE", &s.Language)
	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FILE", &s.LogFile)
	str("HISTORY_DB", &s.HistoryPath)
	str("YT_DLP", &s.YtDlpPath)
	str("FFMPEG", &s.FFmpegPath)
	str("WHISPER", &s.WhisperPath)
	str("FETCH_INTERVAL", &s.FetchInterval)
	boolean("TIMESTAMPS", &s.IncludeTimestamps)
	boolean("COMBINE", &s.CombineOutputs)
	boolean("CONTINUE_ON_ERROR", &s.ContinueOnError)
	if n, err := strconv.Atoi(strings.TrimSpace(getenv(EnvPrefix + "CONCURRENCY"))); err == nil && n > 0 {
		s.Concurrency = n
	}
	return s
}

// Load reads settings from path, overlays the environment and fills defaults.
func Load(path string) (domain.Settings, Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultSettingsPath()
	}
	store := NewStore(ExpandTilde(path))
	s, err := store.Load()
	if err != nil {
		return domain.Settings{}, nil, err
	}
	return Normalize(ApplyEnv(s)), store, nil
}
