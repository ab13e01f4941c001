package config

import (
	"os"
	"path/filepath"

	"tube-transcriber/internal/domain"
)

// AppDirName is the per-user state directory under $HOME.
const AppDirName = ".tube-transcriber"

// AppDir returns the per-user state directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, AppDirName)
}

// DefaultSettingsPath returns the settings file used when none is given.
func DefaultSettingsPath() string {
	return filepath.Join(AppDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelDir:        filepath.Join(AppDir(), "models"),
		ModelName:       "base",
		OutputDir:       filepath.Join(homeDir, "Documents", "Transcripts"),
		Language:        "auto",
		ContinueOnError: true,
		Concurrency:     1,
		LogLevel:        "info",
		HistoryPath:     filepath.Join(AppDir(), "history.db"),
	}
}

// Normalize fills empty fields of s from DefaultSettings.
func Normalize(s domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	if s.ModelDir == "" {
		s.ModelDir = defaults.ModelDir
	}
	if s.ModelName == "" {
		s.ModelName = defaults.ModelName
	}
	if s.OutputDir == "" {
		s.OutputDir = defaults.OutputDir
	}
	if s.Language == "" {
		s.Language = defaults.Language
	}
	if s.Concurrency <= 0 {
		s.Concurrency = defaults.Concurrency
	}
	if s.LogLevel == "" {
		s.LogLevel = defaults.LogLevel
	}
	if s.HistoryPath == "" {
		s.HistoryPath = defaults.HistoryPath
	}
	s.ModelDir = ExpandTilde(s.ModelDir)
	s.OutputDir = ExpandTilde(s.OutputDir)
	s.HistoryPath = ExpandTilde(s.HistoryPath)
	s.LogFile = ExpandTilde(s.LogFile)
	return s
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
