package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/jobs"
	"tube-transcriber/internal/models"
)

// modelDownloader fetches one catalog model into a directory.
type modelDownloader interface {
	Download(ctx context.Context, id, modelDir string, progress models.ProgressFunc) (string, error)
}

func newModelDownloader() modelDownloader {
	return models.NewDownloader()
}

// GetWhisperModels returns built-in whisper.cpp model presets for one-click downloads.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	dirs := []string{}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, localModelsDir(homeDir))
	}
	if settings, err := a.loadSettings(); err == nil {
		dirs = append([]string{settings.ModelDir}, dirs...)
	}
	return models.List(dirs...)
}

// DownloadWhisperModel downloads a catalog model, selects it in settings and refreshes diagnostics.
func (a *App) DownloadWhisperModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("model id is required")
	}
	model, found := models.Lookup(id)
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown model id: %s", id)
	}

	settings, err := a.loadSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	path, err := a.downloadModel(settings.ModelDir, model)
	if err != nil {
		return domain.Settings{}, err
	}
	a.log().Info("model downloaded", "model", model.ID, "path", path)

	settings.ModelName = model.ID
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

// downloadModel downloads model into modelDir, publishing progress every ten percent.
func (a *App) downloadModel(modelDir string, model domain.WhisperModelOption) (string, error) {
	lastDecile := int64(-1)
	progress := func(written, total int64) {
		if total <= 0 {
			return
		}
		decile := written * 10 / total
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeLog,
			Message: fmt.Sprintf("Downloading %s: %d%%", model.Name, decile*10),
		})
	}

	path, err := a.downloader.Download(context.Background(), model.ID, modelDir, progress)
	if err != nil {
		return "", err
	}
	return path, nil
}
