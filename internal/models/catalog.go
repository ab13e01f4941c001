package models

import (
	"os"
	"path/filepath"
	"strings"

	"tube-transcriber/internal/domain"
)

// baseURL hosts the ggml conversions published by the whisper.cpp project.
const baseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var catalog = []domain.WhisperModelOption{
	preset("tiny.en", "Tiny (English)", "~75 MB", "Fastest, English-only model."),
	preset("tiny", "Tiny (Multilingual)", "~75 MB", "Fastest multilingual model."),
	preset("base.en", "Base (English)", "~142 MB", "Balanced speed/quality, English-only."),
	preset("base", "Base (Multilingual)", "~142 MB", "Balanced speed/quality, multilingual."),
	preset("small.en", "Small (English)", "~466 MB", "Higher quality, English-only."),
	preset("small", "Small (Multilingual)", "~466 MB", "Higher quality multilingual model."),
	preset("medium.en", "Medium (English)", "~1.5 GB", "High quality, English-only."),
	preset("medium", "Medium (Multilingual)", "~1.5 GB", "High quality multilingual model."),
	preset("large-v2", "Large v2", "~2.9 GB", "Very high quality multilingual model."),
	preset("large-v3", "Large v3", "~2.9 GB", "Latest large multilingual model."),
	preset("large-v3-turbo", "Large v3 Turbo", "~1.6 GB", "Faster large-v3 variant."),
}

// preset builds a catalog entry; the file name and URL follow from the ID.
func preset(id, name, size, description string) domain.WhisperModelOption {
	fileName := "ggml-" + id + ".bin"
	return domain.WhisperModelOption{
		ID:          id,
		Name:        name,
		FileName:    fileName,
		URL:         baseURL + fileName,
		SizeLabel:   size,
		Description: description,
	}
}

// Catalog returns a copy of the built-in whisper.cpp model presets.
func Catalog() []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(catalog))
	copy(models, catalog)
	return models
}

// Lookup returns the preset with the given ID.
func Lookup(id string) (domain.WhisperModelOption, bool) {
	id = strings.TrimSpace(id)
	for _, model := range catalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

// List returns the catalog with presets present in any of dirs marked downloaded.
func List(dirs ...string) []domain.WhisperModelOption {
	models := Catalog()
	markDownloaded(models, knownDirs(dirs))
	return models
}

// knownDirs cleans and dedupes candidate model directories, keeping order.
func knownDirs(dirs []string) []string {
	seen := map[string]struct{}{}
	result := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		p := strings.TrimSpace(dir)
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if clean == "." {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		result = append(result, clean)
	}
	return result
}

// markDownloaded flags models whose file exists in one of dirs.
func markDownloaded(models []domain.WhisperModelOption, dirs []string) {
	for i := range models {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, models[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			models[i].Downloaded = true
			models[i].LocalPath = candidate
			break
		}
	}
}
