package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tube-transcriber/internal/diagnostics"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/jobs"
	"tube-transcriber/internal/models"
)

// fakeDownloader writes a placeholder model file instead of fetching one.
type fakeDownloader struct {
	ids []string
}

func (d *fakeDownloader) Download(_ context.Context, id, modelDir string, progress models.ProgressFunc) (string, error) {
	d.ids = append(d.ids, id)
	model, _ := models.Lookup(id)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(modelDir, model.FileName)
	if progress != nil {
		progress(50, 100)
		progress(100, 100)
	}
	return path, os.WriteFile(path, []byte("model"), 0o644)
}

// TestInstallOrFixOutputDirCreatesDirectory ensures output dir fix creates missing directories.
func TestInstallOrFixOutputDirCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "nested", "transcripts")

	settings := domain.Settings{
		OutputDir: outputDir,
		Language:  "auto",
	}
	fixed, changed, err := installOrFixOutputDir(settings)
	if err != nil {
		t.Fatalf("fix output dir: %v", err)
	}
	if changed {
		t.Fatal("expected settings to remain unchanged")
	}
	if fixed.OutputDir != outputDir {
		t.Fatalf("OutputDir = %s, want %s", fixed.OutputDir, outputDir)
	}
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("stat output dir: %v", err)
	}
}

// TestInstallOrFixDiagnosticDownloadsConfiguredModel checks the model fix path.
func TestInstallOrFixDiagnosticDownloadsConfiguredModel(t *testing.T) {
	downloader := &fakeDownloader{}
	app := newTestApp(t, nil)
	app.downloader = downloader

	if _, err := app.InstallOrFixDiagnostic(diagnostics.IDModel); err != nil {
		t.Fatalf("fix model: %v", err)
	}
	if len(downloader.ids) != 1 || downloader.ids[0] != "base" {
		t.Fatalf("downloaded = %v, want [base]", downloader.ids)
	}
	assertEventTypeExists(t, app.RunEvents(0), jobs.EventTypeLog)
}

// TestInstallOrFixDiagnosticFallsBackForUnknownModel picks the fallback preset.
func TestInstallOrFixDiagnosticFallsBackForUnknownModel(t *testing.T) {
	downloader := &fakeDownloader{}
	app := newTestApp(t, nil)
	app.downloader = downloader
	store := app.Store.(*fakeStore)
	store.settings.ModelName = "custom-finetune"

	if _, err := app.InstallOrFixDiagnostic(diagnostics.IDModel); err != nil {
		t.Fatalf("fix model: %v", err)
	}
	if len(downloader.ids) != 1 || downloader.ids[0] != fallbackModelID {
		t.Fatalf("downloaded = %v, want [%s]", downloader.ids, fallbackModelID)
	}
	if len(store.saved) != 1 || store.saved[0].ModelName != fallbackModelID {
		t.Fatalf("saved = %+v, want model %s", store.saved, fallbackModelID)
	}
}

// TestInstallOrFixDiagnosticToolReturnsHint checks that tools are not installed automatically.
func TestInstallOrFixDiagnosticToolReturnsHint(t *testing.T) {
	app := newTestApp(t, nil)

	_, err := app.InstallOrFixDiagnostic(diagnostics.ToolID("yt-dlp"))
	if err == nil {
		t.Fatal("expected error for tool item")
	}
	if !strings.Contains(err.Error(), "installed manually") {
		t.Fatalf("error = %v, want manual install hint", err)
	}
}

// TestInstallOrFixDiagnosticRejectsUnknownID validates item IDs.
func TestInstallOrFixDiagnosticRejectsUnknownID(t *testing.T) {
	app := newTestApp(t, nil)
	if _, err := app.InstallOrFixDiagnostic("tool_nope"); err == nil {
		t.Fatal("expected error for unknown item")
	}
	if _, err := app.InstallOrFixDiagnostic(" "); err == nil {
		t.Fatal("expected error for empty item")
	}
}

// TestEnsureLocalBinOnPATHPrependsOnce checks PATH is not extended twice.
func TestEnsureLocalBinOnPATHPrependsOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("second call: %v", err)
	}

	entries := filepath.SplitList(os.Getenv("PATH"))
	if len(entries) != 2 || entries[0] != localBinDir(home) {
		t.Fatalf("PATH entries = %v, want local bin then /usr/bin", entries)
	}
}
