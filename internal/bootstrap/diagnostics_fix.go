package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tube-transcriber/internal/config"
	"tube-transcriber/internal/diagnostics"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/models"
)

// fallbackModelID is downloaded when the configured model is not a catalog preset.
const fallbackModelID = "base"

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic item.
// Missing tools cannot be fixed from here; their install hint is returned as the error.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDModel:
		settings, settingsChanged, fixErr = a.installOrFixModel(settings)
	case diagnostics.IDOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	default:
		tool, ok := toolForID(settings, id)
		if !ok {
			return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
		}
		fixErr = fmt.Errorf("%s must be installed manually: %s", tool.Name, tool.Hint)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// toolForID finds the external tool a diagnostic item ID refers to.
func toolForID(settings domain.Settings, id string) (diagnostics.Tool, bool) {
	for _, tool := range diagnostics.Tools(settings) {
		if diagnostics.ToolID(tool.Name) == id {
			return tool, true
		}
	}
	return diagnostics.Tool{}, false
}

// installOrFixModel downloads the configured model, or the fallback preset when
// the configured name is not in the catalog.
func (a *App) installOrFixModel(settings domain.Settings) (domain.Settings, bool, error) {
	changed := false
	if strings.TrimSpace(settings.ModelDir) == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return settings, false, fmt.Errorf("resolve user home: %w", err)
		}
		settings.ModelDir = localModelsDir(homeDir)
		changed = true
	}

	model, found := models.Lookup(settings.ModelName)
	if !found {
		model, _ = models.Lookup(fallbackModelID)
		settings.ModelName = model.ID
		changed = true
	}

	if _, err := a.downloadModel(settings.ModelDir, model); err != nil {
		return settings, changed, fmt.Errorf("download model: %w", err)
	}
	return settings, changed, nil
}

func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}

// ensureLocalBinOnPATH prepends ~/.tube-transcriber/bin to PATH so tools dropped there are found.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, config.AppDirName, "bin")
}

func localModelsDir(homeDir string) string {
	return filepath.Join(homeDir, config.AppDirName, "models")
}
