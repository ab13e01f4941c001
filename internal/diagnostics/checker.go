package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tube-transcriber/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// IDs of the non-tool checks.
const (
	IDModel     = "model"
	IDOutputDir = "output_dir"
)

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := make([]domain.DiagnosticItem, 0, 6)
	for _, tool := range Tools(settings) {
		items = append(items, c.checkTool(tool.Name, tool.Path))
	}
	items = append(items,
		c.checkModel(settings.ModelDir, settings.ModelName),
		c.checkOutputDir(settings.OutputDir),
	)

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// Tool is one external executable a batch run depends on.
type Tool struct {
	Name string
	Path string
	Hint string
}

// Tools lists the executables configured in settings, defaulting to PATH names.
func Tools(settings domain.Settings) []Tool {
	pick := func(configured, fallback string) string {
		if p := strings.TrimSpace(configured); p != "" {
			return p
		}
		return fallback
	}
	return []Tool{
		{Name: "yt-dlp", Path: pick(settings.YtDlpPath, "yt-dlp"), Hint: "Install yt-dlp (pip install -U yt-dlp, brew install yt-dlp or winget install yt-dlp)."},
		{Name: "ffmpeg", Path: pick(settings.FFmpegPath, "ffmpeg"), Hint: "Install ffmpeg from your package manager."},
		{Name: "ffprobe", Path: pick(settings.FFprobePath, "ffprobe"), Hint: "ffprobe ships with ffmpeg."},
		{Name: "whisper.cpp", Path: pick(settings.WhisperPath, "whisper.cpp"), Hint: "Build whisper.cpp and expose whisper-cli as whisper.cpp on PATH, or set whisperPath in settings."},
	}
}

// ToolID returns the diagnostic item ID for a tool name.
func ToolID(name string) string {
	return "tool_" + name
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name, path string) domain.DiagnosticItem {
	hint := "Install it and ensure the binary is available on PATH before starting a batch."
	for _, tool := range Tools(domain.Settings{}) {
		if tool.Name == name {
			hint = tool.Hint
		}
	}

	resolved, err := c.lookPath(path)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      ToolID(name),
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", path),
			Hint:    hint,
		}
	}

	return domain.DiagnosticItem{
		ID:      ToolID(name),
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", resolved),
	}
}

// checkModel validates that the configured model exists in the model directory.
func (c *Checker) checkModel(modelDir, modelName string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDModel,
		Name: "Whisper model",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set a directory containing whisper.cpp models."
		return item
	}

	info, err := c.stat(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model directory does not exist: %s", modelDir)
		} else {
			item.Message = fmt.Sprintf("Cannot access model directory: %s", modelDir)
		}
		item.Hint = downloadHint(modelName)
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelDir)
		return item
	}

	entries, err := c.readDir(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelDir)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	name := strings.TrimSpace(modelName)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name != "" && matchesModelName(entry.Name(), name) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model %q found: %s", name, filepath.Join(modelDir, entry.Name()))
			return item
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if name == "" && (ext == ".bin" || ext == ".gguf") {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelDir)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	if name != "" {
		item.Message = fmt.Sprintf("Model %q not found in: %s", name, modelDir)
	} else {
		item.Message = fmt.Sprintf("No model files found in directory: %s", modelDir)
	}
	item.Hint = downloadHint(modelName)
	return item
}

// matchesModelName reports whether file is a stored copy of model name.
func matchesModelName(file, name string) bool {
	switch file {
	case "ggml-" + name + ".bin", name + ".bin", name + ".gguf", name:
		return true
	default:
		return false
	}
}

// downloadHint tells the user how to fetch a missing model.
func downloadHint(modelName string) string {
	if strings.TrimSpace(modelName) == "" {
		return "Download a whisper.cpp model with `tube-transcriber models download <name>`."
	}
	return fmt.Sprintf("Download it with `tube-transcriber models download %s`.", modelName)
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where transcript files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for transcripts."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
