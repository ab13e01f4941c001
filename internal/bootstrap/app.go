package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/config"
	"tube-transcriber/internal/diagnostics"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/history"
	"tube-transcriber/internal/jobs"
	"tube-transcriber/internal/report"
	"tube-transcriber/internal/service"
	"tube-transcriber/internal/urls"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// runEventName is the Wails event every jobs.Event is pushed under.
const runEventName = "run:event"

var urlListDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "URL lists",
		Pattern:     "*.txt;*.csv;*.list",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// batchRunner isolates the batch service behind an interface.
type batchRunner interface {
	RunBatch(ctx context.Context, req service.Request, progress batch.ProgressSink) (service.Result, error)
}

// runnerFactory builds a runner for the given settings and stage observer.
type runnerFactory func(settings domain.Settings, observer batch.StageObserver) (batchRunner, error)

// historyStore is the run history the desktop shell reads and writes.
type historyStore interface {
	service.HistoryStore
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, runID string) (domain.RunReport, error)
}

// App wires configuration, run state, the batch service and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Diagnostics domain.DiagnosticReport
	Logger      *slog.Logger

	newRunner  runnerFactory
	history    historyStore
	downloader modelDownloader
	assets     fs.FS
	checker    *diagnostics.Checker
	closeLog   func() error

	mu          sync.Mutex
	activeRunID string
	cancel      context.CancelFunc
	lastReport  *domain.RunReport
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil, "")
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS, settingsPath string) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	if err := config.LoadEnv(filepath.Join(config.AppDir(), ".env")); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	settings, store, err := config.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	logger, closeLog := config.SetupLogger(settings.LogFile, config.ParseLogLevel(settings.LogLevel))

	checker := diagnostics.NewChecker()
	app := &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Diagnostics: checker.Run(settings),
		Logger:      logger,
		downloader:  newModelDownloader(),
		assets:      assets,
		checker:     checker,
		closeLog:    closeLog,
		events:      jobs.NewEventBus(1000),
	}

	hist, err := history.Open(settings.HistoryPath)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		app.history = hist
	}

	app.newRunner = func(settings domain.Settings, observer batch.StageObserver) (batchRunner, error) {
		opts := service.Options{Settings: settings, Logger: app.log(), Observer: observer}
		if app.history != nil {
			opts.History = app.history
		}
		return service.New(opts)
	}
	app.events.Subscribe(app.emit)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Tube Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			cancel := a.cancel
			a.runtimeCtx = nil
			a.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			a.shutdown()
		},
		Bind: []interface{}{a},
	})
}

// shutdown releases the history database and log file.
func (a *App) shutdown() {
	if closer, ok := a.history.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log().Warn("close history", "error", err)
		}
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// log returns the app logger, falling back to the default one.
func (a *App) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if _, err := service.ParseFetchInterval(normalized.FetchInterval); err != nil {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// PickURLFile opens a native file dialog and returns the chosen file's text.
func (a *App) PickURLFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select URL list",
		Filters: urlListDialogFilter,
	})
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read URL list: %w", err)
	}
	return string(data), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.pickDirectory("Select model directory")
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// PreviewURLs parses batch input without starting a run.
func (a *App) PreviewURLs(rawText string) urls.Selection {
	sel, _ := urls.Parse(rawText)
	return sel
}

// StartBatch validates input, registers a run and processes it asynchronously.
// With single set, rawText is treated as one URL.
func (a *App) StartBatch(rawText string, single bool) (domain.Run, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Run{}, err
	}

	req := service.Request{Options: settings.BatchOptions()}
	if single {
		req.URL = rawText
	} else {
		req.Text = rawText
	}
	sel, err := service.Select(req)
	if err != nil {
		return domain.Run{}, err
	}

	runID := batch.NewRunID()
	if err := a.Jobs.Start(runID, len(sel.References)); err != nil {
		return domain.Run{}, err
	}

	ctx, cancel := context.WithCancel(batch.WithRunID(context.Background(), runID))
	a.mu.Lock()
	a.activeRunID = runID
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	a.publishStatus(runID, domain.RunStatusRunning, fmt.Sprintf("Batch started with %d video(s)", len(sel.References)))

	go a.runBatch(ctx, runID, req, settings)
	return a.Jobs.Current(), nil
}

// CancelBatch cancels the running batch, if any.
func (a *App) CancelBatch() error {
	a.mu.Lock()
	cancel := a.cancel
	activeRunID := a.activeRunID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoActiveRun) {
		return err
	}

	if activeRunID != "" {
		a.publishStatus(activeRunID, domain.RunStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Jobs.Current()
}

// RunItems returns the latest stage of every item in the current run.
func (a *App) RunItems() []jobs.ItemState {
	return a.Jobs.Items()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LastReport returns the report of the most recent finished run, or nil.
func (a *App) LastReport() *domain.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReport
}

// ListRuns returns recorded runs, newest first.
func (a *App) ListRuns(limit int) ([]history.Entry, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.List(context.Background(), limit)
}

// GetRun returns one recorded run.
func (a *App) GetRun(runID string) (domain.RunReport, error) {
	if a.history == nil {
		return domain.RunReport{}, history.ErrNotFound
	}
	return a.history.Get(context.Background(), runID)
}

// runBatch executes the batch and maps its outcome to run events.
func (a *App) runBatch(ctx context.Context, runID string, req service.Request, settings domain.Settings) {
	defer a.clearActiveRun(runID)

	runner, err := a.newRunner(settings, jobs.NewStageRecorder(a.Jobs, a.events))
	if err == nil {
		var res service.Result
		res, err = runner.RunBatch(ctx, req, jobs.NewLogSink(a.events, runID))
		if err == nil {
			a.finishRun(runID, res.Report)
			return
		}
	}

	a.log().Error("batch failed", "run_id", runID, "error", err)
	_ = a.Jobs.Finish(domain.RunStatusFailed)
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeError,
		Status:  domain.RunStatusFailed,
		Message: err.Error(),
	})
	a.publishStatus(runID, domain.RunStatusFailed, "Batch failed")
}

// finishRun records the report and publishes the result.
func (a *App) finishRun(runID string, rep domain.RunReport) {
	status := domain.RunStatusCompleted
	if rep.Cancelled {
		status = domain.RunStatusCancelled
	}
	_ = a.Jobs.Finish(status)

	a.mu.Lock()
	a.lastReport = &rep
	a.mu.Unlock()

	a.publishEvent(jobs.Event{
		RunID:        runID,
		Type:         jobs.EventTypeResult,
		Status:       status,
		Message:      report.Headline(rep),
		Succeeded:    rep.SuccessCount(),
		Failed:       rep.FailureCount(),
		CombinedPath: rep.CombinedPath,
	})
	a.publishStatus(runID, status, "Batch finished")
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history; subscribers forward it to the UI.
func (a *App) publishEvent(event jobs.Event) {
	a.events.Publish(event)
}

// emit pushes one event to the frontend when the runtime is up.
func (a *App) emit(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, runEventName, event)
	}
}

// clearActiveRun clears cancellation handles for finished run IDs.
func (a *App) clearActiveRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRunID == runID {
		a.activeRunID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// loadSettings reads the store and fills defaults.
func (a *App) loadSettings() (domain.Settings, error) {
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return normalizeSettings(settings), nil
}

// normalizeSettings trims user inputs and fills defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.ModelName = strings.TrimSpace(settings.ModelName)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.FetchInterval = strings.TrimSpace(settings.FetchInterval)
	return config.Normalize(settings)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
