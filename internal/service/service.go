package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/fetch"
	"tube-transcriber/internal/transcribe"
	"tube-transcriber/internal/urls"
	"tube-transcriber/internal/writer"
)

// Runner executes one batch over already validated references.
type Runner interface {
	Run(ctx context.Context, refs []domain.VideoReference, opts domain.BatchOptions, progress batch.ProgressSink) (domain.RunReport, error)
}

// HistoryStore records finished runs.
type HistoryStore interface {
	Save(ctx context.Context, rep domain.RunReport) error
}

// Options wires a Service.
type Options struct {
	Settings domain.Settings
	Logger   *slog.Logger
	History  HistoryStore
	Observer batch.StageObserver
}

// Request is one batch submission from any front end.
type Request struct {
	// Text is free-form input holding one or more URLs.
	Text string
	// URL, when set, runs single-URL mode and Text is ignored.
	URL     string
	Options domain.BatchOptions
}

// Result is what a front end gets back from RunBatch.
type Result struct {
	Selection urls.Selection   `json:"selection"`
	Report    domain.RunReport `json:"report"`
}

// Service is the composition root shared by the CLI, desktop shell and MCP server.
type Service struct {
	settings domain.Settings
	runner   Runner
	history  HistoryStore
	logger   *slog.Logger
}

// New builds the production pipeline from settings.
func New(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval, err := ParseFetchInterval(opts.Settings.FetchInterval)
	if err != nil {
		return nil, err
	}

	engine := transcribe.NewEngine(transcribe.Config{
		FFmpegPath:  opts.Settings.FFmpegPath,
		WhisperPath: opts.Settings.WhisperPath,
		ModelDir:    opts.Settings.ModelDir,
	})
	loader := batch.LoaderFunc(func(ctx context.Context, modelName string) (batch.Transcriber, error) {
		session, err := engine.Load(ctx, modelName)
		if err != nil {
			return nil, err
		}
		logger.Debug("model loaded", "model", modelName, "path", session.ModelPath())
		return session, nil
	})

	orchestrator := batch.New(batch.Deps{
		Fetcher:  fetch.NewThrottled(fetch.New(fetch.Config{YtDlpPath: opts.Settings.YtDlpPath}), interval),
		Loader:   loader,
		Writer:   writer.New(),
		Observer: opts.Observer,
		Logger:   logger,
	})
	return NewWithRunner(opts.Settings, orchestrator, opts.History, logger), nil
}

// NewWithRunner builds a service around an existing runner.
func NewWithRunner(settings domain.Settings, runner Runner, history HistoryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{settings: settings, runner: runner, history: history, logger: logger}
}

// ParseFetchInterval parses the minimum gap between downloads; empty means none.
func ParseFetchInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch interval %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid fetch interval %q: must not be negative", raw)
	}
	return d, nil
}

// Settings returns the settings the service was built from.
func (s *Service) Settings() domain.Settings {
	return s.settings
}

// DefaultOptions returns batch options taken from settings.
func (s *Service) DefaultOptions() domain.BatchOptions {
	return s.settings.BatchOptions()
}

// Select parses the request input into validated references.
func Select(req Request) (urls.Selection, error) {
	if strings.TrimSpace(req.URL) != "" {
		return urls.ParseSingle(req.URL)
	}
	return urls.Parse(req.Text)
}

// RunBatch parses the request, runs the batch and records it in history.
func (s *Service) RunBatch(ctx context.Context, req Request, progress batch.ProgressSink) (Result, error) {
	if progress == nil {
		progress = batch.Discard
	}

	sel, err := Select(req)
	for _, line := range sel.Skipped {
		progress.Notify(fmt.Sprintf("Skipping unrecognized input: %s", line))
	}
	for _, ref := range sel.Rejected {
		progress.Notify(fmt.Sprintf("Skipping invalid URL: %s", ref))
	}
	if err != nil {
		progress.Notify(fmt.Sprintf("Error: %v", err))
		return Result{Selection: sel}, err
	}

	opts := req.Options
	if strings.TrimSpace(opts.ModelName) == "" {
		opts.ModelName = s.settings.ModelName
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = s.settings.OutputDir
	}

	rep, err := s.runner.Run(ctx, sel.References, opts, progress)
	if err != nil {
		var setupErr *batch.SetupError
		if errors.As(err, &setupErr) {
			progress.Notify(fmt.Sprintf("Error: %v", setupErr))
		}
		return Result{Selection: sel}, err
	}

	if s.history != nil {
		// History failures only warn.
		if err := s.history.Save(context.WithoutCancel(ctx), rep); err != nil {
			s.logger.Warn("history save failed", "run_id", rep.RunID, "error", err)
			progress.Notify(fmt.Sprintf("Warning: could not record run history: %v", err))
		}
	}
	return Result{Selection: sel, Report: rep}, nil
}
