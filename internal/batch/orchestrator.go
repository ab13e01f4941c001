package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/report"
	"tube-transcriber/internal/writer"
)

// Fetcher produces a local audio asset for one reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref domain.VideoReference, destDir string, index int) (domain.FetchResult, error)
}

// Transcriber is a loaded engine that transcribes one audio asset per call.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (domain.TranscriptionResult, error)
}

// EngineLoader loads the transcription model once per run.
type EngineLoader interface {
	Load(ctx context.Context, modelName string) (Transcriber, error)
}

// LoaderFunc adapts a function to EngineLoader.
type LoaderFunc func(ctx context.Context, modelName string) (Transcriber, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, modelName string) (Transcriber, error) {
	return f(ctx, modelName)
}

// Writer persists individual and combined artifacts.
type Writer interface {
	WriteIndividual(result domain.TranscriptionResult, title string, ref domain.VideoReference, opts domain.BatchOptions) (string, error)
	WriteCombined(outputDir string, items []writer.CombinedItem, at time.Time) (string, error)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Fetcher  Fetcher
	Loader   EngineLoader
	Writer   Writer
	Observer StageObserver
	Logger   *slog.Logger
}

// Orchestrator runs batches of references through fetch, transcribe and write.
type Orchestrator struct {
	fetcher   Fetcher
	loader    EngineLoader
	writer    Writer
	observer  StageObserver
	logger    *slog.Logger
	now       func() time.Time
	newRunID  func() string
	mkdirAll  func(path string, perm os.FileMode) error
	mkdirTemp func(dir, pattern string) (string, error)
	remove    func(name string) error
	removeAll func(path string) error
}

// New constructs an orchestrator with OS dependencies.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:   deps.Fetcher,
		loader:    deps.Loader,
		writer:    deps.Writer,
		observer:  deps.Observer,
		logger:    logger,
		now:       time.Now,
		newRunID:  NewRunID,
		mkdirAll:  os.MkdirAll,
		mkdirTemp: os.MkdirTemp,
		remove:    os.Remove,
		removeAll: os.RemoveAll,
	}
}

// NewForTests constructs an orchestrator with injectable clock, run ids and file removal.
func NewForTests(
	deps Deps,
	now func() time.Time,
	newRunID func() string,
	remove func(name string) error,
) *Orchestrator {
	o := New(deps)
	if now != nil {
		o.now = now
	}
	if newRunID != nil {
		o.newRunID = newRunID
	}
	if remove != nil {
		o.remove = remove
	}
	return o
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

type runIDKey struct{}

// WithRunID makes the next Run on ctx use runID instead of generating one.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// runIDFrom returns the run ID pinned on ctx, if any.
func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// runState is the mutable bookkeeping of one run.
type runState struct {
	id      string
	opts    domain.BatchOptions
	total   int
	workDir string
	engine  Transcriber
	sink    *guardedSink
	logger  *slog.Logger
}

// Run processes refs and returns the finalized report.
//
// Per-item failures are recorded as outcomes. Only domain.ErrNoValidReferences
// and *SetupError are returned as errors, and no report accompanies them.
func (o *Orchestrator) Run(
	ctx context.Context,
	refs []domain.VideoReference,
	opts domain.BatchOptions,
	progress ProgressSink,
) (domain.RunReport, error) {
	if len(refs) == 0 {
		return domain.RunReport{}, domain.ErrNoValidReferences
	}
	if progress == nil {
		progress = Discard
	}

	runID := runIDFrom(ctx)
	if runID == "" {
		runID = o.newRunID()
	}
	logger := o.logger.With("run_id", runID)
	sink := &guardedSink{next: progress, logger: logger}
	state := &runState{
		id:     runID,
		opts:   opts,
		total:  len(refs),
		sink:   sink,
		logger: logger,
	}

	if strings.TrimSpace(opts.OutputDir) == "" {
		return domain.RunReport{}, &SetupError{Cause: errors.New("output directory is required")}
	}
	if err := o.mkdirAll(opts.OutputDir, 0o755); err != nil {
		return domain.RunReport{}, &SetupError{Cause: fmt.Errorf("cannot create output directory %s: %w", opts.OutputDir, err)}
	}

	rep := domain.RunReport{
		RunID:     runID,
		StartedAt: o.now(),
		Options:   opts,
		Total:     len(refs),
	}

	sink.notifyf("Starting batch transcription for %d video(s)", len(refs))
	sink.notifyf("Using model: %s", opts.ModelName)
	if lang := opts.LanguageHint(); lang != "" {
		sink.notifyf("Language: %s", lang)
	}
	sink.notifyf("Output directory: %s", opts.OutputDir)
	sink.Notify(strings.Repeat("-", 50))
	logger.Info("batch started", "items", len(refs), "model", opts.ModelName, "output_dir", opts.OutputDir)

	workDir, err := o.mkdirTemp(opts.OutputDir, ".tube-transcriber-"+runID+"-")
	if err != nil {
		return domain.RunReport{}, &SetupError{Cause: fmt.Errorf("cannot create work directory: %w", err)}
	}
	state.workDir = workDir
	defer func() {
		if err := o.removeAll(workDir); err != nil {
			sink.notifyf("Warning: could not remove work directory %s: %v", workDir, err)
			logger.Warn("work directory cleanup failed", "path", workDir, "error", err)
		}
	}()

	sink.notifyf("Loading Whisper model '%s'...", opts.ModelName)
	engine, err := o.loader.Load(ctx, opts.ModelName)
	if err != nil {
		logger.Error("model load failed", "model", opts.ModelName, "error", err)
		return domain.RunReport{}, &SetupError{Cause: fmt.Errorf("cannot load transcription model %q: %w", opts.ModelName, err)}
	}
	state.engine = engine

	for i, ref := range refs {
		o.observe(state, i+1, ref, domain.ItemStagePending)
	}

	var combined []writer.CombinedItem
	if opts.Concurrency > 1 {
		rep.Outcomes, combined, rep.Stopped, rep.Cancelled = o.runPool(ctx, state, refs)
	} else {
		rep.Outcomes, combined, rep.Stopped, rep.Cancelled = o.runSequential(ctx, state, refs)
	}

	if opts.CombineOutputs && len(combined) > 0 {
		path, err := o.writer.WriteCombined(opts.OutputDir, combined, o.now())
		if err != nil {
			sink.notifyf("✗ Failed to write combined transcript: %v", err)
			logger.Error("combined write failed", "error", err)
		} else {
			rep.CombinedPath = path
			sink.notifyf("✓ Combined transcript saved: %s", filepath.Base(path))
		}
	}

	rep.FinishedAt = o.now()
	for _, line := range report.SummaryLines(rep) {
		sink.Notify(line)
	}
	logger.Info("batch finished",
		"succeeded", rep.SuccessCount(),
		"failed", rep.FailureCount(),
		"skipped", rep.Skipped(),
		"cancelled", rep.Cancelled,
		"duration", rep.Duration(),
	)
	return rep, nil
}

// runSequential processes refs one at a time in order.
func (o *Orchestrator) runSequential(
	ctx context.Context,
	state *runState,
	refs []domain.VideoReference,
) (outcomes []domain.ItemOutcome, combined []writer.CombinedItem, stopped, cancelled bool) {
	for i, ref := range refs {
		if ctx.Err() != nil {
			state.sink.Notify("Batch cancelled; remaining videos were not processed")
			return outcomes, combined, false, true
		}

		outcome, item := o.processItem(ctx, state, i+1, ref)
		outcomes = append(outcomes, outcome)
		if item != nil {
			combined = append(combined, *item)
		}

		if ctx.Err() != nil && i < len(refs)-1 {
			state.sink.Notify("Batch cancelled; remaining videos were not processed")
			return outcomes, combined, false, true
		}
		if !outcome.Succeeded() && !state.opts.ContinueOnError {
			state.sink.Notify("Stopping batch processing due to error")
			return outcomes, combined, i < len(refs)-1, false
		}
	}
	return outcomes, combined, false, false
}

// runPool processes refs with at most opts.Concurrency items in flight.
func (o *Orchestrator) runPool(
	ctx context.Context,
	state *runState,
	refs []domain.VideoReference,
) (outcomes []domain.ItemOutcome, combined []writer.CombinedItem, stopped, cancelled bool) {
	var (
		mu      sync.Mutex
		results = make([]*domain.ItemOutcome, len(refs))
		items   = make([]*writer.CombinedItem, len(refs))
		halt    atomic.Bool
		g       errgroup.Group
	)
	g.SetLimit(state.opts.Concurrency)

	for i, ref := range refs {
		if halt.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if halt.Load() || ctx.Err() != nil {
				return nil
			}
			outcome, item := o.processItem(ctx, state, i+1, ref)

			mu.Lock()
			results[i] = &outcome
			items[i] = item
			mu.Unlock()

			if !outcome.Succeeded() && !state.opts.ContinueOnError {
				if !halt.Swap(true) {
					state.sink.Notify("Stopping batch processing due to error")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range refs {
		if results[i] != nil {
			outcomes = append(outcomes, *results[i])
		}
		if items[i] != nil {
			combined = append(combined, *items[i])
		}
	}

	skipped := len(outcomes) < len(refs)
	switch {
	case ctx.Err() != nil && skipped:
		state.sink.Notify("Batch cancelled; remaining videos were not processed")
		return outcomes, combined, false, true
	case halt.Load():
		return outcomes, combined, skipped, false
	default:
		return outcomes, combined, false, false
	}
}

// processItem drives one reference through fetch, transcribe and write.
func (o *Orchestrator) processItem(
	ctx context.Context,
	state *runState,
	index int,
	ref domain.VideoReference,
) (outcome domain.ItemOutcome, item *writer.CombinedItem) {
	sink := state.sink
	logger := state.logger.With("index", index, "reference", string(ref))
	kind := domain.FailureFetch

	defer func() {
		if r := recover(); r != nil {
			logger.Error("item panicked", "panic", fmt.Sprint(r))
			outcome = o.fail(state, index, ref, &ItemError{
				Kind:      kind,
				Reference: ref,
				Cause:     fmt.Errorf("unexpected fault: %v", r),
			})
			item = nil
		}
	}()

	sink.Notify("")
	sink.notifyf("[%d/%d] Processing: %s", index, state.total, ref)

	itemDir := filepath.Join(state.workDir, fmt.Sprintf("item-%d", index))
	var audioPath string
	defer func() { o.release(state, ref, itemDir, audioPath) }()

	o.observe(state, index, ref, domain.ItemStageFetching)
	sink.Notify("Downloading audio...")
	if err := o.mkdirAll(itemDir, 0o755); err != nil {
		return o.fail(state, index, ref, o.itemError(ctx, domain.FailureFetch, ref, err)), nil
	}
	fetched, err := o.fetcher.Fetch(ctx, ref, itemDir, index)
	audioPath = fetched.AudioPath
	if err != nil {
		return o.fail(state, index, ref, o.itemError(ctx, domain.FailureFetch, ref, err)), nil
	}
	sink.notifyf("Downloaded: %s", fetched.Title)
	if fetched.DurationSeconds > 0 {
		sink.notifyf("Duration: %s", writer.FormatDuration(fetched.DurationSeconds))
	}

	kind = domain.FailureTranscription
	o.observe(state, index, ref, domain.ItemStageTranscribing)
	sink.Notify("Transcribing...")
	result, err := state.engine.Transcribe(ctx, fetched.AudioPath, state.opts.LanguageHint())
	if err != nil {
		return o.fail(state, index, ref, o.itemError(ctx, domain.FailureTranscription, ref, err)), nil
	}
	if result.DetectedLanguage != "" && state.opts.LanguageHint() == "" {
		logger.Info("language detected", "language", result.DetectedLanguage, "confidence", result.LanguageConfidence)
	}

	kind = domain.FailureWrite
	o.observe(state, index, ref, domain.ItemStageWriting)
	path, err := o.writer.WriteIndividual(result, fetched.Title, ref, state.opts)
	if err != nil {
		return o.fail(state, index, ref, &ItemError{Kind: domain.FailureWrite, Reference: ref, Cause: err}), nil
	}

	o.observe(state, index, ref, domain.ItemStageSucceeded)
	sink.notifyf("✓ Saved: %s", filepath.Base(path))
	logger.Info("item succeeded", "title", fetched.Title, "path", path)

	if state.opts.CombineOutputs {
		item = &writer.CombinedItem{Title: fetched.Title, Reference: ref, FullText: result.FullText}
	}
	return domain.SuccessOutcome(index, ref, fetched.Title, path), item
}

// itemError classifies err, attributing it to cancellation when ctx is done.
func (o *Orchestrator) itemError(ctx context.Context, kind domain.FailureKind, ref domain.VideoReference, err error) *ItemError {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		kind = domain.FailureCancelled
	}
	return &ItemError{Kind: kind, Reference: ref, Cause: err}
}

// fail records a failed item and returns its outcome.
func (o *Orchestrator) fail(state *runState, index int, ref domain.VideoReference, itemErr *ItemError) domain.ItemOutcome {
	o.observe(state, index, ref, domain.ItemStageFailed)
	state.sink.notifyf("✗ Failed to process %s: %s", ref, itemErr.Message())
	state.logger.Warn("item failed",
		"index", index,
		"reference", string(ref),
		"kind", string(itemErr.Kind),
		"error", itemErr.Cause,
	)
	return domain.FailureOutcome(index, ref, itemErr.Kind, itemErr.Message())
}

// release deletes the item's audio asset and scratch directory.
func (o *Orchestrator) release(state *runState, ref domain.VideoReference, itemDir, audioPath string) {
	var errs []error
	if audioPath != "" {
		if err := o.remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := o.removeAll(itemDir); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return
	}

	cleanupErr := &ItemError{Kind: domain.FailureCleanup, Reference: ref, Cause: errors.Join(errs...)}
	state.sink.notifyf("Warning: could not remove temporary audio for %s: %s", ref, cleanupErr.Message())
	state.logger.Warn("cleanup failed", "reference", string(ref), "error", cleanupErr)
}

// observe forwards a stage transition when an observer is configured.
func (o *Orchestrator) observe(state *runState, index int, ref domain.VideoReference, stage domain.ItemStage) {
	if o.observer != nil {
		o.observer.ItemStage(state.id, index, ref, stage)
	}
}
