package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/jobs"
	"tube-transcriber/internal/service"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records the settings and makes them the next Load result.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = append(s.saved, settings)
	s.settings = settings
	return nil
}

// fakeRunner allows injecting custom run behavior per test.
type fakeRunner struct {
	observer batch.StageObserver
	run      func(ctx context.Context, req service.Request, observer batch.StageObserver, progress batch.ProgressSink) (service.Result, error)
}

func (r *fakeRunner) RunBatch(ctx context.Context, req service.Request, progress batch.ProgressSink) (service.Result, error) {
	if r.run == nil {
		return service.Result{}, nil
	}
	return r.run(ctx, req, r.observer, progress)
}

func newTestApp(t *testing.T, run func(ctx context.Context, req service.Request, observer batch.StageObserver, progress batch.ProgressSink) (service.Result, error)) *App {
	t.Helper()
	return &App{
		Store: &fakeStore{settings: domain.Settings{
			ModelDir:  t.TempDir(),
			ModelName: "base",
			OutputDir: t.TempDir(),
			Language:  "auto",
		}},
		Jobs: jobs.NewManager(),
		newRunner: func(_ domain.Settings, observer batch.StageObserver) (batchRunner, error) {
			return &fakeRunner{observer: observer, run: run}, nil
		},
		events: jobs.NewEventBus(100),
	}
}

const twoVideos = "https://youtu.be/dQw4w9WgXcQ\nhttps://www.youtube.com/watch?v=9bZkp7q19f0"

// TestStartBatchEnforcesSingleActiveRun checks the single-run guard.
func TestStartBatchEnforcesSingleActiveRun(t *testing.T) {
	app := newTestApp(t, func(ctx context.Context, req service.Request, _ batch.StageObserver, _ batch.ProgressSink) (service.Result, error) {
		<-ctx.Done()
		return service.Result{Report: domain.RunReport{Cancelled: true}}, nil
	})

	if _, err := app.StartBatch(twoVideos, false); err != nil {
		t.Fatalf("start first run: %v", err)
	}
	if _, err := app.StartBatch(twoVideos, false); !errors.Is(err, jobs.ErrRunAlreadyActive) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrRunAlreadyActive)
	}

	if err := app.CancelBatch(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, app, domain.RunStatusCancelled)
	waitForEvent(t, app, jobs.EventTypeResult)
}

// TestStartBatchRejectsInputWithoutURLs checks that nothing is registered for empty input.
func TestStartBatchRejectsInputWithoutURLs(t *testing.T) {
	app := newTestApp(t, nil)

	if _, err := app.StartBatch("just some notes", false); !errors.Is(err, domain.ErrNoValidReferences) {
		t.Fatalf("error = %v, want %v", err, domain.ErrNoValidReferences)
	}
	if got := app.CurrentRun().Status; got != domain.RunStatusIdle {
		t.Fatalf("status = %s, want idle", got)
	}
}

// TestStartBatchPublishesItemAndResultEvents checks event flow.
func TestStartBatchPublishesItemAndResultEvents(t *testing.T) {
	var app *App
	app = newTestApp(t, func(_ context.Context, _ service.Request, observer batch.StageObserver, progress batch.ProgressSink) (service.Result, error) {
		runID := app.CurrentRun().ID
		ref := domain.VideoReference("https://youtu.be/dQw4w9WgXcQ")
		for _, stage := range []domain.ItemStage{domain.ItemStagePending, domain.ItemStageFetching, domain.ItemStageTranscribing, domain.ItemStageWriting, domain.ItemStageSucceeded} {
			observer.ItemStage(runID, 0, ref, stage)
		}
		progress.Notify("[1/2] Fetching audio")
		return service.Result{Report: domain.RunReport{
			Total: 2,
			Outcomes: []domain.ItemOutcome{
				domain.SuccessOutcome(0, ref, "Never Gonna", "/tmp/out/Never Gonna.txt"),
			},
		}}, nil
	})

	run, err := app.StartBatch(twoVideos, false)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID")
	}

	waitForStatus(t, app, domain.RunStatusCompleted)
	waitForEvent(t, app, jobs.EventTypeResult)

	events := app.RunEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeItem)
	assertEventTypeExists(t, events, jobs.EventTypeLog)

	items := app.RunItems()
	if len(items) != 1 || items[0].Stage != domain.ItemStageSucceeded {
		t.Fatalf("items = %+v, want one succeeded item", items)
	}
	if rep := app.LastReport(); rep == nil || rep.SuccessCount() != 1 {
		t.Fatalf("last report = %+v, want one success", rep)
	}
}

// TestStartBatchSingleModeUsesURL checks that single mode fills the request URL.
func TestStartBatchSingleModeUsesURL(t *testing.T) {
	got := make(chan service.Request, 1)
	app := newTestApp(t, func(_ context.Context, req service.Request, _ batch.StageObserver, _ batch.ProgressSink) (service.Result, error) {
		got <- req
		return service.Result{}, nil
	})

	if _, err := app.StartBatch("https://youtu.be/dQw4w9WgXcQ", true); err != nil {
		t.Fatalf("start run: %v", err)
	}

	select {
	case req := <-got:
		if req.URL != "https://youtu.be/dQw4w9WgXcQ" || req.Text != "" {
			t.Fatalf("request = %+v, want URL only", req)
		}
		if req.Options.ModelName != "base" {
			t.Fatalf("model = %s, want base", req.Options.ModelName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not called")
	}
}

// TestStartBatchPublishesFailureEvents checks error path emissions.
func TestStartBatchPublishesFailureEvents(t *testing.T) {
	app := newTestApp(t, func(context.Context, service.Request, batch.StageObserver, batch.ProgressSink) (service.Result, error) {
		return service.Result{}, &batch.SetupError{Cause: errors.New("model not found")}
	})

	if _, err := app.StartBatch(twoVideos, false); err != nil {
		t.Fatalf("start run: %v", err)
	}

	waitForStatus(t, app, domain.RunStatusFailed)
	waitForEvent(t, app, jobs.EventTypeError)
	if app.LastReport() != nil {
		t.Fatal("expected no report for a failed setup")
	}
}

// TestCancelBatchWithoutRun returns ErrNoActiveRun.
func TestCancelBatchWithoutRun(t *testing.T) {
	app := newTestApp(t, nil)
	if err := app.CancelBatch(); !errors.Is(err, jobs.ErrNoActiveRun) {
		t.Fatalf("cancel error = %v, want %v", err, jobs.ErrNoActiveRun)
	}
}

// TestSaveSettingsRejectsBadFetchInterval checks validation before persisting.
func TestSaveSettingsRejectsBadFetchInterval(t *testing.T) {
	app := newTestApp(t, nil)
	store := app.Store.(*fakeStore)

	settings := store.settings
	settings.FetchInterval = "soon"
	if _, err := app.SaveSettings(settings); err == nil {
		t.Fatal("expected error for invalid fetch interval")
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved = %d, want 0", len(store.saved))
	}
}

// TestListRunsWithoutHistory returns nothing.
func TestListRunsWithoutHistory(t *testing.T) {
	app := newTestApp(t, nil)
	runs, err := app.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs = %d, want 0", len(runs))
	}
}

// waitForStatus polls until the run reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.RunStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentRun().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentRun().Status, want)
}

// waitForEvent polls until an event of the given type has been published.
func waitForEvent(t *testing.T, app *App, want jobs.EventType) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, event := range app.RunEvents(0) {
			if event.Type == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event type %s not found", want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
