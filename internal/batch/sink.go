package batch

import (
	"fmt"
	"log/slog"
	"sync"

	"tube-transcriber/internal/domain"
)

// ProgressSink receives human-readable progress lines in chronological order.
type ProgressSink interface {
	Notify(message string)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(message string)

// Notify calls f.
func (f SinkFunc) Notify(message string) {
	f(message)
}

// Discard drops every message.
var Discard ProgressSink = SinkFunc(func(string) {})

// MultiSink fans each message out to every non-nil sink.
func MultiSink(sinks ...ProgressSink) ProgressSink {
	return SinkFunc(func(message string) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(message)
			}
		}
	})
}

// StageObserver is told about every per-item stage transition.
type StageObserver interface {
	ItemStage(runID string, index int, ref domain.VideoReference, stage domain.ItemStage)
}

// guardedSink serializes deliveries and keeps sink panics away from the run.
type guardedSink struct {
	mu     sync.Mutex
	next   ProgressSink
	logger *slog.Logger
}

// Notify forwards message, swallowing any panic raised by the sink.
func (g *guardedSink) Notify(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("progress sink panicked", "panic", fmt.Sprint(r))
		}
	}()
	g.next.Notify(message)
}

// notifyf formats and forwards one progress line.
func (g *guardedSink) notifyf(format string, args ...any) {
	g.Notify(fmt.Sprintf(format, args...))
}
