package jobs

import (
	"sync"
	"time"

	"tube-transcriber/internal/domain"
)

// EventType classifies messages emitted during a batch run.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeItem   EventType = "item"
	EventTypeLog    EventType = "log"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq          int64                 `json:"seq"`
	Timestamp    time.Time             `json:"timestamp"`
	RunID        string                `json:"runId"`
	Type         EventType             `json:"type"`
	Status       domain.RunStatus      `json:"status,omitempty"`
	Index        int                   `json:"index,omitempty"`
	Reference    domain.VideoReference `json:"reference,omitempty"`
	Stage        domain.ItemStage      `json:"stage,omitempty"`
	Message      string                `json:"message,omitempty"`
	Succeeded    int                   `json:"succeeded,omitempty"`
	Failed       int                   `json:"failed,omitempty"`
	CombinedPath string                `json:"combinedPath,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	listeners []func(Event)
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Subscribe registers fn to receive every published event.
func (b *EventBus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	listeners := append([]func(Event){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LogSink publishes progress lines for runID as log events.
type LogSink struct {
	bus   *EventBus
	runID string
}

// NewLogSink returns a progress sink backed by bus.
func NewLogSink(bus *EventBus, runID string) *LogSink {
	return &LogSink{bus: bus, runID: runID}
}

// Notify publishes one progress line.
func (s *LogSink) Notify(message string) {
	s.bus.Publish(Event{RunID: s.runID, Type: EventTypeLog, Message: message})
}

// StageRecorder applies item transitions to a Manager and mirrors them on a bus.
type StageRecorder struct {
	manager *Manager
	bus     *EventBus
}

// NewStageRecorder links a manager and a bus.
func NewStageRecorder(manager *Manager, bus *EventBus) *StageRecorder {
	return &StageRecorder{manager: manager, bus: bus}
}

// ItemStage records one transition; invalid transitions become error events.
func (r *StageRecorder) ItemStage(runID string, index int, ref domain.VideoReference, stage domain.ItemStage) {
	if err := r.manager.Advance(index, ref, stage); err != nil {
		r.bus.Publish(Event{RunID: runID, Type: EventTypeError, Index: index, Reference: ref, Message: err.Error()})
		return
	}
	r.bus.Publish(Event{RunID: runID, Type: EventTypeItem, Index: index, Reference: ref, Stage: stage})
}
