package jobs

import (
	"errors"
	"fmt"
	"sync"

	"tube-transcriber/internal/domain"
)

// ErrRunAlreadyActive is returned when starting a second active run.
var ErrRunAlreadyActive = errors.New("batch run already active")

// ErrNoActiveRun is returned when cancel is requested for idle state.
var ErrNoActiveRun = errors.New("no active batch run")

// ItemState is the latest known stage of one batch item.
type ItemState struct {
	Index     int                   `json:"index"`
	Reference domain.VideoReference `json:"reference"`
	Stage     domain.ItemStage      `json:"stage"`
}

// Manager tracks the single allowed active run and its items' transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
	items   map[int]ItemState
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{Status: domain.RunStatusIdle},
		items:   map[int]ItemState{},
	}
}

// Start registers a new run and moves it to running state.
func (m *Manager) Start(runID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status == domain.RunStatusRunning {
		return ErrRunAlreadyActive
	}

	m.current = domain.Run{
		ID:     runID,
		Status: domain.RunStatusRunning,
		Total:  total,
	}
	m.items = map[int]ItemState{}
	return nil
}

// Advance validates and applies one item's stage transition.
func (m *Manager) Advance(index int, ref domain.VideoReference, stage domain.ItemStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return fmt.Errorf("cannot transition without an active run")
	}

	prev, seen := m.items[index]
	from := domain.ItemStage("")
	if seen {
		from = prev.Stage
	}
	if seen && from == stage {
		return nil
	}
	if !isValidTransition(from, stage) {
		return fmt.Errorf("invalid transition for item %d: %s -> %s", index, from, stage)
	}

	m.items[index] = ItemState{Index: index, Reference: ref, Stage: stage}
	if stage.Terminal() {
		m.current.Done++
	}
	return nil
}

// Finish moves the active run to a terminal status.
func (m *Manager) Finish(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current.Status {
	case domain.RunStatusRunning:
	case domain.RunStatusCancelled:
		// a cancel request already settled the outcome.
		return nil
	default:
		return ErrNoActiveRun
	}
	switch status {
	case domain.RunStatusCompleted, domain.RunStatusFailed, domain.RunStatusCancelled:
		m.current.Status = status
		return nil
	default:
		return fmt.Errorf("invalid final status: %s", status)
	}
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Items returns item states ordered by index.
func (m *Manager) Items() []ItemState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ItemState, 0, len(m.items))
	for i := 1; i <= m.current.Total; i++ {
		if item, ok := m.items[i]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Reset clears run metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
	m.items = map[int]ItemState{}
}

// IsRunning reports whether a run is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Status == domain.RunStatusRunning
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.RunStatusRunning {
		return ErrNoActiveRun
	}
	m.current.Status = domain.RunStatusCancelled
	return nil
}

// isValidTransition enforces the allowed item state machine edges.
func isValidTransition(from, to domain.ItemStage) bool {
	switch from {
	case "":
		return to == domain.ItemStagePending
	case domain.ItemStagePending:
		return to == domain.ItemStageFetching
	case domain.ItemStageFetching:
		return to == domain.ItemStageTranscribing || to == domain.ItemStageFailed
	case domain.ItemStageTranscribing:
		return to == domain.ItemStageWriting || to == domain.ItemStageFailed
	case domain.ItemStageWriting:
		return to == domain.ItemStageSucceeded || to == domain.ItemStageFailed
	default:
		return false
	}
}
