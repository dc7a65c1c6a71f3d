package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/catalog-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/catalog-backend/internal/domain/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	States     []StateEvent
	Conflicts  []string
	Retries    []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

type StateEvent struct {
	Name  string
	State domainagg.LinkState
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{
		Name:     name,
		Status:   status,
		Duration: dur,
	})
}

func (h *HooksRecorder) ObserveLinkState(name string, state domainagg.LinkState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.States = append(h.States, StateEvent{Name: name, State: state})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

// StatesFor returns the link states observed for one operation name, in order.
func (h *HooksRecorder) StatesFor(name string) []domainagg.LinkState {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domainagg.LinkState
	for _, s := range h.States {
		if s.Name == name {
			out = append(out, s.State)
		}
	}
	return out
}
