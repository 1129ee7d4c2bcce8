package pipeline

import (
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/domain"
)

// Event is one progress update from a running pipeline, streamed to
// WebSocket subscribers.
type Event struct {
	RunID    string             `json:"run_id"`
	Stage    string             `json:"stage"`
	Message  string             `json:"message,omitempty"`
	Counters domain.RunCounters `json:"counters"`
	Time     time.Time          `json:"time"`
}

// hub fans events out to subscribers. Slow subscribers drop events rather
// than stall the pipeline.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
