package api

import (
	"sync"
	"time"

	"kiana/controller"
)

// State is the snapshot served at /api/state and pushed on /api/stream.
type State struct {
	Mode        controller.Mode `json:"mode"`
	Monitoring  bool            `json:"monitoring"`
	Status      string          `json:"status"`
	Level       string          `json:"level"`
	Region      string          `json:"region"`
	Raw         string          `json:"raw"`
	Translation string          `json:"translation"`
	Source      string          `json:"source"`
	Target      string          `json:"target"`
	Interval    float64         `json:"interval_seconds"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Hub is a controller.View that records the latest state and fans every
// change out to subscribers. Slow subscribers miss intermediate states.
type Hub struct {
	mu        sync.Mutex
	state     State
	listeners []chan State
	now       func() time.Time
}

func NewHub() *Hub {
	return &Hub{now: time.Now}
}

func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Subscribe adds a listener for state changes
func (h *Hub) Subscribe() chan State {
	ch := make(chan State, 10)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(ch chan State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (h *Hub) update(fn func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.state)
	h.state.UpdatedAt = h.now()
	for _, ch := range h.listeners {
		select {
		case ch <- h.state:
		default:
		}
	}
}

func (h *Hub) ShowRaw(text string) {
	h.update(func(s *State) { s.Raw = text })
}

func (h *Hub) ShowTranslation(text string) {
	h.update(func(s *State) { s.Translation = text })
}

func (h *Hub) ShowStatus(st controller.Status) {
	h.update(func(s *State) {
		s.Status = st.Text
		s.Level = st.Level.String()
	})
}

func (h *Hub) ShowRegion(label string) {
	h.update(func(s *State) { s.Region = label })
}

func (h *Hub) SetMonitoring(active bool) {
	h.update(func(s *State) { s.Monitoring = active })
}

func (h *Hub) SetMode(m controller.Mode) {
	h.update(func(s *State) { s.Mode = m })
}

func (h *Hub) ShowSettings(source, target string, interval time.Duration) {
	h.update(func(s *State) {
		s.Source, s.Target = source, target
		s.Interval = interval.Seconds()
	})
}
