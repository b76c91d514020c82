package analytics

import (
	"sync"

	"iot-anomaly-engine/models"
)

// AnomalyHub fans freshly recorded anomalies out to in-process
// subscribers (websocket streams, cache publishers). Slow subscribers drop
// anomalies instead of blocking the detection pass.
type AnomalyHub struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Anomaly
	nextID int
}

func NewAnomalyHub() *AnomalyHub {
	return &AnomalyHub{subs: make(map[int]chan models.Anomaly)}
}

// Subscribe registers a buffered subscriber channel and returns it with a
// cancel func. The channel is closed on cancel.
func (h *AnomalyHub) Subscribe(buffer int) (<-chan models.Anomaly, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.Anomaly, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an anomaly to every subscriber without blocking.
func (h *AnomalyHub) Publish(a models.Anomaly) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- a:
		default:
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *AnomalyHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
