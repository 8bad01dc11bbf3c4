package providers

import (
	"sync"
	"time"
)

// Health tracks per-client call outcomes for the health endpoint and the
// degraded-mode decision. A client is unhealthy after three consecutive
// failures and recovers on the next success.
type Health struct {
	mu          sync.Mutex
	name        string
	successes   int64
	failures    int64
	consecutive int
	lastSuccess time.Time
	lastError   string
	avgLatency  time.Duration
}

// HealthSnapshot is the exported view of a Health tracker.
type HealthSnapshot struct {
	Name        string        `json:"name"`
	Healthy     bool          `json:"healthy"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Consecutive int           `json:"consecutive_failures"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
}

func NewHealth(name string) *Health {
	return &Health{name: name}
}

func (h *Health) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes++
	h.consecutive = 0
	h.lastSuccess = time.Now()
	if h.avgLatency == 0 {
		h.avgLatency = latency
	} else {
		h.avgLatency = (h.avgLatency*4 + latency) / 5
	}
}

func (h *Health) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.consecutive++
	if err != nil {
		h.lastError = err.Error()
	}
}

// Healthy reports whether the client has seen fewer than three consecutive
// failures.
func (h *Health) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutive < 3
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Name:        h.name,
		Healthy:     h.consecutive < 3,
		Successes:   h.successes,
		Failures:    h.failures,
		Consecutive: h.consecutive,
		LastSuccess: h.lastSuccess,
		LastError:   h.lastError,
		AvgLatency:  h.avgLatency,
	}
}
