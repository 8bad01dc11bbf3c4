package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Fact categories with their default freshness windows. Supply and
// liquidity move fast; authorities and token identity rarely change.
var DefaultTTLs = map[string]time.Duration{
	"supply":    30 * time.Second,
	"holders":   60 * time.Second,
	"metadata":  10 * time.Minute,
	"liquidity": 30 * time.Second,
}

const fallbackTTL = 5 * time.Minute

// Manager is the typed fact cache the providers share. Values are stored
// as JSON in the underlying Store, so memory and Redis backends behave the
// same.
type Manager struct {
	store Store

	mu     sync.RWMutex
	ttls   map[string]time.Duration
	hits   int64
	misses int64
}

// NewManager wraps store with the default category TTLs.
func NewManager(store Store) *Manager {
	ttls := make(map[string]time.Duration, len(DefaultTTLs))
	for category, ttl := range DefaultTTLs {
		ttls[category] = ttl
	}
	return &Manager{store: store, ttls: ttls}
}

// SetTTL overrides the freshness window for a category. A zero TTL
// disables caching for it.
func (m *Manager) SetTTL(category string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[category] = ttl
}

// TTL returns the freshness window for a category.
func (m *Manager) TTL(category string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ttl, ok := m.ttls[category]; ok {
		return ttl
	}
	return fallbackTTL
}

// Get loads the cached value for (category, key) into out. A decode
// failure counts as a miss: the entry is unusable, not an error.
func (m *Manager) Get(category, key string, out interface{}) bool {
	raw, ok := m.store.Get(Key(category, key))
	if !ok {
		m.count(false)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		m.count(false)
		return false
	}
	m.count(true)
	return true
}

// Put stores val under (category, key) with the category's TTL. Categories
// with a zero TTL are not cached at all.
func (m *Manager) Put(category, key string, val interface{}) {
	ttl := m.TTL(category)
	if ttl == 0 {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	m.store.Set(Key(category, key), raw, ttl)
}

// Key builds the namespaced cache key for a category and lookup key.
func Key(category, key string) string {
	return fmt.Sprintf("facts:%s:%s", category, key)
}

// Stats summarizes manager traffic since start.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Hits: m.hits, Misses: m.misses}
	if total := m.hits + m.misses; total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
	}
	return stats
}

func (m *Manager) count(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}
