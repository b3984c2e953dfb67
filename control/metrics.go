// File: control/metrics.go
// Runtime counter registry fed by the dispatch loop.
// License: Apache-2.0

package control

import (
	"sync"
	"time"
)

// Counter names published by the dispatch loop.
const (
	MetricIterations   = "loop.iterations"
	MetricWaits        = "loop.kernel_waits"
	MetricEvents       = "loop.events_dispatched"
	MetricSynthetic    = "loop.synthetic_events"
	MetricSyncs        = "loop.mux_syncs"
	MetricFallback     = "loop.fallback_probes"
	MetricConnsClosed  = "loop.conns_closed"
	MetricSignals      = "loop.signals_handled"
	MetricDeferredRuns = "loop.deferred_runs"
)

// MetricsRegistry holds monotonically increasing counters. It is the one
// component shared with observers off the loop thread, so it carries its
// own lock.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]int64
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{counters: make(map[string]int64)}
}

// Add increments a counter by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	mr.counters[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns the current value of one counter.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[key]
}

// GetSnapshot returns a copy of all counters.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.counters))
	for k, v := range mr.counters {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last counter change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
