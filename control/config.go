// File: control/config.go
// Configuration store with JSON loading, snapshot reads, and hot reload.
// License: Apache-2.0

package control

import (
	"fmt"
	"os"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// Config carries the tunables of the dispatch loop. Zero fields fall back
// to the defaults at the point of use.
type Config struct {
	// WaitCeilingMs bounds a kernel wait even when no deferred work is
	// pending, so the loop periodically re-checks its surroundings.
	WaitCeilingMs int `json:"wait_ceiling_ms"`

	// FallbackWaitMs caps the wait while fallback-poll members exist, so
	// legacy sources are probed promptly instead of starving behind a long
	// block.
	FallbackWaitMs int `json:"fallback_wait_ms"`

	// BatchSize is the maximum number of readiness events accepted per
	// kernel wait.
	BatchSize int `json:"batch_size"`

	// LogLevel is a zerolog level name ("debug", "info", "warn", ...).
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the tunables used when no file is given.
func DefaultConfig() Config {
	return Config{
		WaitCeilingMs:  5000,
		FallbackWaitMs: 100,
		BatchSize:      128,
		LogLevel:       "info",
	}
}

// Store is a configuration holder with snapshot reads, atomic updates, and
// reload listeners. Listener dispatch is synchronous so the dispatch loop
// observes a reload before its next iteration continues.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	path      string
	listeners []func(Config)
}

// NewStore creates a store seeded with cfg. path may be empty; it is the
// file re-read on Reload.
func NewStore(path string, cfg Config) *Store {
	return &Store{cfg: cfg, path: path}
}

// Snapshot returns the current configuration by value.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the configuration and notifies reload listeners.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnReload registers a listener invoked after every successful Set or
// Reload.
func (s *Store) OnReload(fn func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the configuration file and applies it. Without a file
// path it re-dispatches the current configuration, which lets listeners
// re-apply derived state.
func (s *Store) Reload() error {
	if s.path == "" {
		s.Set(s.Snapshot())
		return nil
	}
	cfg, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.Set(cfg)
	return nil
}

// LoadFile reads a JSON configuration document. Missing fields keep the
// default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
