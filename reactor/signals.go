// File: reactor/signals.go
// Coalesced control-signal flags and their per-iteration handling.
// License: Apache-2.0

package reactor

import (
	"sync/atomic"

	"github.com/jw2013/fhem-modules/api"
	"github.com/jw2013/fhem-modules/control"
)

// sigFlags holds one pending flag per control-signal kind. Multiple
// deliveries of the same kind before an iteration boundary collapse into a
// single action. The flags are the only reactor state touched off the loop
// thread, hence the atomics.
type sigFlags struct {
	term    atomic.Bool
	reload  atomic.Bool
	verbose atomic.Bool
}

// Terminate requests loop termination, like a process termination signal.
// Safe to call from any goroutine and from within callbacks.
func (r *Reactor) Terminate() {
	r.sig.term.Store(true)
	r.wake()
}

// Reload requests a configuration reload on the next iteration.
func (r *Reactor) Reload() {
	r.sig.reload.Store(true)
	r.wake()
}

// RaiseVerbosity requests a log-level step on the next iteration.
func (r *Reactor) RaiseVerbosity() {
	r.sig.verbose.Store(true)
	r.wake()
}

// handleSignals consumes the pending flags, at most one action per kind per
// iteration. Termination has priority and reports false to end the loop;
// the shutdown hook runs exactly once, here.
func (r *Reactor) handleSignals() bool {
	if r.sig.term.Swap(false) {
		r.metrics.Add(control.MetricSignals, 1)
		if r.hooks.OnShutdown != nil {
			r.hooks.OnShutdown()
		}
		return false
	}
	if r.sig.reload.Swap(false) {
		r.metrics.Add(control.MetricSignals, 1)
		if r.store != nil {
			if err := r.store.Reload(); err != nil {
				r.log.Error().Err(err).Msg("configuration reload failed")
			} else {
				r.applyConfig(r.store.Snapshot())
				r.log.Info().Msg("configuration reloaded")
			}
		}
		if r.hooks.OnReload != nil {
			r.hooks.OnReload()
		}
	}
	if r.sig.verbose.Swap(false) {
		r.metrics.Add(control.MetricSignals, 1)
		lvl := control.RaiseVerbosity()
		r.log.Info().Stringer("level", lvl).Msg("verbosity raised")
		if r.hooks.OnVerbose != nil {
			r.hooks.OnVerbose()
		}
	}
	return true
}

// applyConfig installs reloaded tunables on the loop thread.
func (r *Reactor) applyConfig(cfg control.Config) {
	if cfg.WaitCeilingMs > 0 {
		r.cfg.WaitCeilingMs = cfg.WaitCeilingMs
	}
	if cfg.FallbackWaitMs > 0 {
		r.cfg.FallbackWaitMs = cfg.FallbackWaitMs
	}
	if cfg.BatchSize > 0 && cfg.BatchSize != r.cfg.BatchSize {
		r.cfg.BatchSize = cfg.BatchSize
		r.evbuf = make([]api.Event, cfg.BatchSize)
	}
	control.ApplyLogLevel(cfg.LogLevel)
}
