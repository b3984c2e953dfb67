// File: reactor/reactor.go
// Reactor construction, teardown, and fallback-set management.
// License: Apache-2.0

package reactor

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jw2013/fhem-modules/api"
	"github.com/jw2013/fhem-modules/control"
	"github.com/jw2013/fhem-modules/registry"
	"github.com/jw2013/fhem-modules/sched"
)

// Hooks are the opaque control callbacks invoked on named control signals.
// The loop only sequences them; what they do is the embedding program's
// business.
type Hooks struct {
	OnShutdown func() // invoked once, right before the loop exits
	OnReload   func() // invoked after a configuration reload was applied
	OnVerbose  func() // invoked after the log level was stepped
}

// Options configures a Reactor.
type Options struct {
	Mux      api.Multiplexer    // required
	Registry *registry.Registry // required
	Deferred api.Deferred       // optional, defaults to an empty sched.Queue
	Store    *control.Store     // optional, enables config hot reload
	Metrics  *control.MetricsRegistry
	Hooks    Hooks
	Logger   zerolog.Logger

	// OSSignals installs process signal handlers (terminate, reload,
	// raise-verbosity) that feed the loop's coalesced signal flags.
	OSSignals bool
}

// binding records which descriptor ids a registry key was registered under
// during the last reconciliation, so a later pass knows what to undo.
type binding struct {
	fd   int
	exc  int
	mask api.Mask
}

// Reactor owns the dispatch loop state: the fd-to-key table, per-key
// bindings, the fallback-poll set, and the synthetic-event backlog. It is
// constructed once and torn down with Close; there is no ambient global
// state.
type Reactor struct {
	log     zerolog.Logger
	mux     api.Multiplexer
	reg     *registry.Registry
	defq    api.Deferred
	store   *control.Store
	metrics *control.MetricsRegistry
	hooks   Hooks

	cfg control.Config

	fdKey map[int]string     // authoritative fd -> registry key
	bound map[string]binding // key -> descriptor ids registered last pass

	fallback      []string            // keys probed every iteration
	cipherPending map[string]struct{} // keys owed a synthetic read event

	evbuf []api.Event

	sig          sigFlags
	stopSignals  func()
	wakeR, wakeW int

	closed bool
}

// New creates a reactor around the given multiplexer and registry.
func New(opts Options) (*Reactor, error) {
	if opts.Mux == nil {
		return nil, fmt.Errorf("reactor: multiplexer is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("reactor: registry is required")
	}
	cfg := control.DefaultConfig()
	if opts.Store != nil {
		cfg = opts.Store.Snapshot()
	}
	if cfg.WaitCeilingMs <= 0 {
		cfg.WaitCeilingMs = control.DefaultConfig().WaitCeilingMs
	}
	if cfg.FallbackWaitMs <= 0 {
		cfg.FallbackWaitMs = control.DefaultConfig().FallbackWaitMs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = control.DefaultConfig().BatchSize
	}
	defq := opts.Deferred
	if defq == nil {
		defq = sched.New()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = control.NewMetricsRegistry()
	}
	r := &Reactor{
		log:           opts.Logger,
		mux:           opts.Mux,
		reg:           opts.Registry,
		defq:          defq,
		store:         opts.Store,
		metrics:       metrics,
		hooks:         opts.Hooks,
		cfg:           cfg,
		fdKey:         make(map[int]string),
		bound:         make(map[string]binding),
		cipherPending: make(map[string]struct{}),
		evbuf:         make([]api.Event, cfg.BatchSize),
		wakeR:         -1,
		wakeW:         -1,
	}
	opts.Registry.OnRemove(r.onConnRemoved)
	if err := r.initWake(); err != nil {
		return nil, err
	}
	if opts.OSSignals {
		r.installOSSignals()
	}
	return r, nil
}

// Metrics returns the counter registry fed by the loop.
func (r *Reactor) Metrics() *control.MetricsRegistry { return r.metrics }

// AddFallback appends key to the fallback-poll set. Members are probed once
// per iteration after readiness dispatch, regardless of multiplexer state.
func (r *Reactor) AddFallback(key string) {
	for _, k := range r.fallback {
		if k == key {
			return
		}
	}
	r.fallback = append(r.fallback, key)
}

// RemoveFallback drops key from the fallback-poll set.
func (r *Reactor) RemoveFallback(key string) {
	for i, k := range r.fallback {
		if k == key {
			r.fallback = append(r.fallback[:i], r.fallback[i+1:]...)
			return
		}
	}
}

// onConnRemoved is the registry removal observer. It unregisters the
// entry's descriptor ids immediately, closing the window in which a stale
// descriptor could still be reported ready.
func (r *Reactor) onConnRemoved(c *registry.Conn) {
	key := c.Key()
	if b, ok := r.bound[key]; ok {
		r.unbind(key, b)
	}
	delete(r.cipherPending, key)
	r.RemoveFallback(key)
}

// Close drains the reactor: every bound descriptor is unregistered, all
// connections are marked dead, signal forwarding stops, and the multiplexer
// is closed. Call it after Run has returned; a second Close is a no-op.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.stopSignals != nil {
		r.stopSignals()
	}
	for key, b := range r.bound {
		if b.fd >= 0 {
			if err := r.mux.Sync(b.fd, 0); err != nil {
				r.log.Warn().Err(err).Int("fd", b.fd).Msg("unregister during close")
			}
		}
		if b.exc >= 0 && b.exc != b.fd {
			if err := r.mux.Sync(b.exc, 0); err != nil {
				r.log.Warn().Err(err).Int("fd", b.exc).Msg("unregister during close")
			}
		}
		delete(r.bound, key)
	}
	clear(r.fdKey)
	clear(r.cipherPending)
	r.fallback = nil
	r.reg.Range(func(_ string, c *registry.Conn) bool {
		c.Close()
		return true
	})
	r.closeWake()
	return r.mux.Close()
}
