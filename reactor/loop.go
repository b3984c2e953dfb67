// File: reactor/loop.go
// The dispatch loop: reconcile, wait, signals, dispatch, fallback, timers.
// License: Apache-2.0

package reactor

import (
	"time"

	"github.com/jw2013/fhem-modules/api"
	"github.com/jw2013/fhem-modules/control"
	"github.com/jw2013/fhem-modules/registry"
)

// Run executes the dispatch loop until a termination signal is handled.
// Environment failures of the multiplexer terminate the process: an
// inconsistent kernel table makes all later readiness data untrustworthy.
func (r *Reactor) Run() {
	r.log.Info().Msg("dispatch loop running")
	for r.runOnce() {
	}
	r.log.Info().Msg("dispatch loop terminated")
}

// runOnce performs one loop iteration and reports whether the loop should
// continue. The step order is load-bearing: reconciliation before waiting,
// signal handling before readiness dispatch, dispatch before fallback
// polling and deferred work.
func (r *Reactor) runOnce() bool {
	r.metrics.Add(control.MetricIterations, 1)
	r.reconcile()

	var events []api.Event
	var synthetic []string
	if len(r.cipherPending) > 0 {
		// Plaintext is already queued inside an encryption layer; the
		// kernel will never announce it, so skip the wait and substitute
		// synthetic read events.
		synthetic = make([]string, 0, len(r.cipherPending))
		for k := range r.cipherPending {
			synthetic = append(synthetic, k)
		}
		clear(r.cipherPending)
		r.metrics.Add(control.MetricSynthetic, int64(len(synthetic)))
	} else {
		n, err := r.mux.Wait(r.evbuf, r.waitTimeout())
		if err != nil {
			r.log.Fatal().Err(err).Msg("multiplexer wait failed")
		}
		r.metrics.Add(control.MetricWaits, 1)
		events = r.evbuf[:n]
	}

	if !r.handleSignals() {
		return false
	}

	for _, key := range synthetic {
		if c, ok := r.reg.Get(key); ok && c.Alive() {
			r.deliverRead(c)
		}
	}
	r.dispatch(events)
	r.pollFallback()
	r.defq.RunDue()
	r.metrics.Add(control.MetricDeferredRuns, 1)
	return true
}

// waitTimeout computes this iteration's wait bound in milliseconds from the
// freshest deferred-queue state; it is never cached across iterations.
func (r *Reactor) waitTimeout() int {
	timeout := r.cfg.WaitCeilingMs
	if d, ok := r.defq.NextDelay(); ok {
		ms := int(d / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		if ms < timeout {
			timeout = ms
		}
	}
	if len(r.fallback) > 0 && timeout > r.cfg.FallbackWaitMs {
		timeout = r.cfg.FallbackWaitMs
	}
	return timeout
}

// reconcile drains the dirty set and resyncs every affected key, so the
// kernel's view of what to watch matches the registry's intent before the
// loop blocks.
func (r *Reactor) reconcile() {
	r.reg.DrainDirty(func(key string, c *registry.Conn) {
		if c == nil || !c.Alive() {
			if b, ok := r.bound[key]; ok {
				r.unbind(key, b)
			}
			return
		}
		r.rebind(key, c)
		// Plaintext can be buffered before the first kernel event ever
		// fires (e.g. data that arrived during the handshake); seed the
		// synthetic backlog from here as well.
		if ci := c.Cipher(); ci != nil && ci.BufferedPlaintext() {
			r.cipherPending[key] = struct{}{}
		}
	})
}

// rebind syncs the kernel registration of one live key with its computed
// interest, unregistering descriptor ids the key no longer uses.
func (r *Reactor) rebind(key string, c *registry.Conn) {
	old, wasBound := r.bound[key]
	m := c.Interest()
	if m == 0 {
		if wasBound {
			r.unbind(key, old)
		}
		return
	}
	nb := binding{fd: c.FD(), exc: c.ExceptFD(), mask: m}
	if wasBound {
		if old.fd >= 0 && old.fd != nb.fd && old.fd != nb.exc && r.fdKey[old.fd] == key {
			r.syncFD(old.fd, 0)
			r.releaseFD(old.fd, key)
		}
		if old.exc >= 0 && old.exc != old.fd && old.exc != nb.fd && old.exc != nb.exc &&
			r.fdKey[old.exc] == key {
			r.syncFD(old.exc, 0)
			r.releaseFD(old.exc, key)
		}
	}
	pm := m & (api.MaskRead | api.MaskWrite)
	if nb.exc == nb.fd && m.Has(api.MaskExcept) {
		pm |= api.MaskExcept
	}
	if r.claimFD(nb.fd, key) {
		// The numeric descriptor changed owners (close + reopen): never
		// reuse the stale kernel registration.
		r.syncFD(nb.fd, 0)
	}
	r.syncFD(nb.fd, pm)
	if nb.exc >= 0 && nb.exc != nb.fd {
		if r.claimFD(nb.exc, key) {
			r.syncFD(nb.exc, 0)
		}
		r.syncFD(nb.exc, api.MaskExcept)
	}
	r.bound[key] = nb
}

// unbind unregisters every descriptor id recorded for key. A descriptor id
// that was since reassigned to another key belongs to that key's live kernel
// registration now; only the current owner may unregister it.
func (r *Reactor) unbind(key string, b binding) {
	if b.fd >= 0 && r.fdKey[b.fd] == key {
		r.syncFD(b.fd, 0)
		r.releaseFD(b.fd, key)
	}
	if b.exc >= 0 && b.exc != b.fd && r.fdKey[b.exc] == key {
		r.syncFD(b.exc, 0)
		r.releaseFD(b.exc, key)
	}
	delete(r.bound, key)
}

// syncFD forwards one registration change to the multiplexer. Registration
// failures are environment-fatal: there is no retry that makes a desynced
// kernel table trustworthy again.
func (r *Reactor) syncFD(fd int, m api.Mask) {
	if err := r.mux.Sync(fd, m); err != nil {
		r.log.Fatal().Err(err).Int("fd", fd).Stringer("mask", m).
			Msg("multiplexer registration failed")
	}
	r.metrics.Add(control.MetricSyncs, 1)
}

// claimFD records key as the owner of fd and reports whether the
// descriptor id previously belonged to a different connection.
func (r *Reactor) claimFD(fd int, key string) bool {
	owner, ok := r.fdKey[fd]
	r.fdKey[fd] = key
	if ok && owner != key {
		r.log.Warn().Int("fd", fd).Str("previous", owner).Str("owner", key).
			Msg("descriptor id reassigned")
		return true
	}
	return false
}

// releaseFD drops the fd-to-key entry if key still owns it.
func (r *Reactor) releaseFD(fd int, key string) {
	if r.fdKey[fd] == key {
		delete(r.fdKey, fd)
	}
}

// dispatch delivers callbacks for each reported descriptor. Keys that no
// longer resolve were removed between wait and dispatch; skipping them
// silently is correct, not an error.
func (r *Reactor) dispatch(events []api.Event) {
	for _, e := range events {
		if r.wakeR >= 0 && e.FD == r.wakeR {
			r.drainWake()
			continue
		}
		key, ok := r.fdKey[e.FD]
		if !ok {
			continue
		}
		c, ok := r.reg.Get(key)
		if !ok || !c.Alive() {
			continue
		}
		r.metrics.Add(control.MetricEvents, 1)
		primary := e.FD == c.FD()
		if primary && e.Ready.Has(api.MaskRead) {
			r.deliverRead(c)
			if !c.Alive() {
				continue
			}
		}
		if primary && e.Ready.Has(api.MaskWrite) {
			r.deliverWrite(c)
			if !c.Alive() {
				continue
			}
		}
		if e.Ready.Has(api.MaskExcept) && e.FD == c.ExceptFD() {
			if fn := c.OnExcept; fn != nil {
				fn(c)
			}
		}
	}
}

// deliverRead clears the declared read interest and invokes the active read
// callback. Clearing first means a callback that re-arms the interest is
// not overwritten afterwards.
func (r *Reactor) deliverRead(c *registry.Conn) {
	c.SetWantRead(false)
	if fn := c.DirectRead(); fn != nil {
		fn(c)
	} else if c.OnRead != nil {
		c.OnRead(c)
	}
	if !c.Alive() {
		return
	}
	if ci := c.Cipher(); ci != nil && ci.BufferedPlaintext() {
		r.cipherPending[c.Key()] = struct{}{}
	}
}

// deliverWrite clears the declared write interest, mirroring deliverRead,
// then runs the driver's direct write callback or flushes the outbound
// buffer. Without the clearing, a level-triggered registration would report
// write readiness for an idle connection on every iteration. A flush failure
// is fatal to this connection only.
func (r *Reactor) deliverWrite(c *registry.Conn) {
	c.SetWantWrite(false)
	if fn := c.DirectWrite(); fn != nil {
		fn(c)
		return
	}
	if c.Buffered() == 0 {
		return
	}
	if err := c.Flush(); err != nil {
		r.closeConn(c, err)
	}
}

// closeConn handles a connection-fatal error: the descriptor is closed and
// removed; the loop continues for everything else.
func (r *Reactor) closeConn(c *registry.Conn, err error) {
	key := c.Key()
	r.log.Warn().Err(err).Str("key", key).Msg("connection failed, closing")
	c.Close()
	r.reg.Remove(key)
	r.metrics.Add(control.MetricConnsClosed, 1)
}

// pollFallback probes every fallback member once, after readiness dispatch,
// preserving the legacy polling semantics for sources that do not flow
// through the multiplexer.
func (r *Reactor) pollFallback() {
	if len(r.fallback) == 0 {
		return
	}
	keys := append([]string(nil), r.fallback...) // probes may mutate the set
	for _, key := range keys {
		c, ok := r.reg.Get(key)
		if !ok || !c.Alive() || c.Probe == nil {
			continue
		}
		r.metrics.Add(control.MetricFallback, 1)
		if c.Probe(c) {
			r.deliverRead(c)
		}
	}
}
