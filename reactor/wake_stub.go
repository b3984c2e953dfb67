//go:build !linux

// File: reactor/wake_stub.go
// No-op wake pipe and signal forwarding for platforms without the binding.
// License: Apache-2.0

package reactor

func (r *Reactor) initWake() error { return nil }

func (r *Reactor) wake() {}

func (r *Reactor) drainWake() {}

func (r *Reactor) closeWake() {}

func (r *Reactor) installOSSignals() {}
