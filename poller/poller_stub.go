//go:build !linux

// File: poller/poller_stub.go
// Package poller stub for platforms without an epoll binding.
// License: Apache-2.0

package poller

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jw2013/fhem-modules/api"
)

// Epoll is unavailable on this platform.
type Epoll struct{}

// New reports that no multiplexer binding exists for this platform.
func New(_ zerolog.Logger) (*Epoll, error) {
	return nil, fmt.Errorf("poller: no multiplexer backend for this platform")
}

// Sync is unsupported on this platform.
func (p *Epoll) Sync(int, api.Mask) error { return fmt.Errorf("poller: unsupported platform") }

// Registered is unsupported on this platform.
func (p *Epoll) Registered(int) (api.Mask, bool) { return 0, false }

// Wait is unsupported on this platform.
func (p *Epoll) Wait([]api.Event, int) (int, error) {
	return 0, fmt.Errorf("poller: unsupported platform")
}

// Close is a no-op on this platform.
func (p *Epoll) Close() error { return nil }
