// File: fake/multiplexer.go
// Package fake provides in-memory test doubles for the I/O core.
// License: Apache-2.0

package fake

import "github.com/jw2013/fhem-modules/api"

// SyncCall records one Sync invocation in order.
type SyncCall struct {
	FD   int
	Mask api.Mask
}

// Multiplexer is a scripted api.Multiplexer. Sync maintains a mirror of the
// registered-mask table and records every call; Wait serves pre-scripted
// event batches and records the requested timeouts.
type Multiplexer struct {
	State   map[int]api.Mask
	Synced  []SyncCall
	Script  [][]api.Event // successive Wait results
	Waits   []int         // recorded timeouts
	SyncErr error         // returned by every Sync when set
	WaitErr error         // returned by every Wait when set
	Closed  bool
}

// NewMultiplexer creates an empty scripted multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{State: make(map[int]api.Mask)}
}

// Push appends one Wait batch to the script.
func (m *Multiplexer) Push(events ...api.Event) {
	m.Script = append(m.Script, events)
}

// Sync records the call and mirrors the registration table.
func (m *Multiplexer) Sync(fd int, mask api.Mask) error {
	if m.SyncErr != nil {
		return m.SyncErr
	}
	m.Synced = append(m.Synced, SyncCall{FD: fd, Mask: mask})
	if mask == 0 {
		delete(m.State, fd)
	} else {
		m.State[fd] = mask
	}
	return nil
}

// Wait serves the next scripted batch, or zero events when the script is
// exhausted.
func (m *Multiplexer) Wait(events []api.Event, timeoutMs int) (int, error) {
	m.Waits = append(m.Waits, timeoutMs)
	if m.WaitErr != nil {
		return 0, m.WaitErr
	}
	if len(m.Script) == 0 {
		return 0, nil
	}
	batch := m.Script[0]
	m.Script = m.Script[1:]
	return copy(events, batch), nil
}

// Close marks the multiplexer closed.
func (m *Multiplexer) Close() error {
	m.Closed = true
	return nil
}

// SyncedFor returns the recorded Sync calls for one descriptor id.
func (m *Multiplexer) SyncedFor(fd int) []SyncCall {
	var out []SyncCall
	for _, sc := range m.Synced {
		if sc.FD == fd {
			out = append(out, sc)
		}
	}
	return out
}
