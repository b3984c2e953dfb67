// File: registry/conn.go
// Package registry holds connection descriptors and tracks their changes.
// License: Apache-2.0

package registry

import (
	"errors"

	"github.com/jw2013/fhem-modules/api"
)

// Conn is one connection descriptor: a single I/O source owned by a device
// driver and watched by the dispatch loop.
//
// Mask-relevant state (descriptor ids, interest flags, outbound buffer
// fill, direct-callback presence) is mutated only through accessor methods,
// each of which marks the owning registry key dirty so the next
// reconciliation pass resyncs the kernel registration. Fields that do not
// influence the computed mask are plain.
type Conn struct {
	key string
	reg *Registry

	fd    int // primary descriptor, -1 when driver-managed
	excfd int // exception descriptor, -1 when absent, may equal fd

	wantRead  bool
	wantWrite bool

	directRead  func(*Conn)
	directWrite func(*Conn)

	transport api.Transport
	cipher    api.Ciphered

	out     *outbuf
	onDrain func() // fires once when the current buffer fill drains

	alive bool

	// OnRead is the default inbound-data callback. Exactly one of OnRead
	// and the direct read callback may be active per descriptor.
	OnRead func(*Conn)

	// OnExcept is invoked when the exception descriptor reports urgent data.
	OnExcept func(*Conn)

	// Probe is the legacy readiness check, polled once per loop iteration
	// for members of the fallback set. A true result delivers the read
	// callback.
	Probe func(*Conn) bool
}

// NewConn creates a live descriptor with no OS descriptors attached.
func NewConn() *Conn {
	return &Conn{fd: -1, excfd: -1, out: newOutbuf(), alive: true}
}

// Key returns the registry key, empty until the descriptor is inserted.
func (c *Conn) Key() string { return c.key }

// Alive reports whether the descriptor has not been closed.
func (c *Conn) Alive() bool { return c.alive }

// FD returns the primary descriptor id, -1 when absent.
func (c *Conn) FD() int { return c.fd }

// SetFD attaches (or with -1 detaches) the primary descriptor id.
func (c *Conn) SetFD(fd int) {
	if c.fd == fd {
		return
	}
	c.fd = fd
	c.markDirty()
}

// ExceptFD returns the exception descriptor id, -1 when absent.
func (c *Conn) ExceptFD() int { return c.excfd }

// SetExceptFD attaches (or with -1 detaches) the exception descriptor id.
func (c *Conn) SetExceptFD(fd int) {
	if c.excfd == fd {
		return
	}
	c.excfd = fd
	c.markDirty()
}

// WantRead reports the declared read interest.
func (c *Conn) WantRead() bool { return c.wantRead }

// SetWantRead declares or clears read interest.
func (c *Conn) SetWantRead(v bool) {
	if c.wantRead == v {
		return
	}
	c.wantRead = v
	c.markDirty()
}

// WantWrite reports the explicitly declared write interest. Write interest
// derived from a non-empty outbound buffer is tracked separately.
func (c *Conn) WantWrite() bool { return c.wantWrite }

// SetWantWrite declares or clears explicit write interest.
func (c *Conn) SetWantWrite(v bool) {
	if c.wantWrite == v {
		return
	}
	c.wantWrite = v
	c.markDirty()
}

// DirectRead returns the driver-supplied read callback, if any.
func (c *Conn) DirectRead() func(*Conn) { return c.directRead }

// SetDirectRead installs a driver-supplied read callback, replacing the
// default descriptor-indexed read path. Exactly one of OnRead and the direct
// read callback may be active: installing one while OnRead is set fails with
// ErrReadConflict.
func (c *Conn) SetDirectRead(fn func(*Conn)) error {
	if fn != nil && c.OnRead != nil {
		return api.ErrReadConflict
	}
	c.directRead = fn
	c.markDirty()
	return nil
}

// DirectWrite returns the driver-supplied write callback, if any.
func (c *Conn) DirectWrite() func(*Conn) { return c.directWrite }

// SetDirectWrite installs a driver-supplied write callback, replacing the
// buffered flush path.
func (c *Conn) SetDirectWrite(fn func(*Conn)) {
	c.directWrite = fn
	c.markDirty()
}

// Transport returns the byte transport, nil for driver-managed sources.
func (c *Conn) Transport() api.Transport { return c.transport }

// SetTransport installs the byte transport used by the flush path.
func (c *Conn) SetTransport(t api.Transport) { c.transport = t }

// Cipher returns the encrypted-stream collaborator, nil for plain streams.
func (c *Conn) Cipher() api.Ciphered { return c.cipher }

// SetCipher marks the stream as encrypted and installs the collaborator
// queried for buffered undelivered plaintext after each read delivery.
func (c *Conn) SetCipher(ci api.Ciphered) { c.cipher = ci }

// Buffered returns the number of unwritten outbound bytes.
func (c *Conn) Buffered() int { return c.out.size }

// Enqueue appends p to the outbound buffer, preserving the order of earlier
// queued data. The empty-to-non-empty transition arms write interest via
// the dirty set. Queuing on a closed descriptor is a silent no-op.
func (c *Conn) Enqueue(p []byte) {
	if len(p) == 0 || !c.alive {
		return
	}
	wasEmpty := c.out.size == 0
	c.out.append(p)
	if wasEmpty {
		c.markDirty()
	}
}

// SetDrainFunc installs the completion callback for the current
// fill-to-drain cycle. It fires at most once, strictly after the last
// buffered byte was confirmed written, and is cleared before invocation so
// a re-entrant Enqueue starts a fresh cycle.
func (c *Conn) SetDrainFunc(fn func()) { c.onDrain = fn }

// Flush pushes buffered bytes through the transport until the buffer is
// empty or the transport stops accepting. A would-block result leaves state
// unchanged; a want-read result arms read interest so the transport can
// finish its handshake. The returned error, if any, is fatal to the
// connection.
func (c *Conn) Flush() error {
	if !c.alive {
		return api.ErrConnClosed
	}
	for c.out.size > 0 {
		if c.transport == nil {
			return errors.New("outbound data without a transport")
		}
		p := c.out.peek()
		n, err := c.transport.Write(p)
		if n > 0 {
			c.out.advance(n)
			if c.out.size == 0 {
				c.markDirty()
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, api.ErrWouldBlock):
				return nil
			case errors.Is(err, api.ErrWantRead):
				c.SetWantRead(true)
				return nil
			default:
				return err
			}
		}
		if n < len(p) {
			// Short write: keep the remainder, write interest stays armed.
			return nil
		}
	}
	if fn := c.onDrain; fn != nil {
		c.onDrain = nil
		fn()
	}
	return nil
}

// Close marks the descriptor dead and drops buffered output. The registry
// entry stays until the owner removes it; the dispatch loop checks liveness
// before every callback delivery within the same iteration.
func (c *Conn) Close() {
	if !c.alive {
		return
	}
	c.alive = false
	c.out.reset()
	c.onDrain = nil
	c.markDirty()
}

// Interest computes the kernel event mask this descriptor asks for. Pure:
// no side effects, identical output for identical state.
//
// Read interest is the default unless the descriptor is a direct write-only
// source or was put into an explicit write-only waiting state. Write
// interest follows buffered output, the explicit want-write flag, or a
// direct write callback (unless a read-only waiting state suppresses it).
// Exception interest follows the presence of the exception descriptor.
func (c *Conn) Interest() api.Mask {
	if c.fd < 0 {
		return 0
	}
	var m api.Mask
	directWriteOnly := c.directWrite != nil && c.directRead == nil
	if !directWriteOnly && !(c.wantWrite && !c.wantRead) {
		m |= api.MaskRead
	}
	if c.out.size > 0 || c.wantWrite ||
		(c.directWrite != nil && !(c.wantRead && !c.wantWrite)) {
		m |= api.MaskWrite
	}
	if c.excfd >= 0 {
		m |= api.MaskExcept
	}
	return m
}

func (c *Conn) markDirty() {
	if c.reg != nil {
		c.reg.markDirty(c.key)
	}
}
