// File: api/transport.go
// Package api defines the byte transport and encrypted-stream contracts.
// License: Apache-2.0

package api

// Transport moves raw bytes between a connection and its peer. Both
// directions must be non-blocking: when the operation cannot make progress
// the implementation returns ErrWouldBlock instead of waiting.
type Transport interface {
	// Read fills p with available bytes. End of stream is reported as an
	// error by the implementation.
	Read(p []byte) (int, error)

	// Write pushes up to len(p) bytes to the peer and returns how many were
	// accepted. A short count with a nil error is valid. ErrWouldBlock means
	// no progress is currently possible; ErrWantRead means the transport
	// needs inbound data before the write can complete (e.g. a TLS
	// renegotiation). Any other error is fatal to the connection.
	Write(p []byte) (int, error)
}

// Ciphered is implemented by encrypted transports that can hold decrypted
// application data internally after the kernel-level buffer was drained.
// The dispatch loop consults it after every read delivery: a true result
// schedules a synthetic read event for the next iteration, because no
// further kernel notification will arrive for data that is already
// decrypted.
type Ciphered interface {
	// BufferedPlaintext reports whether decrypted data is queued inside the
	// encryption layer but not yet delivered to the reader.
	BufferedPlaintext() bool
}
