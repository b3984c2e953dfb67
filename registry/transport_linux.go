//go:build linux

// File: registry/transport_linux.go
// Package registry: default descriptor-backed byte transport.
// License: Apache-2.0

package registry

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jw2013/fhem-modules/api"
)

// FDTransport is the default api.Transport for descriptor-backed sources.
// EAGAIN maps onto api.ErrWouldBlock; every other syscall error passes
// through and is fatal to the connection.
type FDTransport struct {
	FD int
}

// Read reads available bytes from the descriptor. A zero-byte read on a
// stream descriptor reports io.EOF.
func (t FDTransport) Read(p []byte) (int, error) {
	n, err := unix.Read(t.FD, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, api.ErrWouldBlock
		}
		return 0, os.NewSyscallError("read", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write pushes bytes to the descriptor, possibly fewer than len(p).
func (t FDTransport) Write(p []byte) (int, error) {
	n, err := unix.Write(t.FD, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, api.ErrWouldBlock
		}
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}
