//go:build linux

// File: poller/epoll_linux_test.go
// License: Apache-2.0

package poller

import (
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/jw2013/fhem-modules/api"
)

func newTestEpoll(t *testing.T) *Epoll {
	t.Helper()
	p, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func testPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestSyncLifecycle(t *testing.T) {
	p := newTestEpoll(t)
	r, _ := testPipe(t)

	if err := p.Sync(r, api.MaskRead); err != nil {
		t.Fatalf("add: %v", err)
	}
	if m, ok := p.Registered(r); !ok || m != api.MaskRead {
		t.Fatalf("Registered = %v %v after add", m, ok)
	}

	// Same mask again must be a no-op, not a failing duplicate ADD.
	if err := p.Sync(r, api.MaskRead); err != nil {
		t.Fatalf("idempotent sync: %v", err)
	}

	if err := p.Sync(r, api.MaskRead|api.MaskWrite); err != nil {
		t.Fatalf("mod: %v", err)
	}
	if m, _ := p.Registered(r); m != api.MaskRead|api.MaskWrite {
		t.Fatalf("Registered = %v after mod", m)
	}

	if err := p.Sync(r, 0); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok := p.Registered(r); ok {
		t.Fatal("still registered after del")
	}

	// Deleting an unregistered descriptor is a no-op.
	if err := p.Sync(r, 0); err != nil {
		t.Fatalf("del of unregistered: %v", err)
	}
	if err := p.Sync(-1, api.MaskRead); err != nil {
		t.Fatalf("sync of absent descriptor: %v", err)
	}
}

func TestSyncToleratesClosedDescriptor(t *testing.T) {
	p := newTestEpoll(t)
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(fds[1])

	if err := p.Sync(fds[0], api.MaskRead); err != nil {
		t.Fatalf("add: %v", err)
	}
	// close(2) silently drops the kernel registration; the later declarative
	// unregister must not fail on the stale table entry.
	unix.Close(fds[0])
	if err := p.Sync(fds[0], 0); err != nil {
		t.Fatalf("del after close: %v", err)
	}
	if _, ok := p.Registered(fds[0]); ok {
		t.Fatal("stale entry survived del")
	}
}

func TestWaitReportsReadReadiness(t *testing.T) {
	p := newTestEpoll(t)
	r, w := testPipe(t)

	if err := p.Sync(r, api.MaskRead); err != nil {
		t.Fatal(err)
	}

	events := make([]api.Event, 8)
	n, err := p.Wait(events, 0)
	if err != nil || n != 0 {
		t.Fatalf("Wait on idle pipe = %d %v", n, err)
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err = p.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 || events[0].FD != r || !events[0].Ready.Has(api.MaskRead) {
		t.Fatalf("Wait = %d %+v, want read readiness on %d", n, events[:n], r)
	}

	// Level-triggered: unread data reports again on the next wait.
	n, err = p.Wait(events, 0)
	if err != nil || n != 1 {
		t.Fatalf("second Wait = %d %v, want the same readiness", n, err)
	}
}

func TestWaitReportsWriteReadiness(t *testing.T) {
	p := newTestEpoll(t)
	_, w := testPipe(t)

	if err := p.Sync(w, api.MaskWrite); err != nil {
		t.Fatal(err)
	}
	events := make([]api.Event, 8)
	n, err := p.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 || events[0].FD != w || !events[0].Ready.Has(api.MaskWrite) {
		t.Fatalf("Wait = %d %+v, want write readiness on %d", n, events[:n], w)
	}
}

func TestWaitReportsHangupAsReadAndWrite(t *testing.T) {
	p := newTestEpoll(t)
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(fds[0])

	if err := p.Sync(fds[0], api.MaskRead); err != nil {
		t.Fatal(err)
	}
	unix.Close(fds[1]) // peer gone, read end sees EPOLLHUP

	events := make([]api.Event, 8)
	n, err := p.Wait(events, 1000)
	if err != nil || n != 1 {
		t.Fatalf("Wait = %d %v", n, err)
	}
	if !events[0].Ready.Has(api.MaskRead) {
		t.Fatalf("hangup not surfaced as read readiness: %+v", events[0])
	}
}

func TestWaitWithEmptyBuffer(t *testing.T) {
	p := newTestEpoll(t)
	n, err := p.Wait(nil, 1000)
	if err != nil || n != 0 {
		t.Fatalf("Wait(nil) = %d %v", n, err)
	}
}

func TestMaskTranslation(t *testing.T) {
	if got := maskToEpoll(api.MaskRead | api.MaskWrite | api.MaskExcept); got != unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLPRI {
		t.Fatalf("maskToEpoll = %#x", got)
	}
	if got := epollToMask(unix.EPOLLERR); got != api.MaskRead|api.MaskWrite {
		t.Fatalf("epollToMask(EPOLLERR) = %v, want read and write", got)
	}
	if got := epollToMask(unix.EPOLLPRI); got != api.MaskExcept {
		t.Fatalf("epollToMask(EPOLLPRI) = %v, want except", got)
	}
}
