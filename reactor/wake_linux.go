//go:build linux

// File: reactor/wake_linux.go
// Wake pipe and process-signal forwarding for the Linux build.
// License: Apache-2.0

package reactor

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/jw2013/fhem-modules/api"
)

// initWake creates the self-pipe that interrupts a blocked kernel wait when
// a control signal arrives, and registers its read end with the
// multiplexer.
func (r *Reactor) initWake() error {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return os.NewSyscallError("pipe2", err)
	}
	r.wakeR, r.wakeW = fds[0], fds[1]
	if err := r.mux.Sync(r.wakeR, api.MaskRead); err != nil {
		return err
	}
	return nil
}

// wake nudges a blocked kernel wait. A full pipe already guarantees a
// wakeup, so EAGAIN is ignored.
func (r *Reactor) wake() {
	if r.wakeW < 0 {
		return
	}
	_, _ = unix.Write(r.wakeW, []byte{1})
}

// drainWake empties the wake pipe after its readiness was reported.
func (r *Reactor) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// closeWake tears down the wake pipe during Close.
func (r *Reactor) closeWake() {
	if r.wakeR >= 0 {
		_ = unix.Close(r.wakeR)
		r.wakeR = -1
	}
	if r.wakeW >= 0 {
		_ = unix.Close(r.wakeW)
		r.wakeW = -1
	}
}

// installOSSignals forwards SIGTERM/SIGINT, SIGHUP, and SIGUSR1 into the
// coalesced flags. The forwarding goroutine touches nothing but the flags
// and the wake pipe; all real work stays on the loop thread.
func (r *Reactor) installOSSignals() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, unix.SIGTERM, unix.SIGINT, unix.SIGHUP, unix.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				switch sig {
				case unix.SIGTERM, unix.SIGINT:
					r.Terminate()
				case unix.SIGHUP:
					r.Reload()
				case unix.SIGUSR1:
					r.RaiseVerbosity()
				}
			case <-done:
				return
			}
		}
	}()
	r.stopSignals = func() {
		signal.Stop(ch)
		close(done)
	}
}
