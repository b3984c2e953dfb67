//go:build linux

// File: poller/epoll_linux.go
// Package poller binds the dispatch loop to the Linux epoll multiplexer.
// License: Apache-2.0

package poller

import (
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/jw2013/fhem-modules/api"
)

// Epoll implements api.Multiplexer on top of epoll(7). It keeps the
// authoritative fd -> registered-mask table used to turn declarative Sync
// calls into at most one epoll_ctl each. Not safe for concurrent use: the
// dispatch loop is its only caller.
type Epoll struct {
	log   zerolog.Logger
	epfd  int
	state map[int]api.Mask // descriptors currently registered with the kernel
	raw   []unix.EpollEvent
}

// New creates an epoll instance with close-on-exec set.
func New(log zerolog.Logger) (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &Epoll{
		log:   log,
		epfd:  epfd,
		state: make(map[int]api.Mask),
	}, nil
}

// Sync makes the kernel registration for fd match mask. Exactly one of
// epoll_ctl ADD/MOD/DEL is issued, or none when the table already matches.
func (p *Epoll) Sync(fd int, mask api.Mask) error {
	if fd < 0 {
		return nil
	}
	old, registered := p.state[fd]
	switch {
	case !registered && mask == 0:
		return nil
	case !registered:
		ev := &unix.EpollEvent{Fd: int32(fd), Events: maskToEpoll(mask)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
			return os.NewSyscallError("epoll_ctl add", err)
		}
		p.state[fd] = mask
	case mask == 0:
		delete(p.state, fd)
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			// close(2) drops the kernel registration on its own, so a
			// missing entry here means the table was stale, not wrong.
			if err == unix.ENOENT || err == unix.EBADF {
				p.log.Debug().Int("fd", fd).Msg("unregister of already-dropped descriptor")
				return nil
			}
			return os.NewSyscallError("epoll_ctl del", err)
		}
	case old == mask:
		return nil
	default:
		ev := &unix.EpollEvent{Fd: int32(fd), Events: maskToEpoll(mask)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
			return os.NewSyscallError("epoll_ctl mod", err)
		}
		p.state[fd] = mask
	}
	return nil
}

// Registered returns the mask currently registered for fd, if any.
func (p *Epoll) Registered(fd int) (api.Mask, bool) {
	m, ok := p.state[fd]
	return m, ok
}

// Wait blocks up to timeoutMs milliseconds and fills events with ready
// descriptors. An interrupted wait reports zero events instead of an error.
func (p *Epoll) Wait(events []api.Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		events[i] = api.Event{FD: int(raw[i].Fd), Ready: epollToMask(raw[i].Events)}
	}
	return n, nil
}

// Close releases the epoll descriptor and forgets all registrations.
func (p *Epoll) Close() error {
	if p.epfd < 0 {
		return nil
	}
	err := os.NewSyscallError("close", unix.Close(p.epfd))
	p.epfd = -1
	p.state = make(map[int]api.Mask)
	return err
}

// maskToEpoll translates an interest mask into epoll registration flags.
func maskToEpoll(m api.Mask) uint32 {
	var ev uint32
	if m&api.MaskRead != 0 {
		ev |= unix.EPOLLIN
	}
	if m&api.MaskWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if m&api.MaskExcept != 0 {
		ev |= unix.EPOLLPRI
	}
	return ev
}

// epollToMask translates reported epoll flags into a ready mask. Error and
// hangup conditions surface as both read and write readiness so the owning
// callback observes the failure on its next operation.
func epollToMask(ev uint32) api.Mask {
	var m api.Mask
	if ev&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= api.MaskRead
	}
	if ev&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= api.MaskWrite
	}
	if ev&unix.EPOLLPRI != 0 {
		m |= api.MaskExcept
	}
	return m
}
