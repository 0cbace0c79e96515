//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type epoller struct {
	fd     int
	events []unix.EpollEvent
	ready  []readiness
}

func newPoller(maxEvents int) (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epoller{
		fd:     fd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]readiness, 0, maxEvents),
	}, nil
}

func (p *epoller) update(fd int, old, next interest) error {
	ev := unix.EpollEvent{Fd: int32(fd)}
	if next.read {
		ev.Events |= unix.EPOLLIN
	}
	if next.write {
		ev.Events |= unix.EPOLLOUT
	}

	switch {
	case old == next:
		return nil
	case old.none():
		return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev)
	case next.none():
		return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	default:
		return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
}

func (p *epoller) wait(timeout time.Duration) ([]readiness, error) {
	n, err := unix.EpollWait(p.fd, p.events, int(timeout.Milliseconds()))
	if err != nil {
		return nil, err
	}

	p.ready = p.ready[:0]
	for _, ev := range p.events[:n] {
		hangup := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		p.ready = append(p.ready, readiness{
			fd:       int(ev.Fd),
			readable: ev.Events&unix.EPOLLIN != 0 || hangup,
			writable: ev.Events&unix.EPOLLOUT != 0 || ev.Events&unix.EPOLLERR != 0,
		})
	}
	return p.ready, nil
}

func (p *epoller) close() error {
	return unix.Close(p.fd)
}
