//go:build darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	fd     int
	events []unix.Kevent_t
	ready  []readiness
}

func newPoller(maxEvents int) (poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	return &kqueuePoller{
		fd:     fd,
		events: make([]unix.Kevent_t, maxEvents),
		ready:  make([]readiness, 0, maxEvents),
	}, nil
}

func (p *kqueuePoller) update(fd int, old, next interest) error {
	var changes []unix.Kevent_t
	add := func(filter int16, flags uint16) {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, int(filter), int(flags))
		changes = append(changes, ev)
	}

	if next.read && !old.read {
		add(unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	} else if !next.read && old.read {
		add(unix.EVFILT_READ, unix.EV_DELETE)
	}
	if next.write && !old.write {
		add(unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	} else if !next.write && old.write {
		add(unix.EVFILT_WRITE, unix.EV_DELETE)
	}

	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) wait(timeout time.Duration) ([]readiness, error) {
	ts := unix.NsecToTimespec(int64(timeout))
	n, err := unix.Kevent(p.fd, nil, p.events, &ts)
	if err != nil {
		return nil, err
	}

	p.ready = p.ready[:0]
	for _, ev := range p.events[:n] {
		r := readiness{fd: int(ev.Ident)}
		switch ev.Filter {
		case unix.EVFILT_READ:
			r.readable = true
		case unix.EVFILT_WRITE:
			r.writable = true
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			r.readable = true
		}
		p.ready = append(p.ready, r)
	}
	return p.ready, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.fd)
}
