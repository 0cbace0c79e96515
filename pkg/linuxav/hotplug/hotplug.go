//go:build linux

// Package hotplug reads kernel device uevents from a netlink socket.
//
// A Monitor does not own a goroutine. Its descriptor is non-blocking and
// OnReady drains every pending datagram, so it can be registered for read
// readiness on an event loop.
package hotplug

import (
	"bytes"
	"errors"
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Actions the kernel reports.
const (
	ActionAdd     = "add"
	ActionRemove  = "remove"
	ActionChange  = "change"
	ActionMove    = "move"
	ActionBind    = "bind"
	ActionUnbind  = "unbind"
	ActionOnline  = "online"
	ActionOffline = "offline"
)

// Subsystems worth filtering on.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemUSB         = "usb"
	SubsystemSound       = "sound"
)

// netlinkKobjectUEvent is NETLINK_KOBJECT_UEVENT.
const netlinkKobjectUEvent = 15

// maxUEvent bounds one datagram; the kernel caps uevents well below this.
const maxUEvent = 8192

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" when the event
// carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return path.Clean(e.DevName)
	}
	return "/dev/" + e.DevName
}

// Monitor delivers uevents from a netlink socket to a handler.
type Monitor struct {
	fd      int
	buf     []byte
	logger  *slog.Logger
	mu      sync.RWMutex
	filters map[string]struct{}
	handler func(Event)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHandler sets the function called for every event that passes the filters.
func WithHandler(fn func(Event)) Option {
	return func(m *Monitor) {
		m.handler = fn
	}
}

// NewMonitor opens a non-blocking socket bound to the kernel uevent group.
func NewMonitor(opts ...Option) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return newMonitor(fd, opts...), nil
}

func newMonitor(fd int, opts ...Option) *Monitor {
	m := &Monitor{
		fd:      fd,
		buf:     make([]byte, maxUEvent),
		logger:  slog.Default().With("component", "hotplug"),
		filters: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fd returns the socket descriptor to register for read readiness.
func (m *Monitor) Fd() int {
	return m.fd
}

// AddSubsystemFilter restricts delivery to the named subsystems. With no
// filters every event is delivered.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.mu.Lock()
	m.filters[subsystem] = struct{}{}
	m.mu.Unlock()
}

// SetHandler replaces the event handler.
func (m *Monitor) SetHandler(fn func(Event)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

func (m *Monitor) accept(subsystem string) (func(Event), bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.handler == nil {
		return nil, false
	}
	if len(m.filters) == 0 {
		return m.handler, true
	}
	_, ok := m.filters[subsystem]
	return m.handler, ok
}

// OnReady reads every queued datagram and hands each matching event to the
// handler. It returns once the socket would block.
func (m *Monitor) OnReady() {
	for {
		n, err := unix.Read(m.fd, m.buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.ENOBUFS):
			// The receive queue overflowed and events were lost. Keep reading.
			m.logger.Warn("Uevent queue overflow")
			continue
		case err != nil:
			m.logger.Error("Uevent read failed", "error", err)
			return
		case n <= 0:
			return
		}

		ev := ParseUEvent(m.buf[:n])
		if ev == nil {
			continue
		}
		if fn, ok := m.accept(ev.Subsystem); ok {
			fn(*ev)
		}
	}
}

// Close closes the socket. Unregister it from any event loop first.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// ParseUEvent decodes "ACTION@KOBJ\0KEY=VALUE\0...". A libudev header in front
// of the payload is skipped. It returns nil when no header is found.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}
	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipUdevHeader(data)
	}

	fields := bytes.Split(data, []byte{0})
	header := string(fields[0])
	action, kobj, ok := strings.Cut(header, "@")
	if !ok || action == "" {
		return nil
	}

	ev := &Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVTYPE":
			ev.DevType = value
		case "DEVNAME":
			ev.DevName = value
		case "DEVPATH":
			ev.DevPath = value
		}
	}
	return ev
}

// skipUdevHeader finds the first NUL-terminated field that looks like
// "action@path" after the binary libudev header.
func skipUdevHeader(data []byte) []byte {
	for i := 0; i < len(data)-1; i++ {
		if data[i] != 0 {
			continue
		}
		rest := data[i+1:]
		field := rest
		if end := bytes.IndexByte(rest, 0); end >= 0 {
			field = rest[:end]
		}
		if at := bytes.IndexByte(field, '@'); at > 0 && at < 20 {
			return rest
		}
	}
	return data
}
