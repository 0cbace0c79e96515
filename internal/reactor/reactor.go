// Package reactor multiplexes readiness notifications for many file
// descriptors on a single goroutine.
//
// A Loop owns the fd to Handler associations for read and write readiness.
// Handlers run synchronously on the goroutine that called Run, so a slow
// handler delays every other registered descriptor.
//
// Write registrations are one-shot: the registration is removed as its handler
// fires, and a handler that needs another notification registers again.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultWaitTimeout bounds each readiness wait so Stop is observed even with no active descriptors.
const DefaultWaitTimeout = time.Second

var (
	// ErrRegistration is wrapped by every Register failure.
	ErrRegistration = errors.New("reactor: registration failed")
	// ErrRunning is returned by Run when the loop is already running.
	ErrRunning = errors.New("reactor: already running")
	// ErrClosed is returned when using a loop after Close.
	ErrClosed = errors.New("reactor: closed")
)

// Direction selects read or write readiness.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Handler is notified when its descriptor becomes ready.
type Handler interface {
	OnReady()
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func()

// OnReady calls f.
func (f HandlerFunc) OnReady() { f() }

type registration struct {
	read  Handler
	write Handler
}

func (r registration) interest() interest {
	return interest{read: r.read != nil, write: r.write != nil}
}

// Loop is a readiness event loop backed by the platform poller.
type Loop struct {
	poller      poller
	waitTimeout time.Duration
	maxEvents   int
	logger      *slog.Logger
	onDispatch  func(fd int, dir Direction)

	mu      sync.Mutex
	regs    map[int]registration
	closed  bool
	running atomic.Bool
	stop    atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithWaitTimeout sets the upper bound on a single readiness wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.waitTimeout = d
		}
	}
}

// WithMaxEvents bounds how many ready descriptors one wait can report.
func WithMaxEvents(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxEvents = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithDispatchHook registers fn to be called before every handler dispatch.
func WithDispatchHook(fn func(fd int, dir Direction)) Option {
	return func(l *Loop) {
		l.onDispatch = fn
	}
}

// New creates a loop using the platform's readiness primitive.
func New(opts ...Option) (*Loop, error) {
	l := &Loop{
		waitTimeout: DefaultWaitTimeout,
		maxEvents:   defaultMaxEvents,
		logger:      slog.Default().With("component", "reactor"),
		regs:        make(map[int]registration),
	}
	for _, opt := range opts {
		opt(l)
	}

	p, err := newPoller(l.maxEvents)
	if err != nil {
		return nil, fmt.Errorf("create poller: %w", err)
	}
	l.poller = p
	return l, nil
}

// Register associates h with fd for the given direction and puts fd in
// non-blocking mode. Registering an existing (fd, dir) pair replaces its handler.
func (l *Loop) Register(fd int, dir Direction, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: fd %d: nil handler", ErrRegistration, fd)
	}
	if dir != Read && dir != Write {
		return fmt.Errorf("%w: fd %d: %v", ErrRegistration, fd, dir)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("%w: fd %d: %w", ErrRegistration, fd, ErrClosed)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("%w: fd %d: set nonblocking: %w", ErrRegistration, fd, err)
	}

	old := l.regs[fd]
	next := old
	if dir == Read {
		next.read = h
	} else {
		next.write = h
	}

	if err := l.poller.update(fd, old.interest(), next.interest()); err != nil {
		return fmt.Errorf("%w: fd %d %s: %w", ErrRegistration, fd, dir, err)
	}
	l.regs[fd] = next
	return nil
}

// Unregister removes the (fd, dir) association. It reports whether one existed
// and is safe to call repeatedly.
func (l *Loop) Unregister(fd int, dir Direction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unregisterLocked(fd, dir)
}

func (l *Loop) unregisterLocked(fd int, dir Direction) bool {
	old, ok := l.regs[fd]
	if !ok {
		return false
	}

	next := old
	switch dir {
	case Read:
		if old.read == nil {
			return false
		}
		next.read = nil
	case Write:
		if old.write == nil {
			return false
		}
		next.write = nil
	default:
		return false
	}

	if !l.closed {
		if err := l.poller.update(fd, old.interest(), next.interest()); err != nil {
			// A closed descriptor has already left the kernel set.
			l.logger.Debug("Poller update failed during unregister", "fd", fd, "direction", dir, "error", err)
		}
	}

	if next.read == nil && next.write == nil {
		delete(l.regs, fd)
	} else {
		l.regs[fd] = next
	}
	return true
}

// Registered reports whether a handler is associated with (fd, dir).
func (l *Loop) Registered(fd int, dir Direction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	reg, ok := l.regs[fd]
	if !ok {
		return false
	}
	if dir == Read {
		return reg.read != nil
	}
	return reg.write != nil
}

// Len returns the number of descriptors with at least one registration.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.regs)
}

// Run waits for readiness and dispatches handlers until Stop is called, ctx
// is done, or the wait fails. A wait failure stops the loop and is returned.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	l.stop.Store(false)
	l.logger.Debug("Reactor loop started", "wait_timeout", l.waitTimeout)
	defer l.logger.Debug("Reactor loop stopped")

	for !l.stop.Load() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		events, err := l.poller.wait(l.waitTimeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			l.Stop()
			return fmt.Errorf("reactor wait: %w", err)
		}

		for _, ev := range events {
			l.dispatch(ev)
		}
	}
	return nil
}

func (l *Loop) dispatch(ev readiness) {
	l.mu.Lock()
	reg, ok := l.regs[ev.fd]
	if !ok {
		l.mu.Unlock()
		l.logger.Debug("Readiness for unregistered descriptor", "fd", ev.fd)
		return
	}

	var read, write Handler
	if ev.readable {
		read = reg.read
	}
	if ev.writable && reg.write != nil {
		write = reg.write
		l.unregisterLocked(ev.fd, Write)
	}
	l.mu.Unlock()

	if read != nil {
		l.invoke(ev.fd, Read, read)
	}
	if write != nil {
		l.invoke(ev.fd, Write, write)
	}
}

func (l *Loop) invoke(fd int, dir Direction, h Handler) {
	if l.onDispatch != nil {
		l.onDispatch(fd, dir)
	}
	h.OnReady()
}

// Stop asks the loop to exit after the current wait returns. An in-flight
// handler always completes.
func (l *Loop) Stop() {
	l.stop.Store(true)
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Close releases the poller and drops all registrations. Call it after Run returns.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.regs = make(map[int]registration)
	return l.poller.close()
}
