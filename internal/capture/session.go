// Package capture manages one capture device and its ring of mapped frame
// buffers.
//
// A Session moves through Closed, Opened, Configured and Streaming. Every
// buffer in the ring is either queued to the driver or filled and held by
// the caller; AcquireFrame moves one slot from queued to filled and
// ReleaseFrame moves it back. Frames can be pulled with AcquireFrame or pushed
// to a FrameHandler when the session is attached to a reactor.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"
)

// MinBuffers is the smallest ring that can capture continuously.
const MinBuffers = 2

// DefaultBuffers is the ring size requested when none is configured.
const DefaultBuffers = 4

// acquirePollSlice bounds a single blocking poll in AcquireFrame.
const acquirePollSlice = time.Second

// State is the lifecycle stage of a Session.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Frame is one filled buffer. Data aliases driver memory and is only valid
// until the frame is released.
type Frame struct {
	Index     int
	Length    int
	Sequence  uint32
	Timestamp time.Duration
	Keyframe  bool
	Data      []byte
}

// RingStats is a snapshot of ring occupancy and delivery counters.
type RingStats struct {
	Slots     int
	Queued    int
	Filled    int
	Delivered uint64
	NotReady  uint64
	Recovered uint64
}

// Session owns one open capture device. Methods are safe for concurrent use;
// frame delivery is serialized with StopStreaming, Detach and Close, so once
// those return no handler call is in flight.
type Session struct {
	mu     sync.Mutex
	path   string
	driver Driver
	logger *slog.Logger
	state  State

	requested Format
	format    Format
	ring      *ring

	handler   FrameHandler
	onError   func(error)
	onSkip    func(error)
	registrar Registrar
	attached  bool

	delivered uint64
	notReady  uint64
	recovered uint64
}

type options struct {
	logger *slog.Logger
	opener func(path string) (Driver, error)
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDriver makes Open use d instead of opening path.
func WithDriver(d Driver) Option {
	return func(o *options) {
		o.opener = func(string) (Driver, error) { return d, nil }
	}
}

// WithOpener replaces the function that turns a path into a Driver.
func WithOpener(fn func(path string) (Driver, error)) Option {
	return func(o *options) {
		o.opener = fn
	}
}

// Open acquires the device at path. Paths starting with "synthetic:" are
// served by the synthetic driver; anything else is a V4L2 node or stable id.
func Open(path string, opts ...Option) (*Session, error) {
	o := options{
		logger: slog.Default().With("component", "capture"),
		opener: openDriver,
	}
	for _, opt := range opts {
		opt(&o)
	}

	d, err := o.opener(path)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)}
	}

	o.logger.Debug("Capture device opened", "path", path, "fd", d.Fd())
	return &Session{
		path:   path,
		driver: d,
		logger: o.logger.With("device", path),
		state:  StateOpened,
	}, nil
}

// Path returns the device path the session was opened with.
func (s *Session) Path() string {
	return s.path
}

// Fd returns the device descriptor used for readiness notification.
func (s *Session) Fd() int {
	return s.driver.Fd()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the negotiated format. It is zero before Configure.
func (s *Session) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Requested returns the format passed to Configure.
func (s *Session) Requested() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Configure negotiates req with the device and returns the values the device
// actually selected. Callers must size buffers from the returned format.
func (s *Session) Configure(req Format) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened {
		return Format{}, s.errorf("configure", "%w: %s", ErrInvalidState, s.state)
	}
	if req.Width <= 0 || req.Height <= 0 {
		err := s.errorf("configure", "%w: geometry %dx%d", ErrUnsupportedFormat, req.Width, req.Height)
		s.closeLocked()
		return Format{}, err
	}

	got, err := s.driver.Negotiate(req)
	if err != nil {
		s.closeLocked()
		return Format{}, s.errorf("configure", "%w: %s: %w", ErrUnsupportedFormat, req, err)
	}
	if !got.PixelFormat.Known() {
		s.closeLocked()
		return Format{}, s.errorf("configure", "%w: device selected %s", ErrUnsupportedFormat, got.PixelFormat)
	}
	if got.PixelFormat != req.PixelFormat || got.Width != req.Width || got.Height != req.Height {
		s.logger.Info("Device adjusted capture format", "requested", req.String(), "negotiated", got.String())
	}

	s.requested = req
	s.format = got
	s.state = StateConfigured
	return got, nil
}

// AllocateRing requests count buffers, maps each one and queues all of them.
// It returns the number of buffers the driver granted.
func (s *Session) AllocateRing(count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured || s.ring != nil {
		return 0, s.errorf("allocate", "%w: %s", ErrInvalidState, s.state)
	}
	if count < MinBuffers {
		s.closeLocked()
		return 0, s.errorf("allocate", "%w: requested %d, need at least %d", ErrInsufficientBuffers, count, MinBuffers)
	}

	granted, err := s.driver.RequestBuffers(count)
	if err != nil {
		s.closeLocked()
		return 0, s.errorf("allocate", "%w: %w", ErrInsufficientBuffers, err)
	}
	if granted < MinBuffers {
		s.closeLocked()
		return 0, s.errorf("allocate", "%w: device granted %d of %d", ErrInsufficientBuffers, granted, count)
	}

	s.ring = newRing(granted)
	for i := 0; i < granted; i++ {
		buf, err := s.driver.MapBuffer(i)
		if err != nil {
			s.closeLocked()
			return 0, s.errorf("allocate", "%w: %w", ErrDeviceUnavailable, err)
		}
		s.ring.bufs[i] = buf
	}
	for i := 0; i < granted; i++ {
		if err := s.driver.QueueBuffer(i); err != nil {
			s.closeLocked()
			return 0, s.errorf("allocate", "%w: %w", ErrDeviceUnavailable, err)
		}
	}
	s.ring.setAll(SlotQueued)

	if granted != count {
		s.logger.Info("Device granted a different buffer count", "requested", count, "granted", granted)
	}
	return granted, nil
}

// Start turns streaming on. Every ring buffer must be queued.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured || s.ring == nil {
		return s.errorf("start", "%w: %s", ErrInvalidState, s.state)
	}
	if q := s.ring.count(SlotQueued); q != s.ring.len() {
		return s.errorf("start", "%w: %d of %d buffers queued", ErrInvalidState, q, s.ring.len())
	}

	if err := s.driver.StreamOn(); err != nil {
		s.closeLocked()
		return s.errorf("start", "%w: %w", ErrDeviceLost, err)
	}
	s.state = StateStreaming
	s.logger.Debug("Streaming started", "format", s.format.String(), "buffers", s.ring.len())
	return nil
}

// StopStreaming turns streaming off and requeues every buffer so Start can be
// called again. Frames still held by the caller become invalid. Calling it
// when not streaming does nothing.
func (s *Session) StopStreaming() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	if s.state != StateStreaming {
		return nil
	}

	if err := s.driver.StreamOff(); err != nil {
		s.closeLocked()
		return s.errorf("stop", "%w: %w", ErrDeviceLost, err)
	}
	s.state = StateConfigured

	// STREAMOFF hands every buffer back to userspace.
	for i := 0; i < s.ring.len(); i++ {
		if err := s.driver.QueueBuffer(i); err != nil {
			s.closeLocked()
			return s.errorf("stop", "%w: requeue %d: %w", ErrDeviceLost, i, err)
		}
	}
	s.ring.setAll(SlotQueued)
	s.logger.Debug("Streaming stopped")
	return nil
}

// AcquireFrame waits up to timeout for a filled buffer and takes ownership of
// it. A negative timeout waits until a frame arrives or the session leaves the
// streaming state; zero only checks. When nothing is ready it returns a
// zero-length Frame and ErrNotReady. The caller must call ReleaseFrame exactly
// once for every frame returned without error.
func (s *Session) AcquireFrame(timeout time.Duration) (Frame, error) {
	s.mu.Lock()
	if s.state != StateStreaming {
		state := s.state
		s.mu.Unlock()
		return Frame{}, s.errorf("acquire", "%w: %s", ErrInvalidState, state)
	}
	fd := s.driver.Fd()
	s.mu.Unlock()

	ready, err := true, error(nil)
	if timeout != 0 {
		ready, err = s.waitFrame(fd, timeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return Frame{}, s.errorf("acquire", "%w: %s", ErrInvalidState, s.state)
	}
	if err != nil {
		s.closeLocked()
		return Frame{}, s.errorf("acquire", "%w: poll: %w", ErrDeviceLost, err)
	}
	if !ready {
		s.notReady++
		return Frame{}, ErrNotReady
	}
	return s.acquireLocked()
}

// waitFrame polls fd in slices of at most acquirePollSlice and stops early
// once the session is no longer streaming.
func (s *Session) waitFrame(fd int, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		slice := acquirePollSlice
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			slice = min(slice, remaining)
		}

		ready, err := waitReadable(fd, slice)
		if ready || err != nil {
			return ready, err
		}

		s.mu.Lock()
		streaming := s.state == StateStreaming
		s.mu.Unlock()
		if !streaming {
			return false, nil
		}
	}
}

func (s *Session) acquireLocked() (Frame, error) {
	var d Dequeued
	for {
		var err error
		d, err = s.driver.DequeueBuffer()
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.EAGAIN):
			s.notReady++
			return Frame{}, ErrNotReady
		case errors.Is(err, syscall.EIO):
			s.recovered++
			return Frame{}, s.errorf("acquire", "%w: %w", ErrFrameIO, err)
		default:
			s.closeLocked()
			return Frame{}, s.errorf("acquire", "%w: %w", ErrDeviceLost, err)
		}
	}

	if !s.ring.valid(d.Index) {
		s.closeLocked()
		return Frame{}, s.errorf("acquire", "%w: driver returned index %d of %d", ErrRingCorrupt, d.Index, s.ring.len())
	}
	if s.ring.slots[d.Index] != SlotQueued {
		s.closeLocked()
		return Frame{}, s.errorf("acquire", "%w: buffer %d dequeued while %s", ErrRingCorrupt, d.Index, s.ring.slots[d.Index])
	}
	s.ring.slots[d.Index] = SlotFilled

	if d.Corrupt {
		s.recovered++
		if err := s.releaseLocked(d.Index); err != nil {
			return Frame{}, err
		}
		return Frame{}, s.errorf("acquire", "%w: buffer %d flagged corrupt", ErrFrameIO, d.Index)
	}

	buf := s.ring.bufs[d.Index]
	length := d.BytesUsed
	if length < 0 || length > len(buf) {
		length = len(buf)
	}
	s.delivered++
	return Frame{
		Index:     d.Index,
		Length:    length,
		Sequence:  d.Sequence,
		Timestamp: d.Timestamp,
		Keyframe:  d.Keyframe,
		Data:      buf[:length],
	}, nil
}

// ReleaseFrame returns buffer index to the driver. Releasing a buffer that is
// already queued fails with ErrDoubleRelease and changes nothing.
func (s *Session) ReleaseFrame(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return s.errorf("release", "%w: %s", ErrInvalidState, s.state)
	}
	if !s.ring.valid(index) {
		return s.errorf("release", "%w: %d of %d", ErrInvalidIndex, index, s.ring.len())
	}
	if s.ring.slots[index] == SlotQueued {
		return s.errorf("release", "%w: buffer %d", ErrDoubleRelease, index)
	}
	return s.releaseLocked(index)
}

func (s *Session) releaseLocked(index int) error {
	if err := s.driver.QueueBuffer(index); err != nil {
		s.closeLocked()
		return s.errorf("release", "%w: requeue %d: %w", ErrDeviceLost, index, err)
	}
	s.ring.slots[index] = SlotQueued
	return nil
}

// Stats returns a snapshot of ring occupancy and counters.
func (s *Session) Stats() RingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := RingStats{
		Delivered: s.delivered,
		NotReady:  s.notReady,
		Recovered: s.recovered,
	}
	if s.ring != nil {
		st.Slots = s.ring.len()
		st.Queued = s.ring.count(SlotQueued)
		st.Filled = s.ring.count(SlotFilled)
	}
	return st
}

// Close stops streaming, unmaps the ring and closes the device, in that
// order, undoing whatever the current state holds. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.state == StateClosed {
		return nil
	}

	var errs []error
	s.detachLocked()
	if s.state == StateStreaming {
		if err := s.driver.StreamOff(); err != nil {
			errs = append(errs, fmt.Errorf("stream off: %w", err))
		}
	}
	if s.ring != nil {
		if err := s.ring.release(s.driver.UnmapBuffer); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	s.state = StateClosed
	s.logger.Debug("Capture session closed")
	return errors.Join(errs...)
}

func (s *Session) errorf(op, format string, args ...any) error {
	return &Error{Op: op, Path: s.path, Err: fmt.Errorf(format, args...)}
}
