package capture

import (
	"errors"

	"github.com/smazurov/framereactor/internal/reactor"
)

// FrameHandler consumes one frame in push mode. frame.Data is released as
// soon as the handler returns and must not be retained. A non-nil error is
// treated as a broken pipeline and closes the session.
type FrameHandler func(frame Frame) error

// Registrar is the part of a reactor a Session needs for push mode.
type Registrar interface {
	Register(fd int, dir reactor.Direction, h reactor.Handler) error
	Unregister(fd int, dir reactor.Direction) bool
}

// SetFrameHandler installs the push-mode consumer.
func (s *Session) SetFrameHandler(h FrameHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// SetErrorHandler installs a callback for errors that end push-mode delivery.
// It is called with the session lock held and must not call back into the session.
func (s *Session) SetErrorHandler(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// SetSkipHandler installs a callback for frames lost to recoverable I/O errors
// in push mode. The same locking rule as SetErrorHandler applies.
func (s *Session) SetSkipHandler(fn func(error)) {
	s.mu.Lock()
	s.onSkip = fn
	s.mu.Unlock()
}

// Attach registers the session for read readiness on r. Each readiness event
// delivers at most one frame to the frame handler.
func (s *Session) Attach(r Registrar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return s.errorf("attach", "%w: %s", ErrInvalidState, s.state)
	}
	if s.attached {
		return s.errorf("attach", "%w: already attached", ErrInvalidState)
	}
	if err := r.Register(s.driver.Fd(), reactor.Read, s); err != nil {
		return s.errorf("attach", "%w", err)
	}
	s.registrar = r
	s.attached = true
	return nil
}

// Detach removes the reactor registration. No frame is delivered after it returns.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Session) detachLocked() {
	if !s.attached {
		return
	}
	s.registrar.Unregister(s.driver.Fd(), reactor.Read)
	s.registrar = nil
	s.attached = false
}

// OnReady implements reactor.Handler. It runs on the reactor goroutine.
func (s *Session) OnReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return
	}

	frame, err := s.acquireLocked()
	switch {
	case err == nil:
	case errors.Is(err, ErrNotReady):
		return
	case errors.Is(err, ErrFrameIO):
		s.logger.Warn("Skipping frame after I/O error", "error", err)
		if s.onSkip != nil {
			s.onSkip(err)
		}
		return
	default:
		s.report(err)
		return
	}

	if s.handler != nil {
		if herr := s.handler(frame); herr != nil {
			relErr := s.releaseLocked(frame.Index)
			s.closeLocked()
			s.report(errors.Join(&Error{Op: "deliver", Path: s.path, Err: herr}, relErr))
			return
		}
	}
	if err := s.releaseLocked(frame.Index); err != nil {
		s.report(err)
	}
}

func (s *Session) report(err error) {
	s.logger.Error("Frame delivery stopped", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}
