//go:build linux || darwin

package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/framereactor/internal/reactor"
)

func startLoop(t *testing.T) *reactor.Loop {
	t.Helper()
	loop, err := reactor.New(reactor.WithLogger(testLogger()), reactor.WithWaitTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("reactor.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("reactor did not stop")
		}
		loop.Close()
	})
	return loop
}

func TestPushDelivery(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)
	loop := startLoop(t)

	seqs := make(chan uint32, 8)
	s.SetFrameHandler(func(f Frame) error {
		if f.Length != len(f.Data) {
			t.Errorf("frame Length %d != len(Data) %d", f.Length, len(f.Data))
		}
		seqs <- f.Sequence
		return nil
	})
	if err := s.Attach(loop); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := s.Attach(loop); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Attach() error = %v, want ErrInvalidState", err)
	}

	for want := uint32(0); want < 6; want++ {
		if !d.Fill() {
			t.Fatalf("Fill() #%d = false", want)
		}
		select {
		case got := <-seqs:
			if got != want {
				t.Errorf("delivered sequence %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not delivered", want)
		}
	}

	s.Detach()
	if loop.Registered(s.Fd(), reactor.Read) {
		t.Error("descriptor still registered after Detach()")
	}
	if st := s.Stats(); st.Queued != 3 || st.Delivered != 6 {
		t.Errorf("Stats() = %+v, want 3 queued, 6 delivered", st)
	}
}

func TestPushHandlerErrorClosesSession(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)
	loop := startLoop(t)

	errSink := errors.New("sink broken")
	s.SetFrameHandler(func(Frame) error { return errSink })
	reported := make(chan error, 1)
	s.SetErrorHandler(func(err error) { reported <- err })

	if err := s.Attach(loop); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	d.Fill()

	select {
	case err := <-reported:
		if !errors.Is(err, errSink) {
			t.Errorf("reported error = %v, want %v", err, errSink)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}

	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
	if d.Unmaps() != 3 {
		t.Errorf("Unmaps() = %d, want 3", d.Unmaps())
	}
	if loop.Len() != 0 {
		t.Errorf("reactor still holds %d registrations", loop.Len())
	}
}

func TestPushHandlerErrorKeepsRequeueFailure(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)
	loop := startLoop(t)

	errSink := errors.New("sink broken")
	s.SetFrameHandler(func(Frame) error {
		// The device disappears underneath the handler, so the requeue fails too.
		d.Close()
		return errSink
	})
	reported := make(chan error, 1)
	s.SetErrorHandler(func(err error) { reported <- err })

	if err := s.Attach(loop); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	d.Fill()

	select {
	case err := <-reported:
		if !errors.Is(err, errSink) {
			t.Errorf("reported error = %v, want %v", err, errSink)
		}
		if !errors.Is(err, ErrDeviceLost) {
			t.Errorf("reported error = %v, want ErrDeviceLost from the failed requeue", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}

	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
}

func TestPushDeviceLostReported(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)
	loop := startLoop(t)

	reported := make(chan error, 1)
	s.SetErrorHandler(func(err error) { reported <- err })
	if err := s.Attach(loop); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	d.FailNext(errors.New("device unplugged"))
	select {
	case err := <-reported:
		if !errors.Is(err, ErrDeviceLost) {
			t.Errorf("reported error = %v, want ErrDeviceLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
}

func TestAttachClosedSession(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{})
	s := streamingSession(t, d, 2)
	s.Close()

	loop := startLoop(t)
	if err := s.Attach(loop); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Attach() on closed session error = %v, want ErrInvalidState", err)
	}
}
