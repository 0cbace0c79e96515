//go:build linux || darwin

package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/framereactor/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSynthetic(t *testing.T, opts SyntheticOptions) *SyntheticDriver {
	t.Helper()
	d, err := NewSynthetic(opts)
	if err != nil {
		t.Fatalf("NewSynthetic() error = %v", err)
	}
	return d
}

// streamingSession returns a session over d that is configured for YUYV and streaming.
func streamingSession(t *testing.T, d *SyntheticDriver, buffers int) *Session {
	t.Helper()
	s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.Configure(Format{Width: 640, Height: 480, FPS: 30, PixelFormat: transform.YUYV}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := s.AllocateRing(buffers); err != nil {
		t.Fatalf("AllocateRing() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func TestSessionAcquireRelease(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{Width: 640, Height: 480, MaxBuffers: 3})
	s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.State() != StateOpened {
		t.Fatalf("State() = %s, want opened", s.State())
	}

	got, err := s.Configure(Format{Width: 640, Height: 480, FPS: 30, PixelFormat: transform.YUYV})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if got.Width != 640 || got.Height != 480 || got.PixelFormat != transform.YUYV {
		t.Errorf("Configure() = %s, want 640x480 YUYV", got)
	}
	if got.SizeImage != 640*480*2 {
		t.Errorf("SizeImage = %d, want %d", got.SizeImage, 640*480*2)
	}

	n, err := s.AllocateRing(3)
	if err != nil {
		t.Fatalf("AllocateRing() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("AllocateRing() granted %d, want 3", n)
	}
	if st := s.Stats(); st.Queued != 3 || st.Filled != 0 {
		t.Errorf("Stats() after allocate = %+v, want 3 queued", st)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	frame, err := s.AcquireFrame(0)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("AcquireFrame() before fill error = %v, want ErrNotReady", err)
	}
	if frame.Length != 0 || frame.Data != nil {
		t.Errorf("AcquireFrame() not ready returned %d bytes", frame.Length)
	}
	if !IsTransient(err) {
		t.Error("IsTransient(ErrNotReady) = false")
	}

	if !d.Fill() {
		t.Fatal("Fill() = false")
	}
	frame, err = s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() error = %v", err)
	}
	if frame.Index < 0 || frame.Index > 2 {
		t.Errorf("frame.Index = %d, want 0..2", frame.Index)
	}
	if frame.Length != 640*480*2 || len(frame.Data) != frame.Length {
		t.Errorf("frame length = %d (data %d), want %d", frame.Length, len(frame.Data), 640*480*2)
	}
	if st := s.Stats(); st.Queued != 2 || st.Filled != 1 {
		t.Errorf("Stats() while held = %+v, want 2 queued 1 filled", st)
	}

	if err := s.ReleaseFrame(frame.Index); err != nil {
		t.Fatalf("ReleaseFrame() error = %v", err)
	}
	if st := s.Stats(); st.Queued != 3 {
		t.Errorf("Stats().Queued after release = %d, want 3", st.Queued)
	}
}

func TestSessionDoubleRelease(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	d.Fill()
	frame, err := s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() error = %v", err)
	}
	if err := s.ReleaseFrame(frame.Index); err != nil {
		t.Fatalf("ReleaseFrame() error = %v", err)
	}

	before := s.Stats()
	queuedBefore := d.Queued()
	err = s.ReleaseFrame(frame.Index)
	if !errors.Is(err, ErrDoubleRelease) {
		t.Fatalf("second ReleaseFrame() error = %v, want ErrDoubleRelease", err)
	}
	if after := s.Stats(); after != before {
		t.Errorf("Stats() changed after double release: %+v -> %+v", before, after)
	}
	if d.Queued() != queuedBefore {
		t.Errorf("driver queue changed after double release: %d -> %d", queuedBefore, d.Queued())
	}
	if s.State() != StateStreaming {
		t.Errorf("State() = %s, want streaming", s.State())
	}
}

func TestSessionReleaseInvalidIndex(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{})
	s := streamingSession(t, d, 4)

	for _, idx := range []int{-1, 4, 100} {
		if err := s.ReleaseFrame(idx); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("ReleaseFrame(%d) error = %v, want ErrInvalidIndex", idx, err)
		}
	}
}

func TestRingAccounting(t *testing.T) {
	for _, buffers := range []int{2, 3, 6} {
		t.Run(fmt.Sprintf("%d buffers", buffers), func(t *testing.T) {
			d := newSynthetic(t, SyntheticOptions{MaxBuffers: buffers})
			s := streamingSession(t, d, buffers)
			rng := rand.New(rand.NewSource(int64(buffers)))

			var held []Frame
			check := func(step int) {
				t.Helper()
				st := s.Stats()
				if st.Queued != buffers-len(held) || st.Filled != len(held) {
					t.Fatalf("step %d: queued %d filled %d, want %d/%d", step, st.Queued, st.Filled, buffers-len(held), len(held))
				}
				if st.Queued+st.Filled != st.Slots {
					t.Fatalf("step %d: queued %d + filled %d != slots %d", step, st.Queued, st.Filled, st.Slots)
				}
			}

			for step := 0; step < 200; step++ {
				acquire := len(held) == 0 || (len(held) < buffers && rng.Intn(2) == 0)
				if acquire {
					if !d.Fill() {
						t.Fatalf("step %d: Fill() with %d held = false", step, len(held))
					}
					frame, err := s.AcquireFrame(time.Second)
					if err != nil {
						t.Fatalf("step %d: AcquireFrame() error = %v", step, err)
					}
					held = append(held, frame)
				} else {
					i := rng.Intn(len(held))
					if err := s.ReleaseFrame(held[i].Index); err != nil {
						t.Fatalf("step %d: ReleaseFrame(%d) error = %v", step, held[i].Index, err)
					}
					held = append(held[:i], held[i+1:]...)
				}
				check(step)

				if len(held) == buffers {
					if d.Fill() {
						t.Fatalf("step %d: Fill() with every buffer held = true", step)
					}
					if _, err := s.AcquireFrame(0); !errors.Is(err, ErrNotReady) {
						t.Fatalf("step %d: AcquireFrame() with every buffer held error = %v, want ErrNotReady", step, err)
					}
					check(step)
				}
			}

			for len(held) > 0 {
				if err := s.ReleaseFrame(held[0].Index); err != nil {
					t.Fatalf("ReleaseFrame(%d) error = %v", held[0].Index, err)
				}
				held = held[1:]
			}
			check(-1)
		})
	}
}

func TestSessionSequenceOrder(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	for i := 0; i < 3; i++ {
		d.Fill()
	}
	for want := uint32(0); want < 3; want++ {
		frame, err := s.AcquireFrame(time.Second)
		if err != nil {
			t.Fatalf("AcquireFrame() error = %v", err)
		}
		if frame.Sequence != want {
			t.Errorf("Sequence = %d, want %d", frame.Sequence, want)
		}
		s.ReleaseFrame(frame.Index)
	}
}

func TestSessionConfigure(t *testing.T) {
	tests := []struct {
		name    string
		opts    SyntheticOptions
		req     Format
		want    Format
		wantErr error
	}{
		{
			name: "device adjusts geometry",
			opts: SyntheticOptions{Width: 640, Height: 480},
			req:  Format{Width: 1920, Height: 1080, FPS: 30, PixelFormat: transform.YUYV},
			want: Format{Width: 640, Height: 480, FPS: 30, PixelFormat: transform.YUYV},
		},
		{
			name: "device substitutes format",
			opts: SyntheticOptions{Formats: []transform.PixelFormat{transform.NV12}},
			req:  Format{Width: 640, Height: 480, PixelFormat: transform.YUYV},
			want: Format{Width: 640, Height: 480, FPS: 30, PixelFormat: transform.NV12},
		},
		{
			name:    "unknown device format",
			opts:    SyntheticOptions{Formats: []transform.PixelFormat{transform.PixelFormat(0x31323334)}},
			req:     Format{Width: 640, Height: 480, PixelFormat: transform.YUYV},
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "zero geometry",
			req:     Format{PixelFormat: transform.YUYV},
			wantErr: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newSynthetic(t, tt.opts)
			s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()

			got, err := s.Configure(tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Configure() error = %v, want %v", err, tt.wantErr)
				}
				if s.State() != StateClosed {
					t.Errorf("State() after failed configure = %s, want closed", s.State())
				}
				if !IsFatal(err) {
					t.Error("IsFatal() = false for setup failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if got.Width != tt.want.Width || got.Height != tt.want.Height ||
				got.FPS != tt.want.FPS || got.PixelFormat != tt.want.PixelFormat {
				t.Errorf("Configure() = %s, want %s", got, tt.want)
			}
			if s.Requested() != tt.req {
				t.Errorf("Requested() = %s, want %s", s.Requested(), tt.req)
			}
		})
	}
}

func TestConfigureOddGeometry(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		format  transform.PixelFormat
		wantErr error
	}{
		{name: "odd YUYV width", path: "synthetic:641x480@0", format: transform.YUYV, wantErr: ErrUnsupportedFormat},
		{name: "odd NV12 height", path: "synthetic:640x481@0", format: transform.NV12, wantErr: ErrUnsupportedFormat},
		{name: "odd YUV420 width", path: "synthetic:641x480@0", format: transform.YUV420, wantErr: ErrUnsupportedFormat},
		{name: "odd YUYV height", path: "synthetic:640x481@0", format: transform.YUYV},
		{name: "odd MJPEG geometry", path: "synthetic:641x481@0", format: transform.MJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseSyntheticPath(tt.path)
			if err != nil {
				t.Fatalf("parseSyntheticPath() error = %v", err)
			}
			opts.Formats = []transform.PixelFormat{tt.format}
			d := newSynthetic(t, opts)
			s, err := Open(tt.path, WithDriver(d), WithLogger(testLogger()))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()

			got, err := s.Configure(Format{Width: opts.Width, Height: opts.Height, PixelFormat: tt.format})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Configure() error = %v, want %v", err, tt.wantErr)
				}
				if s.State() != StateClosed {
					t.Errorf("State() after failed configure = %s, want closed", s.State())
				}
				return
			}
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if _, err := s.AllocateRing(2); err != nil {
				t.Fatalf("AllocateRing() error = %v", err)
			}
			if err := s.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			// Painting must stay inside the negotiated buffer.
			for range 3 {
				if !d.Fill() {
					t.Fatal("Fill() = false")
				}
				frame, err := s.AcquireFrame(time.Second)
				if err != nil {
					t.Fatalf("AcquireFrame() error = %v", err)
				}
				if frame.Length <= 0 || frame.Length > got.SizeImage {
					t.Errorf("Length = %d, want 1..%d", frame.Length, got.SizeImage)
				}
				if err := s.ReleaseFrame(frame.Index); err != nil {
					t.Fatalf("ReleaseFrame() error = %v", err)
				}
			}
		})
	}
}

func TestAllocateRingInsufficient(t *testing.T) {
	tests := []struct {
		name       string
		maxBuffers int
		request    int
	}{
		{"request below minimum", 4, 1},
		{"device grants too few", 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newSynthetic(t, SyntheticOptions{MaxBuffers: tt.maxBuffers})
			s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, err := s.Configure(Format{Width: 640, Height: 480, PixelFormat: transform.YUYV}); err != nil {
				t.Fatalf("Configure() error = %v", err)
			}

			_, err = s.AllocateRing(tt.request)
			if !errors.Is(err, ErrInsufficientBuffers) {
				t.Fatalf("AllocateRing(%d) error = %v, want ErrInsufficientBuffers", tt.request, err)
			}
			if s.State() != StateClosed {
				t.Errorf("State() = %s, want closed", s.State())
			}
		})
	}
}

func TestAllocateRingGrantsFewer(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if _, err := s.Configure(Format{Width: 640, Height: 480, PixelFormat: transform.YUYV}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	n, err := s.AllocateRing(8)
	if err != nil {
		t.Fatalf("AllocateRing() error = %v", err)
	}
	if n != 3 || s.Stats().Slots != 3 {
		t.Errorf("AllocateRing(8) = %d, slots %d, want 3", n, s.Stats().Slots)
	}
}

func TestAcquireRequiresStreaming(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{})
	s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := s.AcquireFrame(0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("AcquireFrame() before Start error = %v, want ErrInvalidState", err)
	}
	if err := s.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start() before Configure error = %v, want ErrInvalidState", err)
	}
}

func TestFrameIOErrorIsRecoverable(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	d.FailNext(syscall.EIO)
	_, err := s.AcquireFrame(time.Second)
	if !errors.Is(err, ErrFrameIO) {
		t.Fatalf("AcquireFrame() error = %v, want ErrFrameIO", err)
	}
	if !IsRecoverable(err) || IsFatal(err) {
		t.Errorf("IsRecoverable = %v, IsFatal = %v", IsRecoverable(err), IsFatal(err))
	}
	if s.State() != StateStreaming {
		t.Fatalf("State() = %s, want streaming", s.State())
	}

	d.Fill()
	frame, err := s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() after recovery error = %v", err)
	}
	s.ReleaseFrame(frame.Index)
}

func TestCorruptFrameIsRequeued(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	d.CorruptNext()
	d.Fill()
	_, err := s.AcquireFrame(time.Second)
	if !errors.Is(err, ErrFrameIO) {
		t.Fatalf("AcquireFrame() error = %v, want ErrFrameIO", err)
	}
	if st := s.Stats(); st.Queued != 3 || st.Recovered != 1 {
		t.Errorf("Stats() = %+v, want 3 queued, 1 recovered", st)
	}
	if d.Queued() != 3 {
		t.Errorf("driver Queued() = %d, want 3", d.Queued())
	}
}

func TestDeviceLostClosesSession(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	d.FailNext(syscall.ENODEV)
	_, err := s.AcquireFrame(time.Second)
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("AcquireFrame() error = %v, want ErrDeviceLost", err)
	}
	if !IsFatal(err) {
		t.Error("IsFatal() = false")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
	if d.Unmaps() != 3 {
		t.Errorf("Unmaps() = %d, want 3", d.Unmaps())
	}

	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Op != "acquire" {
		t.Errorf("error = %#v, want *Error with Op acquire", err)
	}
}

func TestCloseUnmapsOnce(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 4})
	s := streamingSession(t, d, 4)

	d.Fill()
	frame, err := s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() error = %v", err)
	}
	_ = frame

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if d.Unmaps() != 4 {
		t.Errorf("Unmaps() = %d, want 4", d.Unmaps())
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %s, want closed", s.State())
	}
	if err := s.ReleaseFrame(frame.Index); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ReleaseFrame() after Close error = %v, want ErrInvalidState", err)
	}
}

func TestStopStreamingRequeues(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{MaxBuffers: 3})
	s := streamingSession(t, d, 3)

	d.Fill()
	if _, err := s.AcquireFrame(time.Second); err != nil {
		t.Fatalf("AcquireFrame() error = %v", err)
	}

	if err := s.StopStreaming(); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	if err := s.StopStreaming(); err != nil {
		t.Fatalf("second StopStreaming() error = %v", err)
	}
	if s.State() != StateConfigured {
		t.Fatalf("State() = %s, want configured", s.State())
	}
	if st := s.Stats(); st.Queued != 3 || st.Filled != 0 {
		t.Errorf("Stats() after stop = %+v, want 3 queued", st)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	d.Fill()
	frame, err := s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() after restart error = %v", err)
	}
	s.ReleaseFrame(frame.Index)
}

func TestAcquireTimeout(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{})
	s := streamingSession(t, d, 4)

	start := time.Now()
	_, err := s.AcquireFrame(50 * time.Millisecond)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("AcquireFrame() error = %v, want ErrNotReady", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("AcquireFrame() returned after %v, before the timeout", elapsed)
	}
}

func TestAcquireUnblocksOnClose(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{})
	s := streamingSession(t, d, 2)

	done := make(chan error, 1)
	go func() {
		_, err := s.AcquireFrame(-1)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("AcquireFrame() error = %v, want ErrInvalidState", err)
		}
	case <-time.After(acquirePollSlice + 2*time.Second):
		t.Fatal("AcquireFrame(-1) still blocked after Close")
	}
}

func TestSyntheticGenerator(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{FPS: 100})
	s := streamingSession(t, d, 4)

	for i := 0; i < 5; i++ {
		frame, err := s.AcquireFrame(time.Second)
		if err != nil {
			t.Fatalf("AcquireFrame() #%d error = %v", i, err)
		}
		if err := s.ReleaseFrame(frame.Index); err != nil {
			t.Fatalf("ReleaseFrame() error = %v", err)
		}
	}
}

func TestCompressedFrameLength(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{Formats: []transform.PixelFormat{transform.MJPEG}})
	s, err := Open("synthetic:", WithDriver(d), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	got, err := s.Configure(Format{Width: 640, Height: 480, PixelFormat: transform.MJPEG})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := s.AllocateRing(2); err != nil {
		t.Fatalf("AllocateRing() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	d.Fill()
	frame, err := s.AcquireFrame(time.Second)
	if err != nil {
		t.Fatalf("AcquireFrame() error = %v", err)
	}
	if frame.Length >= got.SizeImage {
		t.Errorf("compressed Length = %d, want less than buffer size %d", frame.Length, got.SizeImage)
	}
	if !frame.Keyframe {
		t.Error("first compressed frame is not a keyframe")
	}
	s.ReleaseFrame(frame.Index)
}

func TestOpenUnavailable(t *testing.T) {
	_, err := Open("synthetic:bogus", WithLogger(testLogger()))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestParseSyntheticPath(t *testing.T) {
	tests := []struct {
		path    string
		want    SyntheticOptions
		wantErr bool
	}{
		{"synthetic:", SyntheticOptions{FPS: DefaultSyntheticFPS}, false},
		{"synthetic:1280x720", SyntheticOptions{Width: 1280, Height: 720, FPS: DefaultSyntheticFPS}, false},
		{"synthetic:320x240@15", SyntheticOptions{Width: 320, Height: 240, FPS: 15}, false},
		{"synthetic:@0", SyntheticOptions{}, false},
		{"synthetic:640", SyntheticOptions{}, true},
		{"synthetic:0x480", SyntheticOptions{}, true},
		{"synthetic:640x480@fast", SyntheticOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := parseSyntheticPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSyntheticPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Width != tt.want.Width || got.Height != tt.want.Height || got.FPS != tt.want.FPS {
				t.Errorf("parseSyntheticPath() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSyntheticOverrunWhenRingHeld(t *testing.T) {
	d := newSynthetic(t, SyntheticOptions{FPS: 200})
	s := streamingSession(t, d, 2)

	var held []int
	for range 2 {
		frame, err := s.AcquireFrame(time.Second)
		if err != nil {
			t.Fatalf("AcquireFrame() error = %v", err)
		}
		held = append(held, frame.Index)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Overruns() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Overruns() == 0 {
		t.Fatal("no overrun recorded while every buffer was held")
	}

	for _, idx := range held {
		if err := s.ReleaseFrame(idx); err != nil {
			t.Fatalf("ReleaseFrame(%d) error = %v", idx, err)
		}
	}
	if _, err := s.AcquireFrame(time.Second); err != nil {
		t.Fatalf("AcquireFrame() after release error = %v", err)
	}
}
