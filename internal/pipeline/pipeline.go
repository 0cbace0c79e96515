// Package pipeline runs one capture device end to end: a capture session
// pushed by the reactor, an optional pixel conversion, a bounded handoff
// queue and consumer goroutines feeding a Sink. A Pool supervises many
// pipelines by id.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framereactor/internal/capture"
	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/events"
	"github.com/smazurov/framereactor/internal/handoff"
	"github.com/smazurov/framereactor/internal/metrics"
	"github.com/smazurov/framereactor/internal/transform"
)

// Pipeline captures from one device until its context ends or a fatal error
// occurs. A Pipeline value runs once.
type Pipeline struct {
	cfg         config.DeviceConfig
	loop        capture.Registrar
	sink        Sink
	bus         *events.Bus
	logger      *slog.Logger
	captureOpts []capture.Option
	onStreaming func(capture.Format)

	written atomic.Uint64

	mu      sync.Mutex
	started bool
	session *capture.Session
	queue   *handoff.Queue[Packet]
	format  capture.Format
	out     transform.PixelFormat
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. The capture session inherits it.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSink replaces the sink built from the device config. Run closes it.
func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithBus publishes capture errors on bus.
func WithBus(bus *events.Bus) Option {
	return func(p *Pipeline) {
		p.bus = bus
	}
}

// WithCaptureOptions passes extra options to capture.Open.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(p *Pipeline) {
		p.captureOpts = append(p.captureOpts, opts...)
	}
}

// WithOnStreaming is called once the device streams and frames are flowing
// to the reactor, with the negotiated format.
func WithOnStreaming(fn func(capture.Format)) Option {
	return func(p *Pipeline) {
		p.onStreaming = fn
	}
}

// New fills cfg defaults, validates it and returns a pipeline that registers with loop when run.
func New(cfg config.DeviceConfig, loop capture.Registrar, opts ...Option) (*Pipeline, error) {
	if loop == nil {
		return nil, errors.New("pipeline: nil reactor")
	}
	cfg.ApplyDefaults()
	if err := (config.Devices{Devices: []config.DeviceConfig{cfg}}).Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		loop:   loop,
		logger: slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("pipeline", cfg.ID)
	return p, nil
}

// ID returns the device id.
func (p *Pipeline) ID() string {
	return p.cfg.ID
}

// Run sets up capture, streams until ctx is done or the pipeline fails, then
// tears down in this order: detach from the reactor, stop streaming, close the
// queue, wait for consumers to drain it, close the session, close the sink.
// Run returns nil after a clean cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("pipeline: already run")
	}
	p.started = true
	p.mu.Unlock()

	sink := p.sink
	if sink == nil {
		var err error
		if sink, err = NewSink(p.cfg); err != nil {
			return err
		}
	}

	sess, err := p.setup()
	if err != nil {
		return errors.Join(err, sink.Close())
	}

	queue := handoff.New[Packet](p.cfg.QueueDepth)
	fatal := make(chan error, 1)
	fail := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	sess.SetFrameHandler(func(f capture.Frame) error {
		return p.handleFrame(queue, f)
	})
	sess.SetSkipHandler(func(err error) {
		p.captureError(err, false)
	})
	sess.SetErrorHandler(fail)

	p.mu.Lock()
	p.session = sess
	p.queue = queue
	p.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.consume(queue, sink, fail)
		}()
	}

	var runErr error
	if err := sess.Start(); err != nil {
		runErr = err
	} else if err := sess.Attach(p.loop); err != nil {
		runErr = err
	} else {
		f := sess.Format()
		p.logger.Info("Pipeline streaming", "format", f.String(), "output", p.out.String(), "buffers", sess.Stats().Slots)
		if p.onStreaming != nil {
			p.onStreaming(f)
		}
		select {
		case <-ctx.Done():
		case runErr = <-fatal:
		}
	}

	if runErr != nil && capture.IsFatal(runErr) {
		p.captureError(runErr, true)
	}

	sess.Detach()
	stopErr := sess.StopStreaming()
	queue.Close()
	wg.Wait()
	closeErr := sess.Close()
	sinkErr := sink.Close()
	metrics.SetQueueDepth(p.cfg.ID, 0)

	p.logger.Info("Pipeline stopped", "written", p.written.Load(), "dropped", queue.Dropped())
	return errors.Join(runErr, stopErr, closeErr, sinkErr)
}

func (p *Pipeline) setup() (*capture.Session, error) {
	in, err := p.cfg.PixelFormat()
	if err != nil {
		return nil, err
	}
	out, err := p.cfg.OutputPixelFormat()
	if err != nil {
		return nil, err
	}

	opts := append([]capture.Option{capture.WithLogger(p.logger)}, p.captureOpts...)
	sess, err := capture.Open(p.cfg.Path, opts...)
	if err != nil {
		return nil, err
	}

	got, err := sess.Configure(capture.Format{
		Width:       p.cfg.Width,
		Height:      p.cfg.Height,
		FPS:         p.cfg.FPS,
		PixelFormat: in,
	})
	if err != nil {
		return nil, errors.Join(err, sess.Close())
	}

	// An unset output format follows whatever the device settled on.
	if p.cfg.OutputFormat == "" {
		out = got.PixelFormat
	}
	if out != got.PixelFormat && !transform.Supported(got.PixelFormat, out) {
		return nil, errors.Join(
			fmt.Errorf("%w: device delivers %s, output wants %s", transform.ErrUnsupportedConversion, got.PixelFormat, out),
			sess.Close(),
		)
	}

	if _, err := sess.AllocateRing(p.cfg.Buffers); err != nil {
		return nil, errors.Join(err, sess.Close())
	}

	p.mu.Lock()
	p.format = got
	p.out = out
	p.mu.Unlock()
	return sess, nil
}

// handleFrame runs on the reactor goroutine with the frame's slot held. It
// copies or converts the frame out of the ring before the slot is requeued.
func (p *Pipeline) handleFrame(queue *handoff.Queue[Packet], f capture.Frame) error {
	metrics.FrameCaptured(p.cfg.ID)

	pkt, err := p.packetize(f)
	if err != nil {
		return err
	}
	if queue.Push(pkt) {
		metrics.FrameDropped(p.cfg.ID)
	}
	metrics.SetQueueDepth(p.cfg.ID, queue.Len())
	return nil
}

func (p *Pipeline) packetize(f capture.Frame) (Packet, error) {
	src := p.format
	pkt := Packet{
		Format:    p.out,
		Width:     src.Width,
		Height:    src.Height,
		Sequence:  f.Sequence,
		Timestamp: f.Timestamp,
		Keyframe:  f.Keyframe,
	}

	if !src.PixelFormat.IsRaw() {
		pkt.Data = append([]byte(nil), f.Data...)
		return pkt, nil
	}

	size, err := transform.FrameSize(src.PixelFormat, src.Width, src.Height)
	if err != nil {
		return Packet{}, err
	}
	if f.Length < size {
		return Packet{}, fmt.Errorf("%w: frame %d has %d bytes, %s needs %d",
			ErrGeometryMismatch, f.Sequence, f.Length, src, size)
	}

	if p.out == src.PixelFormat {
		pkt.Data = append([]byte(nil), f.Data[:size]...)
		return pkt, nil
	}

	outSize, err := transform.FrameSize(p.out, src.Width, src.Height)
	if err != nil {
		return Packet{}, err
	}
	pkt.Data = make([]byte, outSize)
	if err := transform.Convert(f.Data, pkt.Data, src.Width, src.Height, src.PixelFormat, p.out); err != nil {
		metrics.TransformError(p.cfg.ID)
		return Packet{}, err
	}
	return pkt, nil
}

func (p *Pipeline) consume(queue *handoff.Queue[Packet], sink Sink, fail func(error)) {
	for {
		pkt, err := queue.Pop(-1)
		if err != nil {
			// Only ErrClosed ends an indefinite wait.
			return
		}
		if err := sink.WriteFrame(pkt); err != nil {
			p.logger.Error("Sink write failed", "sequence", pkt.Sequence, "error", err)
			fail(fmt.Errorf("sink: %w", err))
			return
		}
		p.written.Add(1)
		metrics.FrameWritten(p.cfg.ID)
		metrics.SetQueueDepth(p.cfg.ID, queue.Len())
	}
}

func (p *Pipeline) captureError(err error, fatal bool) {
	kind := errorKind(err)
	metrics.CaptureError(p.cfg.ID, kind)
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.CaptureErrorEvent{
		PipelineID: p.cfg.ID,
		DevicePath: p.cfg.Path,
		Kind:       kind,
		Error:      err.Error(),
		Fatal:      fatal,
		Timestamp:  time.Now(),
	})
}

func errorKind(err error) string {
	switch {
	case capture.IsTransient(err):
		return metrics.KindNotReady
	case capture.IsRecoverable(err):
		return metrics.KindIO
	case errors.Is(err, capture.ErrDeviceLost), errors.Is(err, capture.ErrDeviceUnavailable):
		return metrics.KindDeviceLost
	}
	return metrics.KindInvariant
}

// Stats is a snapshot of a running pipeline.
type Stats struct {
	Format     capture.Format
	Output     transform.PixelFormat
	Ring       capture.RingStats
	QueueDepth int
	Dropped    uint64
	Written    uint64
}

// Stats returns the current counters. Before Run has set up the device only
// Written is meaningful.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	sess, queue := p.session, p.queue
	st := Stats{Format: p.format, Output: p.out}
	p.mu.Unlock()

	st.Written = p.written.Load()
	if sess != nil {
		st.Ring = sess.Stats()
	}
	if queue != nil {
		st.QueueDepth = queue.Len()
		st.Dropped = queue.Dropped()
	}
	return st
}
