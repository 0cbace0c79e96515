package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/logging"
	"github.com/smazurov/framereactor/internal/pipeline"
	"github.com/smazurov/framereactor/internal/reactor"
)

// limitSink passes the first limit packets to the wrapped sink and calls
// reached once the last of them is written. Later packets are dropped.
type limitSink struct {
	pipeline.Sink
	limit   uint64
	count   atomic.Uint64
	reached func()
}

func (s *limitSink) WriteFrame(pkt pipeline.Packet) error {
	n := s.count.Add(1)
	if s.limit > 0 && n > s.limit {
		return nil
	}
	if err := s.Sink.WriteFrame(pkt); err != nil {
		return err
	}
	if n == s.limit {
		s.reached()
	}
	return nil
}

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	dev := config.DeviceConfig{ID: "capture"}
	var frames uint64
	var tui, logJSON bool

	cmd := &cobra.Command{
		Use:   "capture --device PATH [--frames N] [--out FILE]",
		Short: "Run one capture pipeline",
		Long: `Captures from a V4L2 device (or synthetic:WxH@FPS) through the reactor, optionally converts ` +
			`each frame and appends it to --out. Stops after --frames frames or on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			if tui {
				// Log lines would tear the view.
				loggingConfig.Level = "error"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("main").With("device", dev.Path)

			if dev.SinkPath != "" {
				dev.Sink = config.SinkFile
			}
			dev.ApplyDefaults()
			sink, err := pipeline.NewSink(dev)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			loop, err := reactor.New(reactor.WithLogger(logging.GetLogger("reactor")))
			if err != nil {
				sink.Close()
				return err
			}
			defer loop.Close()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := loop.Run(ctx); err != nil {
					logger.Error("Reactor stopped", "error", err)
				}
			}()
			defer func() {
				cancel()
				wg.Wait()
			}()

			limited := &limitSink{Sink: sink, limit: frames, reached: cancel}
			p, err := pipeline.New(dev, loop,
				pipeline.WithSink(limited),
				pipeline.WithLogger(logging.GetLogger("pipeline")),
			)
			if err != nil {
				sink.Close()
				return err
			}

			start := time.Now()
			if tui {
				err = runCaptureTUI(ctx, cancel, p, dev.Path, frames)
			} else {
				err = p.Run(ctx)
			}
			cancel()

			st := p.Stats()
			logger.Info("Capture finished",
				"written", min(st.Written, limitOrMax(frames)),
				"dropped", st.Dropped,
				"elapsed", time.Since(start).Round(time.Millisecond))
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("capture %s: %w", dev.Path, err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dev.Path, "device", "", "Device node, /dev/v4l/by-id name or synthetic:WxH@FPS")
	f.IntVarP(&dev.Width, "width", "W", 640, "Capture width")
	f.IntVarP(&dev.Height, "height", "H", 480, "Capture height")
	f.IntVar(&dev.FPS, "fps", 0, "Capture frame rate (0 keeps the device default)")
	f.StringVar(&dev.Format, "format", "yuyv", "Capture pixel format")
	f.StringVar(&dev.OutputFormat, "output-format", "", "Convert frames to this pixel format")
	f.IntVar(&dev.Buffers, "buffers", config.DefaultBuffers, "Number of mmap buffers")
	f.IntVar(&dev.QueueDepth, "queue-depth", config.DefaultQueueDepth, "Handoff queue capacity")
	f.StringVar(&dev.SinkPath, "out", "", "Append frames to this file (default: discard)")
	f.Int64Var(&dev.RotateBytes, "rotate-bytes", 0, "Start a new numbered file past this size")
	f.Uint64Var(&frames, "frames", 0, "Stop after this many frames (0 runs until interrupted)")
	f.BoolVar(&tui, "tui", false, "Show live statistics")
	f.BoolVar(&logJSON, "log-json", false, "Log as JSON")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func limitOrMax(n uint64) uint64 {
	if n == 0 {
		return ^uint64(0)
	}
	return n
}

func runCaptureTUI(ctx context.Context, cancel context.CancelFunc, p *pipeline.Pipeline, device string, frames uint64) error {
	model := newCaptureModel(device, frames, p.Stats)
	prog := tea.NewProgram(model, tea.WithContext(ctx))

	runErr := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		prog.Send(captureDoneMsg{err: err})
		runErr <- err
	}()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		cancel()
		<-runErr
		return err
	}
	cancel()
	return <-runErr
}
