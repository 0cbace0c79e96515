package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/framereactor/internal/api"
	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/devices"
	"github.com/smazurov/framereactor/internal/events"
	"github.com/smazurov/framereactor/internal/logging"
	"github.com/smazurov/framereactor/internal/metrics"
	"github.com/smazurov/framereactor/internal/metrics/exporters"
	"github.com/smazurov/framereactor/internal/pipeline"
	"github.com/smazurov/framereactor/internal/reactor"
	"github.com/smazurov/framereactor/internal/systemd"
)

// service owns the reactor, the pipeline pool and everything that starts or
// stops pipelines: the device list watcher and hotplug.
type service struct {
	opts     *Options
	logger   *slog.Logger
	bus      *events.Bus
	notifier *systemd.Notifier

	loop    *reactor.Loop
	pool    *pipeline.Pool
	watcher *config.Watcher[config.Devices]
	hotplug func()
	unsubs  []func()

	mu      sync.RWMutex
	devices config.Devices

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newService(opts *Options, logger *slog.Logger) *service {
	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		opts:     opts,
		logger:   logger,
		bus:      events.New(),
		notifier: systemd.NewNotifier(logger),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *service) spawn(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.logger.Error("Background task failed", "task", name, "error", err)
		}
	}()
}

// Start brings up the reactor, starts every enabled pipeline and begins
// watching for device list changes and hotplug.
func (s *service) Start() error {
	list, err := config.LoadDevices(s.opts.DevicesFile)
	if err != nil {
		// Run with no pipelines until a corrected file is picked up by the watcher.
		s.logger.Warn("Device list not loaded", "path", s.opts.DevicesFile, "error", err)
	}
	s.devices = list

	loop, err := reactor.New(
		reactor.WithLogger(logging.GetLogger("reactor")),
		reactor.WithWaitTimeout(durationOr(s.opts.ReactorWaitTimeout, reactor.DefaultWaitTimeout)),
		reactor.WithDispatchHook(func(_ int, dir reactor.Direction) {
			metrics.ReactorDispatch(dir.String())
		}),
	)
	if err != nil {
		return fmt.Errorf("reactor: %w", err)
	}
	s.loop = loop
	s.spawn("reactor", func() error { return loop.Run(s.ctx) })

	s.pool, err = pipeline.NewPool(pipeline.PoolOptions{
		ConfigProvider: s.deviceConfig,
		Reactor:        loop,
		Bus:            s.bus,
		StopTimeout:    durationOr(s.opts.PipelineShutdownTimeout, pipeline.DefaultStopTimeout),
		Logger:         logging.GetLogger("pipeline"),
	})
	if err != nil {
		return err
	}

	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(s.onCaptureError),
		s.bus.Subscribe(s.onStateChanged),
	)

	for _, dev := range list.Enabled() {
		if err := s.pool.Start(dev.ID); err != nil {
			s.logger.Error("Failed to start pipeline", "id", dev.ID, "error", err)
		}
	}

	s.watcher = config.NewConfigWatcher(
		s.opts.DevicesFile,
		config.LoadDevices,
		logging.GetLogger("config"),
		config.WithErrorHandler[config.Devices](func(err error) {
			s.logger.Warn("Keeping previous device list", "error", err)
		}),
	)
	s.watcher.OnReload(s.reload)
	if err := s.watcher.Start(); err != nil {
		s.logger.Warn("Device list watcher not started", "error", err)
	}

	if s.opts.HotplugEnabled {
		stop, err := startHotplug(s)
		if err != nil {
			s.logger.Warn("Hotplug monitoring unavailable", "error", err)
		} else {
			s.hotplug = stop
		}
	}

	if s.opts.ServerAddr != "" {
		srv, err := api.NewServer(api.Options{
			AuthUsername:   s.opts.AuthUsername,
			AuthPassword:   s.opts.AuthPassword,
			Pipelines:      s.pool,
			Devices:        devices.Scan,
			Bus:            s.bus,
			MetricsHandler: exporters.HTTPHandler(),
			Logger:         logging.GetLogger("api"),
		})
		if err != nil {
			return err
		}
		s.spawn("api", func() error { return srv.Serve(s.ctx, s.opts.ServerAddr) })
	}

	if s.opts.MetricsAddr != "" {
		s.spawn("metrics", func() error {
			return exporters.Serve(s.ctx, s.opts.MetricsAddr, logging.GetLogger("metrics"))
		})
	}

	if err := s.notifier.Ready(); err != nil {
		s.logger.Warn("sd_notify failed", "error", err)
	}
	s.spawn("watchdog", func() error { return s.notifier.RunWatchdog(s.ctx) })
	s.updateStatus()

	s.logger.Info("Service started", "pipelines", len(list.Enabled()), "devices_file", s.opts.DevicesFile)
	return nil
}

// Wait blocks until Stop begins.
func (s *service) Wait() {
	<-s.ctx.Done()
}

// Stop tears everything down in reverse order of Start.
func (s *service) Stop() {
	_ = s.notifier.Stopping()

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("Stopping watcher", "error", err)
		}
	}
	if s.hotplug != nil {
		s.hotplug()
	}
	if s.pool != nil {
		s.pool.StopAll()
	}
	for _, unsub := range s.unsubs {
		unsub()
	}

	s.cancel()
	s.wg.Wait()
	if s.loop != nil {
		if err := s.loop.Close(); err != nil {
			s.logger.Warn("Closing reactor", "error", err)
		}
	}
	s.logger.Info("Service stopped")
}

func (s *service) deviceConfig(id string) (config.DeviceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices.Find(id)
	if !ok {
		return config.DeviceConfig{}, fmt.Errorf("%w: %q not in %s", config.ErrUnknownDevice, id, s.opts.DevicesFile)
	}
	return dev, nil
}

func (s *service) reload(next config.Devices) {
	s.mu.Lock()
	diff := config.Diff(s.devices, next)
	s.devices = next
	s.mu.Unlock()

	if diff.Empty() {
		s.logger.Debug("Device list reloaded without pipeline changes")
		return
	}
	s.logger.Info("Applying device list changes", "start", diff.Start, "stop", diff.Stop, "restart", diff.Restart)
	if err := s.pool.Apply(diff); err != nil {
		s.logger.Error("Device list changes partly failed", "error", err)
	}

	s.bus.Publish(events.ConfigReloadedEvent{
		Path:      s.opts.DevicesFile,
		Started:   diff.Start,
		Stopped:   diff.Stop,
		Restarted: diff.Restart,
		Timestamp: time.Now(),
	})
	s.updateStatus()
}

// onDeviceRemoved stops pipelines on a vanished node.
func (s *service) onDeviceRemoved(node string) {
	if ids := s.pool.StopDevice(node); len(ids) > 0 {
		s.logger.Warn("Capture device removed", "node", node, "stopped", ids)
	}
}

// onDeviceAdded starts enabled pipelines whose device resolves to node and
// are not already running.
func (s *service) onDeviceAdded(node string) {
	s.mu.RLock()
	enabled := s.devices.Enabled()
	s.mu.RUnlock()

	for _, dev := range enabled {
		if pipeline.ResolveDevice(dev.Path) != node || s.pool.IsRunning(dev.ID) {
			continue
		}
		err := s.pool.Start(dev.ID)
		switch {
		case errors.Is(err, pipeline.ErrAlreadyRunning):
		case err != nil:
			s.logger.Error("Failed to start pipeline after hotplug", "id", dev.ID, "error", err)
		default:
			s.logger.Info("Capture device added", "node", node, "id", dev.ID)
		}
	}
}

func (s *service) onCaptureError(e events.CaptureErrorEvent) {
	if e.Fatal {
		s.logger.Error("Capture failed", "pipeline", e.PipelineID, "device", e.DevicePath, "kind", e.Kind, "error", e.Error)
	}
}

func (s *service) onStateChanged(e events.PipelineStateChangedEvent) {
	s.logger.Debug("Pipeline state", "pipeline", e.PipelineID, "run_id", e.RunID, "from", e.OldState, "to", e.NewState)
	s.updateStatus()
}

func (s *service) updateStatus() {
	if s.pool == nil {
		return
	}
	running := 0
	infos := s.pool.List()
	for _, info := range infos {
		if info.State == pipeline.StateRunning {
			running++
		}
	}
	_ = s.notifier.Status("%d of %d pipelines running", running, len(infos))
}
