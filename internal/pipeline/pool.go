package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/framereactor/internal/capture"
	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/events"
	"github.com/smazurov/framereactor/internal/metrics"
)

// DefaultStopTimeout bounds how long Stop waits for a pipeline to tear down.
const DefaultStopTimeout = 10 * time.Second

// ErrAlreadyRunning is returned by Start for a pipeline that is starting or running.
var ErrAlreadyRunning = errors.New("pipeline already running")

// ConfigProvider returns the device config for a pipeline id.
type ConfigProvider func(id string) (config.DeviceConfig, error)

// StateChangeCallback is called after every state transition.
type StateChangeCallback func(id string, oldState, newState State, err error)

// PoolOptions configures a Pool.
type PoolOptions struct {
	// ConfigProvider resolves ids to device configs (required).
	ConfigProvider ConfigProvider

	// Reactor delivers readiness for every pipeline's device (required).
	Reactor capture.Registrar

	// OnStateChange is called on state transitions (optional).
	OnStateChange StateChangeCallback

	// Bus receives state changes and capture errors (optional).
	Bus *events.Bus

	// PipelineOptions are applied to every pipeline the pool builds.
	PipelineOptions []Option

	// StopTimeout bounds Stop. Zero means DefaultStopTimeout.
	StopTimeout time.Duration

	// Logger for pool operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

type managed struct {
	pipeline     *Pipeline
	id           string
	runID        string
	device       string
	state        State
	startedAt    time.Time
	restartCount int
	lastError    error
	cancel       context.CancelFunc
	done         chan struct{}
}

// Pool supervises pipelines by id. Each running pipeline has one goroutine.
type Pool struct {
	opts      PoolOptions
	pipelines map[string]*managed
	restarts  map[string]int
	mu        sync.RWMutex
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPool creates a pool. ConfigProvider and Reactor are required.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.ConfigProvider == nil || opts.Reactor == nil {
		return nil, errors.New("pipeline: pool needs a ConfigProvider and a Reactor")
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		opts:      opts,
		pipelines: make(map[string]*managed),
		restarts:  make(map[string]int),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start builds and runs the pipeline for id.
func (p *Pool) Start(id string) error {
	m, ctx, err := p.prepare(id)
	if err != nil {
		return err
	}
	p.notify(m, StateIdle, StateStarting, nil)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(m.done)
		p.run(ctx, m)
	}()
	return nil
}

func (p *Pool) prepare(id string) (*managed, context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return nil, nil, errors.New("pipeline: pool stopped")
	}
	if m, ok := p.pipelines[id]; ok && (m.state == StateRunning || m.state == StateStarting || m.state == StateStopping) {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrAlreadyRunning, id, m.state)
	}

	cfg, err := p.opts.ConfigProvider(id)
	if err != nil {
		return nil, nil, fmt.Errorf("config for %s: %w", id, err)
	}

	m := &managed{
		id:           id,
		runID:        uuid.NewString(),
		device:       ResolveDevice(cfg.Path),
		state:        StateStarting,
		startedAt:    time.Now(),
		restartCount: p.restarts[id],
		done:         make(chan struct{}),
	}

	opts := append([]Option{
		WithLogger(p.logger.With("run_id", m.runID)),
		WithBus(p.opts.Bus),
		WithOnStreaming(func(capture.Format) { p.transition(m, StateRunning, nil) }),
	}, p.opts.PipelineOptions...)

	pl, err := New(cfg, p.opts.Reactor, opts...)
	if err != nil {
		return nil, nil, err
	}
	m.pipeline = pl

	ctx, cancel := context.WithCancel(p.ctx)
	m.cancel = cancel
	p.pipelines[id] = m
	return m, ctx, nil
}

func (p *Pool) run(ctx context.Context, m *managed) {
	err := m.pipeline.Run(ctx)

	m.cancel()

	next := StateIdle
	if err != nil {
		next = StateError
		p.logger.Error("Pipeline failed", "id", m.id, "run_id", m.runID, "error", err)
	}
	p.transition(m, next, err)
}

// transition moves m to next unless it is already there. A stopping pipeline
// only leaves that state when Run returns.
func (p *Pool) transition(m *managed, next State, err error) {
	p.mu.Lock()
	old := m.state
	if old == next || (old == StateStopping && next == StateRunning) {
		p.mu.Unlock()
		return
	}
	m.state = next
	if err != nil {
		m.lastError = err
	}
	p.mu.Unlock()

	p.notify(m, old, next, err)
}

func (p *Pool) notify(m *managed, old, next State, err error) {
	metrics.SetPipelineState(m.id, next.Gauge())
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(m.id, old, next, err)
	}
	if p.opts.Bus != nil {
		ev := events.PipelineStateChangedEvent{
			PipelineID: m.id,
			RunID:      m.runID,
			OldState:   string(old),
			NewState:   string(next),
			Timestamp:  time.Now(),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		p.opts.Bus.Publish(ev)
	}
}

// Stop cancels the pipeline for id and waits for its teardown. Stopping an
// unknown or finished pipeline does nothing.
func (p *Pool) Stop(id string) error {
	p.mu.Lock()
	m, ok := p.pipelines[id]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if m.state != StateRunning && m.state != StateStarting {
		delete(p.pipelines, id)
		p.mu.Unlock()
		return nil
	}
	old := m.state
	m.state = StateStopping
	p.mu.Unlock()

	p.notify(m, old, StateStopping, nil)
	p.logger.Info("Stopping pipeline", "id", id)
	m.cancel()

	var err error
	select {
	case <-m.done:
	case <-time.After(p.opts.StopTimeout):
		err = fmt.Errorf("pipeline %s: stop timed out after %s", id, p.opts.StopTimeout)
		p.logger.Warn("Timeout waiting for pipeline to stop", "id", id)
	}

	p.mu.Lock()
	if p.pipelines[id] == m {
		delete(p.pipelines, id)
	}
	p.mu.Unlock()
	return err
}

// Restart stops id and starts it again with a fresh config.
func (p *Pool) Restart(id string) error {
	p.logger.Info("Restarting pipeline", "id", id)
	if err := p.Stop(id); err != nil {
		return err
	}
	p.mu.Lock()
	p.restarts[id]++
	p.mu.Unlock()
	return p.Start(id)
}

// Apply starts, stops and restarts pipelines as a config reload requires.
func (p *Pool) Apply(diff config.DeviceDiff) error {
	var errs []error
	for _, id := range diff.Stop {
		errs = append(errs, p.Stop(id))
		// Removed from the device list, so drop its series too.
		metrics.DeletePipeline(id)
	}
	for _, id := range diff.Restart {
		errs = append(errs, p.Restart(id))
	}
	for _, id := range diff.Start {
		errs = append(errs, p.Start(id))
	}
	return errors.Join(errs...)
}

// StopDevice stops every pipeline capturing from the device node and returns
// their ids.
func (p *Pool) StopDevice(node string) []string {
	node = filepath.Clean(node)

	p.mu.RLock()
	var ids []string
	for id, m := range p.pipelines {
		if m.device == node && (m.state == StateRunning || m.state == StateStarting) {
			ids = append(ids, id)
		}
	}
	p.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		if err := p.Stop(id); err != nil {
			p.logger.Warn("Stop after device removal failed", "id", id, "error", err)
		}
	}
	return ids
}

// GetStatus returns pipeline info. Unknown ids report StateIdle.
func (p *Pool) GetStatus(id string) *Info {
	p.mu.RLock()
	m, ok := p.pipelines[id]
	if !ok {
		p.mu.RUnlock()
		return &Info{ID: id, State: StateIdle}
	}
	info := &Info{
		ID:           id,
		RunID:        m.runID,
		Device:       m.device,
		State:        m.state,
		StartedAt:    m.startedAt,
		RestartCount: m.restartCount,
		LastError:    m.lastError,
	}
	pl := m.pipeline
	p.mu.RUnlock()

	info.Stats = pl.Stats()
	return info
}

// List returns info for every pipeline the pool knows, sorted by id.
func (p *Pool) List() []*Info {
	p.mu.RLock()
	ids := make([]string, 0, len(p.pipelines))
	for id := range p.pipelines {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	slices.Sort(ids)
	out := make([]*Info, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.GetStatus(id))
	}
	return out
}

// IsRunning reports whether id is streaming.
func (p *Pool) IsRunning(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.pipelines[id]
	return ok && m.state == StateRunning
}

// StopAll stops every pipeline and refuses further starts.
func (p *Pool) StopAll() {
	p.logger.Info("Stopping all pipelines")

	p.mu.RLock()
	ids := make([]string, 0, len(p.pipelines))
	for id := range p.pipelines {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	for _, id := range ids {
		if err := p.Stop(id); err != nil {
			p.logger.Warn("Pipeline did not stop cleanly", "id", id, "error", err)
		}
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Info("All pipelines stopped")
}

// ResolveDevice maps a configured device path to the node a hotplug event
// names. Absolute paths and stable ids under /dev/v4l are followed through
// their symlinks; synthetic paths are returned as given.
func ResolveDevice(path string) string {
	if strings.HasPrefix(path, "synthetic:") {
		return path
	}
	candidates := []string{path}
	if !strings.HasPrefix(path, "/") {
		candidates = []string{"/dev/v4l/by-id/" + path, "/dev/v4l/by-path/" + path}
	}
	for _, c := range candidates {
		if real, err := filepath.EvalSymlinks(c); err == nil {
			return real
		}
	}
	if strings.HasPrefix(path, "/") {
		return filepath.Clean(path)
	}
	return path
}
