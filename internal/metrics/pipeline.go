// Package metrics records capture pipeline and reactor metrics in Prometheus
// and keeps a per-pipeline snapshot for local status views.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framereactor"

// Capture error kinds used as the kind label.
const (
	KindNotReady   = "not_ready"
	KindIO         = "io"
	KindDeviceLost = "device_lost"
	KindInvariant  = "invariant"
)

var (
	framesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_captured_total",
		Help:      "Frames dequeued from the capture device",
	}, []string{"pipeline"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Frames evicted from a full handoff queue",
	}, []string{"pipeline"})

	framesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_written_total",
		Help:      "Frames accepted by the sink",
	}, []string{"pipeline"})

	captureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_errors_total",
		Help:      "Capture errors by kind",
	}, []string{"pipeline", "kind"})

	transformErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transform_errors_total",
		Help:      "Frames that failed pixel format conversion",
	}, []string{"pipeline"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Packets waiting in the handoff queue",
	}, []string{"pipeline"})

	pipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pipeline_state",
		Help:      "Pipeline state: 0 idle, 1 starting, 2 running, 3 stopping, 4 error",
	}, []string{"pipeline"})

	reactorDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactor_dispatches_total",
		Help:      "Readiness handlers invoked by the reactor",
	}, []string{"direction"})

	cache   = make(map[string]*PipelineMetrics)
	cacheMu sync.RWMutex
)

// PipelineMetrics holds the current values recorded for one pipeline.
type PipelineMetrics struct {
	Captured        uint64
	Dropped         uint64
	Written         uint64
	CaptureErrors   uint64
	TransformErrors uint64
	QueueDepth      int
	State           float64
}

// FrameCaptured counts one frame taken from the device.
func FrameCaptured(id string) {
	framesCaptured.WithLabelValues(id).Inc()
	update(id, func(m *PipelineMetrics) { m.Captured++ })
}

// FrameDropped counts one packet evicted from the queue.
func FrameDropped(id string) {
	framesDropped.WithLabelValues(id).Inc()
	update(id, func(m *PipelineMetrics) { m.Dropped++ })
}

// FrameWritten counts one packet written by the sink.
func FrameWritten(id string) {
	framesWritten.WithLabelValues(id).Inc()
	update(id, func(m *PipelineMetrics) { m.Written++ })
}

// CaptureError counts one capture error of kind.
func CaptureError(id, kind string) {
	captureErrors.WithLabelValues(id, kind).Inc()
	update(id, func(m *PipelineMetrics) { m.CaptureErrors++ })
}

// TransformError counts one failed conversion.
func TransformError(id string) {
	transformErrors.WithLabelValues(id).Inc()
	update(id, func(m *PipelineMetrics) { m.TransformErrors++ })
}

// SetQueueDepth records the handoff queue length.
func SetQueueDepth(id string, depth int) {
	queueDepth.WithLabelValues(id).Set(float64(depth))
	update(id, func(m *PipelineMetrics) { m.QueueDepth = depth })
}

// SetPipelineState records the numeric state of a pipeline.
func SetPipelineState(id string, state float64) {
	pipelineState.WithLabelValues(id).Set(state)
	update(id, func(m *PipelineMetrics) { m.State = state })
}

// ReactorDispatch counts one handler invocation for direction.
func ReactorDispatch(direction string) {
	reactorDispatches.WithLabelValues(direction).Inc()
}

// DeletePipeline removes every series and the snapshot for id.
func DeletePipeline(id string) {
	framesCaptured.DeleteLabelValues(id)
	framesDropped.DeleteLabelValues(id)
	framesWritten.DeleteLabelValues(id)
	transformErrors.DeleteLabelValues(id)
	queueDepth.DeleteLabelValues(id)
	pipelineState.DeleteLabelValues(id)
	captureErrors.DeletePartialMatch(prometheus.Labels{"pipeline": id})

	cacheMu.Lock()
	delete(cache, id)
	cacheMu.Unlock()
}

// GetPipelineMetrics returns a copy of the values recorded for id, or nil.
func GetPipelineMetrics(id string) *PipelineMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[id]; ok {
		dup := *m
		return &dup
	}
	return nil
}
