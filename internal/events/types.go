package events

import "time"

// Event type identifiers for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypeCaptureError
	TypeDeviceHotplug
	TypeConfigReloaded
)

// Event is anything the bus can carry.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent reports a pipeline lifecycle transition.
type PipelineStateChangedEvent struct {
	PipelineID string    `json:"pipeline_id"`
	RunID      string    `json:"run_id,omitempty"`
	OldState   string    `json:"old_state"`
	NewState   string    `json:"new_state"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// CaptureErrorEvent reports a capture failure. Fatal errors ended the session;
// the others cost one frame.
type CaptureErrorEvent struct {
	PipelineID string    `json:"pipeline_id"`
	DevicePath string    `json:"device_path"`
	Kind       string    `json:"kind"`
	Error      string    `json:"error"`
	Fatal      bool      `json:"fatal"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// DeviceHotplugEvent reports a video4linux node appearing or disappearing.
type DeviceHotplugEvent struct {
	Action     string    `json:"action"`
	DevicePath string    `json:"device_path"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }

// ConfigReloadedEvent is published after the devices file changed and the
// pipelines were reconciled.
type ConfigReloadedEvent struct {
	Path      string    `json:"path"`
	Started   []string  `json:"started,omitempty"`
	Stopped   []string  `json:"stopped,omitempty"`
	Restarted []string  `json:"restarted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
