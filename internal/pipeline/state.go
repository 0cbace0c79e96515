package pipeline

import "time"

// State is the lifecycle of a pipeline inside a Pool.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Gauge is the value exported as framereactor_pipeline_state.
func (s State) Gauge() float64 {
	switch s {
	case StateStarting:
		return 1
	case StateRunning:
		return 2
	case StateStopping:
		return 3
	case StateError:
		return 4
	}
	return 0
}

// Info describes one pipeline in a Pool.
type Info struct {
	ID           string
	RunID        string
	Device       string
	State        State
	StartedAt    time.Time
	RestartCount int
	LastError    error
	Stats        Stats
}
