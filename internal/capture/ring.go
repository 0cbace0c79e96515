package capture

import (
	"errors"
	"fmt"
)

// SlotState is the ownership of one ring buffer.
type SlotState int

const (
	// SlotQueued buffers belong to the driver, waiting to be filled.
	SlotQueued SlotState = iota
	// SlotFilled buffers hold a frame that has not been released yet.
	SlotFilled
)

func (s SlotState) String() string {
	if s == SlotFilled {
		return "filled"
	}
	return "queued"
}

// ring is the fixed set of mapped buffers for one session. Each mapping is
// released exactly once by release.
type ring struct {
	bufs  [][]byte
	slots []SlotState
}

func newRing(n int) *ring {
	return &ring{
		bufs:  make([][]byte, n),
		slots: make([]SlotState, n),
	}
}

func (r *ring) len() int {
	return len(r.slots)
}

func (r *ring) valid(index int) bool {
	return index >= 0 && index < len(r.slots)
}

func (r *ring) count(state SlotState) int {
	n := 0
	for _, s := range r.slots {
		if s == state {
			n++
		}
	}
	return n
}

func (r *ring) setAll(state SlotState) {
	for i := range r.slots {
		r.slots[i] = state
	}
}

// release unmaps every buffer still mapped. Later calls are no-ops.
func (r *ring) release(unmap func([]byte) error) error {
	var errs []error
	for i, buf := range r.bufs {
		if buf == nil {
			continue
		}
		if err := unmap(buf); err != nil {
			errs = append(errs, fmt.Errorf("unmap buffer %d: %w", i, err))
		}
		r.bufs[i] = nil
	}
	return errors.Join(errs...)
}
