package reactor

import "time"

const defaultMaxEvents = 20

// interest is the set of directions the kernel should report for a descriptor.
type interest struct {
	read  bool
	write bool
}

func (i interest) none() bool {
	return !i.read && !i.write
}

// readiness is one descriptor's state after a wait.
type readiness struct {
	fd       int
	readable bool
	writable bool
}

// poller is the platform readiness primitive.
type poller interface {
	// update moves fd from the old interest set to the new one.
	update(fd int, old, next interest) error
	// wait blocks up to timeout and returns ready descriptors.
	wait(timeout time.Duration) ([]readiness, error)
	close() error
}
