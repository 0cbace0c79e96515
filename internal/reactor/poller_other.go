//go:build !linux && !darwin

package reactor

import (
	"errors"
	"runtime"
)

// ErrUnsupportedPlatform is returned by New on platforms without a poller backend.
var ErrUnsupportedPlatform = errors.New("reactor: no poller for " + runtime.GOOS)

func newPoller(int) (poller, error) {
	return nil, ErrUnsupportedPlatform
}
