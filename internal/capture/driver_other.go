//go:build !linux

package capture

import (
	"errors"
	"fmt"
	"runtime"
)

var errV4L2Unsupported = errors.New("V4L2 capture requires linux")

func openV4L2(path string) (Driver, error) {
	return nil, fmt.Errorf("%w: %s on %s", errV4L2Unsupported, path, runtime.GOOS)
}
