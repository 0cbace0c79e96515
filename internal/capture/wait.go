package capture

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// waitReadable polls fd for input. A negative timeout waits indefinitely.
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ms := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if timeout == 0 || remaining <= 0 {
				ms = 0
			} else {
				ms = int((remaining + time.Millisecond - 1) / time.Millisecond)
			}
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return false, unix.EBADF
		}
		return true, nil
	}
}
