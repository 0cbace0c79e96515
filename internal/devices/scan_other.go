//go:build !linux

package devices

// Scan is unavailable without V4L2.
func Scan(Options) ([]Device, error) {
	return nil, ErrUnsupported
}
