package capture

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/framereactor/internal/transform"
)

// Format is a capture geometry and pixel layout.
type Format struct {
	Width        int
	Height       int
	FPS          int
	PixelFormat  transform.PixelFormat
	BytesPerLine int
	SizeImage    int
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d@%d %s", f.Width, f.Height, f.FPS, f.PixelFormat)
}

// Dequeued describes a buffer the driver reports as filled.
type Dequeued struct {
	Index     int
	BytesUsed int
	Sequence  uint32
	Timestamp time.Duration
	Keyframe  bool
	Corrupt   bool
}

// Driver is the device control plane a Session orchestrates. Errors must wrap
// the underlying errno so EAGAIN, EINTR and EIO can be told apart.
type Driver interface {
	Fd() int
	// Negotiate applies the requested format and returns what the device chose.
	Negotiate(req Format) (Format, error)
	// RequestBuffers allocates count buffers and returns how many were granted.
	RequestBuffers(count int) (int, error)
	MapBuffer(index int) ([]byte, error)
	UnmapBuffer(buf []byte) error
	QueueBuffer(index int) error
	DequeueBuffer() (Dequeued, error)
	StreamOn() error
	StreamOff() error
	Close() error
}

// SyntheticScheme prefixes device paths served by the synthetic driver,
// optionally followed by a geometry and rate such as "synthetic:1280x720@15".
const SyntheticScheme = "synthetic:"

// DefaultSyntheticFPS is the generation rate for synthetic paths without "@fps".
const DefaultSyntheticFPS = 30

func openDriver(path string) (Driver, error) {
	if strings.HasPrefix(path, SyntheticScheme) {
		opts, err := parseSyntheticPath(path)
		if err != nil {
			return nil, err
		}
		return NewSynthetic(opts)
	}
	return openV4L2(path)
}

func parseSyntheticPath(path string) (SyntheticOptions, error) {
	opts := SyntheticOptions{FPS: DefaultSyntheticFPS}
	spec := strings.TrimPrefix(path, SyntheticScheme)

	if geom, rate, ok := strings.Cut(spec, "@"); ok {
		fps, err := strconv.Atoi(rate)
		if err != nil || fps < 0 {
			return opts, fmt.Errorf("synthetic rate %q", rate)
		}
		opts.FPS = fps
		spec = geom
	}
	if spec == "" {
		return opts, nil
	}

	w, h, ok := strings.Cut(spec, "x")
	if !ok {
		return opts, fmt.Errorf("synthetic geometry %q: want WIDTHxHEIGHT", spec)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return opts, fmt.Errorf("synthetic width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return opts, fmt.Errorf("synthetic height %q", h)
	}
	opts.Width = width
	opts.Height = height
	return opts, nil
}
