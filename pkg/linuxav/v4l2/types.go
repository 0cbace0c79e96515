//go:build linux

package v4l2

import (
	"errors"
	"time"
)

var (
	// ErrNotCaptureDevice is returned when a path is not a V4L2 video capture node.
	ErrNotCaptureDevice = errors.New("v4l2: not a video capture device")
	// ErrStreamingUnsupported is returned when a device lacks streaming I/O.
	ErrStreamingUnsupported = errors.New("v4l2: device does not support streaming I/O")
)

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Caps       uint32
}

// Streaming reports whether the device supports streaming (mmap) I/O.
func (d DeviceInfo) Streaming() bool {
	return d.Caps&v4l2CapStreaming != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
	Compressed  bool
}

// SizeRange is one frame size entry. A discrete size has Min equal to Max
// and zero steps.
type SizeRange struct {
	MinWidth, MaxWidth, StepWidth    uint32
	MinHeight, MaxHeight, StepHeight uint32
}

// Discrete reports whether r names a single size.
func (r SizeRange) Discrete() bool {
	return r.MinWidth == r.MaxWidth && r.MinHeight == r.MaxHeight
}

// IntervalRange bounds the frame intervals offered at one size. Min is the
// shortest interval. A discrete interval has Min equal to Max.
type IntervalRange struct {
	Min Framerate
	Max Framerate
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// PixFormat is the single-planar image format negotiated with a device.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Buffer describes a dequeued capture buffer.
type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Sequence  uint32
	Timestamp time.Duration // CLOCK_MONOTONIC time of capture
}

// Keyframe reports whether the driver flagged the buffer as a keyframe.
func (b Buffer) Keyframe() bool {
	return b.Flags&BufFlagKeyframe != 0
}

// Corrupt reports whether the driver flagged the buffer data as unreliable.
func (b Buffer) Corrupt() bool {
	return b.Flags&BufFlagError != 0
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000
	v4l2CapTimeperframe = 0x00001000
)

// Format flags.
const (
	v4l2FmtFlagCompressed = 0x0001
	v4l2FmtFlagEmulated   = 0x0002
)

// Pixel formats.
const (
	PixFmtYUYV   = 0x56595559 // 'YUYV'
	PixFmtNV12   = 0x3231564E // 'NV12'
	PixFmtYUV420 = 0x32315559 // 'YU12'
	PixFmtRGB24  = 0x33424752 // 'RGB3'
	PixFmtBGR24  = 0x33524742 // 'BGR3'
	PixFmtMJPEG  = 0x47504A4D // 'MJPG'
	PixFmtH264   = 0x34363248 // 'H264'
	PixFmtHEVC   = 0x43564548 // 'HEVC'
)

// Buffer flags.
const (
	BufFlagMapped   = 0x00000001
	BufFlagQueued   = 0x00000002
	BufFlagDone     = 0x00000004
	BufFlagKeyframe = 0x00000008
	BufFlagError    = 0x00000040
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

// Buffer type, memory and field.
const (
	v4l2BufTypeVideoCapture = 1
	v4l2MemoryMmap          = 1
	v4l2FieldAny            = 0
	v4l2FieldNone           = 1
)
