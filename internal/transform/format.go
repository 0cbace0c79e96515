package transform

import (
	"fmt"
	"strings"
)

// PixelFormat is a V4L2 FourCC pixel format code.
type PixelFormat uint32

// Pixel formats understood by the engine. Values match the kernel FourCC codes.
const (
	YUYV   PixelFormat = 0x56595559 // 'YUYV' packed 4:2:2
	NV12   PixelFormat = 0x3231564E // 'NV12' semi-planar 4:2:0
	YUV420 PixelFormat = 0x32315559 // 'YU12' planar 4:2:0 (I420)
	RGB24  PixelFormat = 0x33424752 // 'RGB3'
	BGR24  PixelFormat = 0x33524742 // 'BGR3'
	MJPEG  PixelFormat = 0x47504A4D // 'MJPG'
	H264   PixelFormat = 0x34363248 // 'H264'
)

var formatNames = map[PixelFormat]string{
	YUYV:   "YUYV",
	NV12:   "NV12",
	YUV420: "YU12",
	RGB24:  "RGB3",
	BGR24:  "BGR3",
	MJPEG:  "MJPG",
	H264:   "H264",
}

// aliases accepted by ParsePixelFormat in addition to the FourCC names.
var formatAliases = map[string]PixelFormat{
	"YUY2":   YUYV,
	"I420":   YUV420,
	"YUV420": YUV420,
	"RGB":    RGB24,
	"RGB24":  RGB24,
	"BGR":    BGR24,
	"BGR24":  BGR24,
	"MJPEG":  MJPEG,
}

// String returns the FourCC name of the format.
func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return fmt.Sprintf("%q", string(b))
}

// IsRaw reports whether frames of this format have a fixed size derived from geometry.
func (f PixelFormat) IsRaw() bool {
	switch f {
	case YUYV, NV12, YUV420, RGB24, BGR24:
		return true
	}
	return false
}

// IsCompressed reports whether the format carries encoded frames of variable size.
func (f PixelFormat) IsCompressed() bool {
	return f == MJPEG || f == H264
}

// Known reports whether the format is handled by the engine or passed through as compressed data.
func (f PixelFormat) Known() bool {
	return f.IsRaw() || f.IsCompressed()
}

// ParsePixelFormat resolves a FourCC name or common alias (case-insensitive).
func ParsePixelFormat(s string) (PixelFormat, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: unknown pixel format %q", ErrInvalidArgument, s)
}

// FrameSize returns the number of bytes one frame occupies for raw formats.
func FrameSize(f PixelFormat, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: geometry %dx%d", ErrInvalidArgument, width, height)
	}
	switch f {
	case YUYV:
		if width%2 != 0 {
			return 0, fmt.Errorf("%w: YUYV width %d must be even", ErrInvalidArgument, width)
		}
		return width * height * 2, nil
	case NV12, YUV420:
		if width%2 != 0 || height%2 != 0 {
			return 0, fmt.Errorf("%w: %s geometry %dx%d must be even", ErrInvalidArgument, f, width, height)
		}
		return width * height * 3 / 2, nil
	case RGB24, BGR24:
		return width * height * 3, nil
	}
	return 0, fmt.Errorf("%w: %s has no fixed frame size", ErrUnsupportedConversion, f)
}
