//go:build linux

package capture

import (
	"fmt"
	"math"
	"strings"

	"github.com/smazurov/framereactor/internal/transform"
	"github.com/smazurov/framereactor/pkg/linuxav/v4l2"
)

// v4l2Driver adapts a V4L2 node to the Driver interface.
type v4l2Driver struct {
	dev *v4l2.Device
}

// openV4L2 opens a device node. Paths that are not absolute are treated as
// stable device ids and resolved through /dev/v4l/by-id.
func openV4L2(path string) (Driver, error) {
	if !strings.HasPrefix(path, "/") {
		resolved, err := v4l2.GetDevicePathByID(path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	dev, err := v4l2.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	return &v4l2Driver{dev: dev}, nil
}

func (d *v4l2Driver) Fd() int {
	return d.dev.Fd()
}

// Negotiate snaps the request to the nearest enumerated size and rate before
// S_FMT and S_PARM. Devices that do not enumerate get the request as is and
// adjust it themselves.
func (d *v4l2Driver) Negotiate(req Format) (Format, error) {
	pf := uint32(req.PixelFormat)
	width, height := uint32(req.Width), uint32(req.Height)
	if sizes, err := d.dev.FrameSizes(pf); err == nil {
		if w, h, ok := v4l2.NearestSize(sizes, width, height); ok {
			width, height = w, h
		}
	}

	pix, err := d.dev.SetFormat(width, height, pf)
	if err != nil {
		return Format{}, err
	}

	got := Format{
		Width:        int(pix.Width),
		Height:       int(pix.Height),
		PixelFormat:  transform.PixelFormat(pix.PixelFormat),
		BytesPerLine: int(pix.BytesPerLine),
		SizeImage:    int(pix.SizeImage),
	}

	if req.FPS > 0 {
		fps := req.FPS
		if intervals, err := d.dev.FrameIntervals(pix.PixelFormat, pix.Width, pix.Height); err == nil {
			if rate, ok := v4l2.NearestRate(intervals, float64(req.FPS)); ok && rate >= 1 {
				fps = int(math.Round(rate))
			}
		}
		rate, err := d.dev.SetFrameRate(uint32(fps))
		if err != nil {
			return Format{}, fmt.Errorf("frame rate %d: %w", fps, err)
		}
		got.FPS = int(math.Round(rate.FPS()))
	}
	return got, nil
}

func (d *v4l2Driver) RequestBuffers(count int) (int, error) {
	n, err := d.dev.RequestBuffers(uint32(count))
	return int(n), err
}

func (d *v4l2Driver) MapBuffer(index int) ([]byte, error) {
	return d.dev.MapBuffer(uint32(index))
}

func (d *v4l2Driver) UnmapBuffer(buf []byte) error {
	return d.dev.UnmapBuffer(buf)
}

func (d *v4l2Driver) QueueBuffer(index int) error {
	return d.dev.QueueBuffer(uint32(index))
}

func (d *v4l2Driver) DequeueBuffer() (Dequeued, error) {
	buf, err := d.dev.DequeueBuffer()
	if err != nil {
		return Dequeued{}, err
	}
	return Dequeued{
		Index:     int(buf.Index),
		BytesUsed: int(buf.BytesUsed),
		Sequence:  buf.Sequence,
		Timestamp: buf.Timestamp,
		Keyframe:  buf.Keyframe(),
		Corrupt:   buf.Corrupt(),
	}, nil
}

func (d *v4l2Driver) StreamOn() error {
	return d.dev.StreamOn()
}

func (d *v4l2Driver) StreamOff() error {
	return d.dev.StreamOff()
}

func (d *v4l2Driver) Close() error {
	return d.dev.Close()
}
