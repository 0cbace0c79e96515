//go:build linux

package v4l2

import (
	"fmt"
	"os"
	"time"
	"unsafe"
)

// Device is an open V4L2 capture node using memory-mapped streaming I/O.
// The descriptor is opened non-blocking, so DequeueBuffer returns EAGAIN
// while no buffer has completed.
type Device struct {
	fd     int
	path   string
	card   string
	driver string
	caps   uint32
}

// OpenDevice opens path and verifies it is a video capture node with streaming support.
func OpenDevice(path string) (*Device, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		return nil, fmt.Errorf("%w: %s is not a character device", ErrNotCaptureDevice, path)
	}

	fd, err := open(path)
	if err != nil {
		return nil, err
	}

	cap := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&cap)); err != nil {
		close(fd)
		return nil, fmt.Errorf("%w: %s: VIDIOC_QUERYCAP: %w", ErrNotCaptureDevice, path, err)
	}

	caps := cap.effectiveCaps()
	if caps&v4l2CapVideoCapture == 0 {
		close(fd)
		return nil, fmt.Errorf("%w: %s", ErrNotCaptureDevice, path)
	}
	if caps&v4l2CapStreaming == 0 {
		close(fd)
		return nil, fmt.Errorf("%w: %s", ErrStreamingUnsupported, path)
	}

	return &Device{
		fd:     fd,
		path:   path,
		card:   cstr(cap.card[:]),
		driver: cstr(cap.driver[:]),
		caps:   caps,
	}, nil
}

// Fd returns the underlying file descriptor.
func (d *Device) Fd() int { return d.fd }

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Card returns the device name reported by the driver.
func (d *Device) Card() string { return d.card }

// Driver returns the kernel driver name.
func (d *Device) Driver() string { return d.driver }

// SetFormat requests a capture format and returns what the driver actually
// selected. Drivers adjust width and height to the nearest supported size.
func (d *Device) SetFormat(width, height, pixelFormat uint32) (PixFormat, error) {
	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	f.fmt.pix = v4l2PixFormat{
		width:       width,
		height:      height,
		pixelformat: pixelFormat,
		field:       v4l2FieldAny,
	}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return d.GetFormat()
}

// GetFormat returns the current capture format.
func (d *Device) GetFormat() (PixFormat, error) {
	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	pix := f.fmt.pix
	return PixFormat{
		Width:        pix.width,
		Height:       pix.height,
		PixelFormat:  pix.pixelformat,
		Field:        pix.field,
		BytesPerLine: pix.bytesperline,
		SizeImage:    pix.sizeimage,
	}, nil
}

// SetFrameRate requests fps frames per second. Devices without frame interval
// control keep their current rate, which is returned unchanged.
func (d *Device) SetFrameRate(fps uint32) (Framerate, error) {
	p := v4l2Streamparm{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	if fps == 0 || p.capture.capability&v4l2CapTimeperframe == 0 {
		return framerateOf(p.capture.timeperframe), nil
	}

	p.capture.timeperframe = v4l2Fract{numerator: 1, denominator: fps}
	if err := ioctl(d.fd, vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}
	return framerateOf(p.capture.timeperframe), nil
}

func framerateOf(f v4l2Fract) Framerate {
	return Framerate{Numerator: f.numerator, Denominator: f.denominator}
}

// RequestBuffers asks the driver for count mmap buffers and returns how many
// were granted. A count of zero releases all buffers.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2Requestbuffers{
		count:  count,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	return req.count, nil
}

// MapBuffer queries buffer index and maps it into the process.
func (d *Device) MapBuffer(index uint32) ([]byte, error) {
	buf := v4l2Buffer{
		index:  index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", index, err)
	}

	data, err := mmap(d.fd, int64(buf.mmapOffset()), int(buf.length))
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", index, err)
	}
	return data, nil
}

// UnmapBuffer releases a mapping returned by MapBuffer.
func (d *Device) UnmapBuffer(data []byte) error {
	return munmap(data)
}

// QueueBuffer hands buffer index to the driver for filling.
func (d *Device) QueueBuffer(index uint32) error {
	buf := v4l2Buffer{
		index:  index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// DequeueBuffer takes the oldest filled buffer from the driver. The returned
// error wraps syscall.EAGAIN when no buffer is ready.
func (d *Device) DequeueBuffer() (Buffer, error) {
	buf := v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return Buffer{}, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	return Buffer{
		Index:     buf.index,
		BytesUsed: buf.bytesused,
		Flags:     buf.flags,
		Field:     buf.field,
		Sequence:  buf.sequence,
		Timestamp: time.Duration(buf.timestamp.Nano()),
	}, nil
}

// StreamOn starts capture. All buffers the caller wants filled must be queued first.
func (d *Device) StreamOn() error {
	typ := uint32(v4l2BufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	return nil
}

// StreamOff stops capture. The driver returns every queued buffer to the
// dequeued state.
func (d *Device) StreamOff() error {
	typ := uint32(v4l2BufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	return nil
}

// Close closes the device descriptor. Buffers must be unmapped first.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := close(d.fd)
	d.fd = -1
	return err
}
