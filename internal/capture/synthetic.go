package capture

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framereactor/internal/transform"
)

// SyntheticOptions configures a SyntheticDriver.
type SyntheticOptions struct {
	// Width and Height are reported regardless of the requested geometry.
	// Defaults to 640x480.
	Width  int
	Height int
	// Formats lists the pixel formats the device accepts. The first is used
	// when an unlisted format is requested. Defaults to YUYV and NV12.
	Formats []transform.PixelFormat
	// MaxBuffers caps how many buffers RequestBuffers grants. Defaults to 4.
	MaxBuffers int
	// FPS drives automatic frame generation while streaming. Zero means
	// frames are only produced by Fill.
	FPS int
}

type syntheticFrame struct {
	index     int
	bytesUsed int
	sequence  uint32
	timestamp time.Duration
	keyframe  bool
	corrupt   bool
}

// SyntheticDriver is an in-process capture device. Buffers live on the heap
// and a non-blocking pipe carries one byte per filled buffer, so the
// descriptor becomes readable exactly when a dequeue would succeed.
type SyntheticDriver struct {
	opts SyntheticOptions

	mu        sync.Mutex
	rfd, wfd  int
	format    Format
	bufs      [][]byte
	mapped    []bool
	queued    []int
	filled    []syntheticFrame
	streaming bool
	closed    bool
	sequence  uint32
	start     time.Time
	injected  []error
	corrupt   bool
	overruns  uint64
	unmaps    int

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSynthetic creates a synthetic device.
func NewSynthetic(opts SyntheticOptions) (*SyntheticDriver, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 640, 480
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []transform.PixelFormat{transform.YUYV, transform.NV12}
	}
	if opts.MaxBuffers <= 0 {
		opts.MaxBuffers = DefaultBuffers
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("synthetic pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, fmt.Errorf("synthetic pipe: %w", err)
		}
	}

	return &SyntheticDriver{
		opts:  opts,
		rfd:   fds[0],
		wfd:   fds[1],
		start: time.Now(),
	}, nil
}

// Fd returns the readable end of the notification pipe.
func (d *SyntheticDriver) Fd() int {
	return d.rfd
}

// Negotiate keeps the configured geometry and falls back to the first
// supported format when req.PixelFormat is not listed. It fails with EINVAL
// when the geometry does not fit the selected raw format.
func (d *SyntheticDriver) Negotiate(req Format) (Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Format{}, syscall.EBADF
	}
	if d.streaming || len(d.bufs) > 0 {
		return Format{}, syscall.EBUSY
	}

	pf := d.opts.Formats[0]
	if slices.Contains(d.opts.Formats, req.PixelFormat) {
		pf = req.PixelFormat
	}
	fps := req.FPS
	if fps <= 0 {
		fps = 30
	}

	f := Format{
		Width:       d.opts.Width,
		Height:      d.opts.Height,
		FPS:         fps,
		PixelFormat: pf,
	}
	switch pf {
	case transform.YUYV:
		f.BytesPerLine = f.Width * 2
	case transform.RGB24, transform.BGR24:
		f.BytesPerLine = f.Width * 3
	case transform.NV12, transform.YUV420:
		f.BytesPerLine = f.Width
	}
	switch size, err := transform.FrameSize(pf, f.Width, f.Height); {
	case err == nil:
		f.SizeImage = size
	case pf.IsCompressed():
		// Compressed formats get a fixed upper bound.
		f.SizeImage = f.Width * f.Height
	default:
		// The geometry cannot carry this layout, e.g. odd YUYV widths.
		return Format{}, syscall.EINVAL
	}

	d.format = f
	return f, nil
}

// RequestBuffers grants min(count, MaxBuffers) buffers. A count of zero frees them.
func (d *SyntheticDriver) RequestBuffers(count int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, syscall.EBADF
	}
	if d.streaming || slices.Contains(d.mapped, true) {
		return 0, syscall.EBUSY
	}
	if d.format.SizeImage == 0 {
		return 0, syscall.EINVAL
	}

	n := min(count, d.opts.MaxBuffers)
	d.bufs = make([][]byte, n)
	for i := range d.bufs {
		d.bufs[i] = make([]byte, d.format.SizeImage)
	}
	d.mapped = make([]bool, n)
	d.queued = nil
	d.filled = nil
	return n, nil
}

// MapBuffer returns the memory backing buffer index.
func (d *SyntheticDriver) MapBuffer(index int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= len(d.bufs) {
		return nil, syscall.EINVAL
	}
	d.mapped[index] = true
	return d.bufs[index], nil
}

// UnmapBuffer releases a mapping. Unmapping the same buffer twice fails with EINVAL.
func (d *SyntheticDriver) UnmapBuffer(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, b := range d.bufs {
		if len(buf) > 0 && len(b) > 0 && &b[0] == &buf[0] {
			if !d.mapped[i] {
				return syscall.EINVAL
			}
			d.mapped[i] = false
			d.unmaps++
			return nil
		}
	}
	return syscall.EINVAL
}

// QueueBuffer makes buffer index available for filling.
func (d *SyntheticDriver) QueueBuffer(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return syscall.EBADF
	}
	if index < 0 || index >= len(d.bufs) || slices.Contains(d.queued, index) {
		return syscall.EINVAL
	}
	d.queued = append(d.queued, index)
	return nil
}

// DequeueBuffer returns the oldest filled buffer, or EAGAIN.
func (d *SyntheticDriver) DequeueBuffer() (Dequeued, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Dequeued{}, syscall.EBADF
	}
	if len(d.injected) > 0 {
		err := d.injected[0]
		d.injected = d.injected[1:]
		d.drainLocked(1)
		return Dequeued{}, err
	}
	if !d.streaming || len(d.filled) == 0 {
		return Dequeued{}, syscall.EAGAIN
	}

	f := d.filled[0]
	d.filled = d.filled[1:]
	d.drainLocked(1)
	return Dequeued{
		Index:     f.index,
		BytesUsed: f.bytesUsed,
		Sequence:  f.sequence,
		Timestamp: f.timestamp,
		Keyframe:  f.keyframe,
		Corrupt:   f.corrupt,
	}, nil
}

// StreamOn starts accepting Fill calls and, with FPS set, generates frames.
func (d *SyntheticDriver) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return syscall.EBADF
	}
	if len(d.bufs) == 0 {
		return syscall.EINVAL
	}
	if d.streaming {
		return nil
	}
	d.streaming = true

	if d.opts.FPS > 0 {
		d.stop = make(chan struct{})
		d.wg.Add(1)
		go d.generate(d.stop, time.Second/time.Duration(d.opts.FPS))
	}
	return nil
}

// StreamOff stops generation and returns every buffer to the caller.
func (d *SyntheticDriver) StreamOff() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return syscall.EBADF
	}
	d.stopGeneratorLocked()
	d.streaming = false
	d.queued = nil
	d.filled = nil
	d.drainLocked(-1)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Close releases the pipe. Mapped buffers are not checked.
func (d *SyntheticDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.stopGeneratorLocked()
	d.closed = true
	d.streaming = false
	d.mu.Unlock()

	d.wg.Wait()
	return errors.Join(unix.Close(d.rfd), unix.Close(d.wfd))
}

func (d *SyntheticDriver) stopGeneratorLocked() {
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
}

func (d *SyntheticDriver) generate(stop <-chan struct{}, interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !d.Fill() {
				d.mu.Lock()
				d.overruns++
				d.mu.Unlock()
			}
		}
	}
}

// Fill completes capture into the oldest queued buffer. It reports false when
// not streaming or when no buffer is queued, in which case the frame is lost.
func (d *SyntheticDriver) Fill() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.streaming || len(d.queued) == 0 {
		return false
	}

	idx := d.queued[0]
	d.queued = d.queued[1:]
	seq := d.sequence
	d.sequence++

	n := paint(d.bufs[idx], d.format, seq)
	d.filled = append(d.filled, syntheticFrame{
		index:     idx,
		bytesUsed: n,
		sequence:  seq,
		timestamp: time.Since(d.start),
		keyframe:  d.format.PixelFormat.IsRaw() || seq%30 == 0,
		corrupt:   d.corrupt,
	})
	d.corrupt = false
	unix.Write(d.wfd, []byte{1})
	return true
}

// FailNext makes the next DequeueBuffer return err. The descriptor is made
// readable so push-mode consumers observe the failure.
func (d *SyntheticDriver) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = append(d.injected, err)
	unix.Write(d.wfd, []byte{1})
}

// CorruptNext flags the next filled buffer as unreliable.
func (d *SyntheticDriver) CorruptNext() {
	d.mu.Lock()
	d.corrupt = true
	d.mu.Unlock()
}

// Queued returns how many buffers are waiting to be filled.
func (d *SyntheticDriver) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queued)
}

// Unmaps returns how many buffers have been unmapped.
func (d *SyntheticDriver) Unmaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unmaps
}

// Overruns returns how many generated frames were lost for lack of a queued buffer.
func (d *SyntheticDriver) Overruns() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overruns
}

// drainLocked reads up to n notification bytes; n < 0 drains everything.
func (d *SyntheticDriver) drainLocked(n int) {
	buf := make([]byte, 64)
	for n != 0 {
		want := len(buf)
		if n > 0 && n < want {
			want = n
		}
		got, err := unix.Read(d.rfd, buf[:want])
		if err != nil || got <= 0 {
			return
		}
		if n > 0 {
			n -= got
		}
	}
}

// paint writes a test pattern for seq into buf and returns the bytes used.
// Raw frames carry a luma ramp that scrolls one column per frame.
func paint(buf []byte, f Format, seq uint32) int {
	w, h := f.Width, f.Height
	shift := int(seq)

	switch f.PixelFormat {
	case transform.YUYV:
		for y := 0; y < h; y++ {
			row := buf[y*w*2 : (y+1)*w*2]
			for x := 0; x < w; x += 2 {
				row[x*2] = byte(x + shift)
				row[x*2+1] = 128
				row[x*2+2] = byte(x + 1 + shift)
				row[x*2+3] = 128
			}
		}
		return w * h * 2
	case transform.NV12, transform.YUV420:
		ySize := w * h
		for i := 0; i < ySize; i++ {
			buf[i] = byte(i%w + shift)
		}
		for i := ySize; i < ySize*3/2; i++ {
			buf[i] = 128
		}
		return ySize * 3 / 2
	case transform.RGB24, transform.BGR24:
		for i := 0; i < w*h; i++ {
			v := byte(i%w + shift)
			buf[i*3], buf[i*3+1], buf[i*3+2] = v, v, v
		}
		return w * h * 3
	}

	// Compressed: a variable-size opaque payload.
	n := min(len(buf), 1024+int(seq%512))
	for i := 0; i < n; i++ {
		buf[i] = byte(seq)
	}
	return n
}
