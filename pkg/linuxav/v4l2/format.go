//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"math"
	"syscall"
	"unsafe"
)

// v4l2FrmivalStepwise overlays the discrete member of v4l2Frmivalenum.
type v4l2FrmivalStepwise struct {
	min  v4l2Fract
	max  v4l2Fract
	step v4l2Fract
}

// enumerate issues one VIDIOC_ENUM_* request per index until the driver
// answers EINVAL. visit returns false to stop early.
func (d *Device) enumerate(req uint, arg unsafe.Pointer, setIndex func(uint32), visit func() bool) error {
	for i := uint32(0); ; i++ {
		setIndex(i)
		if err := ioctl(d.fd, req, arg); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				return nil
			}
			return fmt.Errorf("index %d: %w", i, err)
		}
		if !visit() {
			return nil
		}
	}
}

// Formats lists the capture pixel formats the device offers.
func (d *Device) Formats() ([]FormatInfo, error) {
	desc := v4l2Fmtdesc{typ: v4l2BufTypeVideoCapture}
	var out []FormatInfo
	err := d.enumerate(vidiocEnumFmt, unsafe.Pointer(&desc),
		func(i uint32) { desc.index = i },
		func() bool {
			out = append(out, FormatInfo{
				PixelFormat: desc.pixelformat,
				FormatName:  cstr(desc.description[:]),
				Emulated:    desc.flags&v4l2FmtFlagEmulated != 0,
				Compressed:  desc.flags&v4l2FmtFlagCompressed != 0,
			})
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("VIDIOC_ENUM_FMT: %w", err)
	}
	return out, nil
}

// FrameSizes lists the frame sizes offered for pixelFormat. A device without
// size enumeration yields an empty list.
func (d *Device) FrameSizes(pixelFormat uint32) ([]SizeRange, error) {
	e := v4l2Frmsizeenum{pixelFormat: pixelFormat}
	var out []SizeRange
	err := d.enumerate(vidiocEnumFramesizes, unsafe.Pointer(&e),
		func(i uint32) { e.index = i },
		func() bool {
			if e.typ == v4l2FrmsizeTypeDiscrete {
				w, h := e.discrete.width, e.discrete.height
				out = append(out, SizeRange{MinWidth: w, MaxWidth: w, MinHeight: h, MaxHeight: h})
				return true
			}
			sw := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&e.discrete))
			r := SizeRange{
				MinWidth: sw.minWidth, MaxWidth: sw.maxWidth, StepWidth: sw.stepWidth,
				MinHeight: sw.minHeight, MaxHeight: sw.maxHeight, StepHeight: sw.stepHeight,
			}
			if e.typ == v4l2FrmsizeTypeContinuous {
				r.StepWidth, r.StepHeight = 1, 1
			}
			out = append(out, r)
			// Stepwise and continuous ranges are reported once.
			return false
		})
	if errors.Is(err, syscall.ENOTTY) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("VIDIOC_ENUM_FRAMESIZES %s: %w", FormatFourCC(pixelFormat), err)
	}
	return out, nil
}

// FrameIntervals lists the frame intervals offered for pixelFormat at
// width x height. A device without interval enumeration yields an empty list.
func (d *Device) FrameIntervals(pixelFormat, width, height uint32) ([]IntervalRange, error) {
	e := v4l2Frmivalenum{pixelFormat: pixelFormat, width: width, height: height}
	var out []IntervalRange
	err := d.enumerate(vidiocEnumFrameintervals, unsafe.Pointer(&e),
		func(i uint32) { e.index = i },
		func() bool {
			if e.typ == v4l2FrmivalTypeDiscrete {
				f := framerateOf(e.discrete)
				out = append(out, IntervalRange{Min: f, Max: f})
				return true
			}
			sw := (*v4l2FrmivalStepwise)(unsafe.Pointer(&e.discrete))
			out = append(out, IntervalRange{Min: framerateOf(sw.min), Max: framerateOf(sw.max)})
			return false
		})
	if errors.Is(err, syscall.ENOTTY) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("VIDIOC_ENUM_FRAMEINTERVALS %s %dx%d: %w", FormatFourCC(pixelFormat), width, height, err)
	}
	return out, nil
}

// Fit returns the size inside r closest to width x height, snapped to the
// range's step.
func (r SizeRange) Fit(width, height uint32) (uint32, uint32) {
	return snap(width, r.MinWidth, r.MaxWidth, r.StepWidth),
		snap(height, r.MinHeight, r.MaxHeight, r.StepHeight)
}

func snap(v, lo, hi, step uint32) uint32 {
	v = max(lo, min(v, hi))
	if step <= 1 {
		return v
	}
	n := (v - lo + step/2) / step
	return min(lo+n*step, hi-(hi-lo)%step)
}

// NearestSize picks the offered size closest to width x height. It reports
// false when sizes is empty.
func NearestSize(sizes []SizeRange, width, height uint32) (uint32, uint32, bool) {
	var bestW, bestH uint32
	best := uint64(math.MaxUint64)
	for _, r := range sizes {
		w, h := r.Fit(width, height)
		if dist := absDiff(w, width) + absDiff(h, height); dist < best {
			best, bestW, bestH = dist, w, h
		}
	}
	return bestW, bestH, best != math.MaxUint64
}

// NearestRate picks the offered frame rate closest to fps. It reports false
// when intervals is empty.
func NearestRate(intervals []IntervalRange, fps float64) (float64, bool) {
	bestRate, best := 0.0, math.Inf(1)
	for _, r := range intervals {
		// The shortest interval is the fastest rate.
		rate := max(r.Max.FPS(), min(fps, r.Min.FPS()))
		if dist := math.Abs(rate - fps); dist < best {
			best, bestRate = dist, rate
		}
	}
	return bestRate, !math.IsInf(best, 1)
}

func absDiff(a, b uint32) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

// FormatFourCC renders a pixel format code as its four characters.
func FormatFourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}
