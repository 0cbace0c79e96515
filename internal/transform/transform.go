// Package transform converts raw video frames between fixed pixel layouts.
//
// Every conversion is a pure function of its inputs. Arguments are fully
// validated before the destination is touched, so a failed call never leaves
// partial output behind.
package transform

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidArgument is returned for bad geometry or buffers that are nil or too short.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedConversion is returned when no routine exists for a format pair.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)

type convertFunc func(src, dst []byte, width, height int)

type pair struct {
	src, dst PixelFormat
}

var conversions = map[pair]convertFunc{
	{YUYV, BGR24}:  yuyvToBGR24,
	{YUYV, YUV420}: yuyvToYUV420,
	{NV12, RGB24}:  nv12ToRGB24,
	{NV12, YUV420}: nv12ToYUV420,
}

// Supported reports whether Convert can produce dst from src.
func Supported(src, dst PixelFormat) bool {
	if src == dst {
		return src.IsRaw()
	}
	_, ok := conversions[pair{src, dst}]
	return ok
}

// Pair is a supported source and destination format combination.
type Pair struct {
	Src PixelFormat
	Dst PixelFormat
}

// Pairs lists the supported conversions in a stable order.
func Pairs() []Pair {
	out := make([]Pair, 0, len(conversions))
	for p := range conversions {
		out = append(out, Pair{Src: p.src, Dst: p.dst})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src.String() < out[j].Src.String()
		}
		return out[i].Dst.String() < out[j].Dst.String()
	})
	return out
}

// Convert writes the frame in src, laid out as srcFmt, into dst as dstFmt.
// Identical raw formats are copied.
func Convert(src, dst []byte, width, height int, srcFmt, dstFmt PixelFormat) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidArgument)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: geometry %dx%d", ErrInvalidArgument, width, height)
	}

	var fn convertFunc
	if srcFmt == dstFmt && srcFmt.IsRaw() {
		fn = func(src, dst []byte, _, _ int) { copy(dst, src) }
	} else {
		var ok bool
		fn, ok = conversions[pair{srcFmt, dstFmt}]
		if !ok {
			return fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, srcFmt, dstFmt)
		}
	}

	srcSize, err := FrameSize(srcFmt, width, height)
	if err != nil {
		return err
	}
	dstSize, err := FrameSize(dstFmt, width, height)
	if err != nil {
		return err
	}
	if len(src) < srcSize {
		return fmt.Errorf("%w: source has %d bytes, %s %dx%d needs %d", ErrInvalidArgument, len(src), srcFmt, width, height, srcSize)
	}
	if len(dst) < dstSize {
		return fmt.Errorf("%w: destination has %d bytes, %s %dx%d needs %d", ErrInvalidArgument, len(dst), dstFmt, width, height, dstSize)
	}

	fn(src[:srcSize], dst[:dstSize], width, height)
	return nil
}
