//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation, and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// An open Device enumerates its formats, sizes and frame intervals on the
// same descriptor used for streaming:
//
//	dev, _ := v4l2.OpenDevice("/dev/video0")
//	formats, _ := dev.Formats()
//	sizes, _ := dev.FrameSizes(v4l2.PixFmtYUYV)
//	w, h, _ := v4l2.NearestSize(sizes, 1280, 720)
//	intervals, _ := dev.FrameIntervals(v4l2.PixFmtYUYV, w, h)
//	fps, _ := v4l2.NearestRate(intervals, 30)
//
// # Streaming
//
// OpenDevice returns a Device exposing the mmap streaming control plane:
//
//	dev, _ := v4l2.OpenDevice("/dev/video0")
//	pix, _ := dev.SetFormat(1280, 720, v4l2.PixFmtYUYV)
//	n, _ := dev.RequestBuffers(4)
//	for i := uint32(0); i < n; i++ {
//	    buf, _ := dev.MapBuffer(i)
//	    dev.QueueBuffer(i)
//	}
//	dev.StreamOn()
//	b, _ := dev.DequeueBuffer() // EAGAIN until a frame completes
//
// Buffer ownership (which slots are queued) is left to the caller.
package v4l2
