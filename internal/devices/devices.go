// Package devices enumerates capture devices and what the pipelines can do
// with their formats.
package devices

import (
	"errors"

	"github.com/smazurov/framereactor/internal/transform"
)

// ErrUnsupported is returned by Scan where V4L2 is unavailable.
var ErrUnsupported = errors.New("device enumeration requires linux")

// Device is one V4L2 video capture node.
type Device struct {
	Path    string   `json:"path" example:"/dev/video0"`
	Name    string   `json:"name" example:"HD Pro Webcam C920"`
	ID      string   `json:"id" doc:"Stable id from /dev/v4l/by-id or a synthetic bus id"`
	Driver  string   `json:"driver" example:"uvcvideo"`
	BusInfo string   `json:"bus_info"`
	Formats []Format `json:"formats,omitempty"`
}

// Format is one pixel format a device offers.
type Format struct {
	FourCC      string `json:"fourcc" example:"YUYV"`
	Description string `json:"description"`
	Compressed  bool   `json:"compressed"`
	Emulated    bool   `json:"emulated"`
	// Convertible formats have at least one transform target.
	Convertible bool   `json:"convertible"`
	Modes       []Mode `json:"modes,omitempty"`
}

// Mode is a frame size and the frame rates offered at it.
type Mode struct {
	Width  uint32    `json:"width"`
	Height uint32    `json:"height"`
	FPS    []float64 `json:"fps,omitempty"`
}

// Options select how much Scan queries per device.
type Options struct {
	Formats bool
	Modes   bool // implies Formats
}

// Convertible reports whether the transform engine has a conversion from f.
func Convertible(f transform.PixelFormat) bool {
	for _, pair := range transform.Pairs() {
		if pair.Src == f {
			return true
		}
	}
	return false
}
