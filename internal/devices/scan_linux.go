//go:build linux

package devices

import (
	"log/slog"

	"github.com/smazurov/framereactor/internal/transform"
	"github.com/smazurov/framereactor/pkg/linuxav/v4l2"
)

// Scan lists the capture devices present now. A device whose formats cannot
// be queried is still listed, without formats.
func Scan(opts Options) ([]Device, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}

	out := make([]Device, 0, len(found))
	for _, d := range found {
		dev := Device{
			Path:    d.DevicePath,
			Name:    d.DeviceName,
			ID:      d.DeviceID,
			Driver:  d.Driver,
			BusInfo: d.BusInfo,
		}
		if opts.Formats || opts.Modes {
			formats, err := scanFormats(d.DevicePath, opts.Modes)
			if err != nil {
				slog.Debug("Failed to query formats", "path", d.DevicePath, "error", err)
			}
			dev.Formats = formats
		}
		out = append(out, dev)
	}
	return out, nil
}

func scanFormats(path string, modes bool) ([]Format, error) {
	dev, err := v4l2.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	formats, err := dev.Formats()
	if err != nil {
		return nil, err
	}

	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		format := Format{
			FourCC:      v4l2.FormatFourCC(f.PixelFormat),
			Description: f.FormatName,
			Compressed:  f.Compressed,
			Emulated:    f.Emulated,
			Convertible: Convertible(transform.PixelFormat(f.PixelFormat)),
		}
		if modes {
			format.Modes = scanModes(dev, f.PixelFormat)
		}
		out = append(out, format)
	}
	return out, nil
}

// scanModes lists discrete sizes as they are. A stepwise range is shown by
// its smallest and largest size.
func scanModes(dev *v4l2.Device, pixelFormat uint32) []Mode {
	sizes, err := dev.FrameSizes(pixelFormat)
	if err != nil {
		return nil
	}
	var modes []Mode
	for _, r := range sizes {
		bounds := [][2]uint32{{r.MinWidth, r.MinHeight}}
		if !r.Discrete() {
			bounds = append(bounds, [2]uint32{r.MaxWidth, r.MaxHeight})
		}
		for _, b := range bounds {
			mode := Mode{Width: b[0], Height: b[1]}
			intervals, _ := dev.FrameIntervals(pixelFormat, b[0], b[1])
			for _, iv := range intervals {
				mode.FPS = append(mode.FPS, iv.Min.FPS())
				if iv.Max != iv.Min {
					mode.FPS = append(mode.FPS, iv.Max.FPS())
				}
			}
			modes = append(modes, mode)
		}
	}
	return modes
}
