package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/framereactor/internal/transform"
)

// Device list defaults.
const (
	DefaultBuffers    = 4
	DefaultQueueDepth = 8
	DefaultConsumers  = 1
)

// Sink kinds.
const (
	SinkDiscard = "discard"
	SinkFile    = "file"
)

// ErrInvalidDevice is wrapped by every device list validation failure.
var ErrInvalidDevice = errors.New("invalid device config")

// ErrUnknownDevice is returned for an id missing from the device list.
var ErrUnknownDevice = errors.New("unknown device")

// DeviceConfig describes one capture pipeline.
type DeviceConfig struct {
	ID           string `toml:"id"`
	Path         string `toml:"path"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	FPS          int    `toml:"fps"`
	Format       string `toml:"format"`
	OutputFormat string `toml:"output_format"`
	Buffers      int    `toml:"buffers"`
	QueueDepth   int    `toml:"queue_depth"`
	Consumers    int    `toml:"consumers"`
	Sink         string `toml:"sink"`
	SinkPath     string `toml:"sink_path"`
	RotateBytes  int64  `toml:"rotate_bytes"`
	Enabled      *bool  `toml:"enabled"`
}

// IsEnabled reports whether the pipeline should run. Unset means enabled.
func (d DeviceConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// PixelFormat returns the parsed capture format.
func (d DeviceConfig) PixelFormat() (transform.PixelFormat, error) {
	return transform.ParsePixelFormat(d.Format)
}

// OutputPixelFormat returns the parsed output format. Empty means the capture format.
func (d DeviceConfig) OutputPixelFormat() (transform.PixelFormat, error) {
	if d.OutputFormat == "" {
		return d.PixelFormat()
	}
	return transform.ParsePixelFormat(d.OutputFormat)
}

// Devices is the device list file.
type Devices struct {
	Devices []DeviceConfig `toml:"devices"`
}

// LoadDevices reads, defaults and validates the device list at path.
func LoadDevices(path string) (Devices, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Devices{}, fmt.Errorf("read device list: %w", err)
	}
	return ParseDevices(data)
}

// ParseDevices decodes a device list, fills defaults and validates it.
func ParseDevices(data []byte) (Devices, error) {
	var d Devices
	if err := toml.Unmarshal(data, &d); err != nil {
		return Devices{}, fmt.Errorf("parse device list: %w", err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return Devices{}, err
	}
	return d, nil
}

func (d *Devices) applyDefaults() {
	for i := range d.Devices {
		d.Devices[i].ApplyDefaults()
	}
}

// ApplyDefaults fills unset optional fields.
func (d *DeviceConfig) ApplyDefaults() {
	if d.Format == "" {
		d.Format = "yuyv"
	}
	if d.Buffers == 0 {
		d.Buffers = DefaultBuffers
	}
	if d.QueueDepth == 0 {
		d.QueueDepth = DefaultQueueDepth
	}
	if d.Consumers == 0 {
		d.Consumers = DefaultConsumers
	}
	if d.Sink == "" {
		d.Sink = SinkDiscard
	}
}

// Validate checks every device and returns all problems joined.
func (d Devices) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	for i, dev := range d.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if dev.ID != "" {
			where = fmt.Sprintf("device %q", dev.ID)
		}
		fail := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidDevice, where, fmt.Sprintf(format, args...)))
		}

		switch {
		case dev.ID == "":
			fail("missing id")
		case seen[dev.ID]:
			fail("duplicate id")
		}
		seen[dev.ID] = true

		if dev.Path == "" {
			fail("missing path")
		}
		if dev.Width <= 0 || dev.Height <= 0 {
			fail("geometry %dx%d must be positive", dev.Width, dev.Height)
		}
		if dev.FPS < 0 {
			fail("fps %d is negative", dev.FPS)
		}

		in, err := dev.PixelFormat()
		if err != nil {
			fail("format: %v", err)
		}
		out, err := dev.OutputPixelFormat()
		if err != nil {
			fail("output_format: %v", err)
		}
		if in.Known() && out.Known() && in != out && !transform.Supported(in, out) {
			fail("no conversion from %s to %s", in, out)
		}

		if dev.Buffers < 2 {
			fail("buffers %d, need at least 2", dev.Buffers)
		}
		if dev.QueueDepth < 1 {
			fail("queue_depth %d, need at least 1", dev.QueueDepth)
		}
		if dev.Consumers < 1 {
			fail("consumers %d, need at least 1", dev.Consumers)
		}

		switch dev.Sink {
		case SinkDiscard:
		case SinkFile:
			if dev.SinkPath == "" {
				fail("file sink needs sink_path")
			}
		default:
			fail("unknown sink %q", dev.Sink)
		}
		if dev.RotateBytes < 0 {
			fail("rotate_bytes is negative")
		}
	}
	return errors.Join(errs...)
}

// Find returns the device with id.
func (d Devices) Find(id string) (DeviceConfig, bool) {
	i := slices.IndexFunc(d.Devices, func(dev DeviceConfig) bool { return dev.ID == id })
	if i < 0 {
		return DeviceConfig{}, false
	}
	return d.Devices[i], true
}

// Enabled returns the devices that should run.
func (d Devices) Enabled() []DeviceConfig {
	var out []DeviceConfig
	for _, dev := range d.Devices {
		if dev.IsEnabled() {
			out = append(out, dev)
		}
	}
	return out
}

// DeviceDiff lists the pipeline ids a reload must start, stop and restart.
type DeviceDiff struct {
	Start   []string
	Stop    []string
	Restart []string
}

// Empty reports whether the reload changes nothing.
func (d DeviceDiff) Empty() bool {
	return len(d.Start) == 0 && len(d.Stop) == 0 && len(d.Restart) == 0
}

// Diff compares the enabled devices of old and next.
func Diff(old, next Devices) DeviceDiff {
	var diff DeviceDiff
	before := make(map[string]DeviceConfig)
	for _, dev := range old.Enabled() {
		before[dev.ID] = dev
	}

	for _, dev := range next.Enabled() {
		prev, ok := before[dev.ID]
		switch {
		case !ok:
			diff.Start = append(diff.Start, dev.ID)
		case !sameDevice(prev, dev):
			diff.Restart = append(diff.Restart, dev.ID)
		}
		delete(before, dev.ID)
	}
	for id := range before {
		diff.Stop = append(diff.Stop, id)
	}

	slices.Sort(diff.Start)
	slices.Sort(diff.Stop)
	slices.Sort(diff.Restart)
	return diff
}

func sameDevice(a, b DeviceConfig) bool {
	a.Enabled, b.Enabled = nil, nil
	return a == b
}
