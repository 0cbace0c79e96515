package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const deviceList = `
[[devices]]
id = "cam0"
path = "/dev/video0"
width = 640
height = 480
fps = 30
format = "yuyv"
output_format = "bgr24"

[[devices]]
id = "cam1"
path = "synthetic:320x240"
width = 320
height = 240
format = "nv12"
sink = "file"
sink_path = "/var/lib/framereactor/cam1.raw"
rotate_bytes = 1048576
queue_depth = 2
consumers = 2
enabled = false
`

func TestParseDevices(t *testing.T) {
	d, err := ParseDevices([]byte(deviceList))
	if err != nil {
		t.Fatalf("ParseDevices() error = %v", err)
	}
	if len(d.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(d.Devices))
	}

	cam0 := d.Devices[0]
	if cam0.Buffers != DefaultBuffers || cam0.QueueDepth != DefaultQueueDepth || cam0.Consumers != DefaultConsumers {
		t.Errorf("cam0 defaults = buffers %d queue %d consumers %d", cam0.Buffers, cam0.QueueDepth, cam0.Consumers)
	}
	if cam0.Sink != SinkDiscard || !cam0.IsEnabled() {
		t.Errorf("cam0 sink %q enabled %v", cam0.Sink, cam0.IsEnabled())
	}

	cam1, ok := d.Find("cam1")
	if !ok {
		t.Fatal("Find(cam1) = false")
	}
	if cam1.IsEnabled() {
		t.Error("cam1 should be disabled")
	}
	if cam1.RotateBytes != 1<<20 || cam1.Consumers != 2 || cam1.QueueDepth != 2 {
		t.Errorf("cam1 = %+v", cam1)
	}

	if enabled := d.Enabled(); len(enabled) != 1 || enabled[0].ID != "cam0" {
		t.Errorf("Enabled() = %v", enabled)
	}
}

func TestValidateDevices(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		wantMsg string
	}{
		{
			name: "duplicate id",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"
width = 640
height = 480
[[devices]]
id = "a"
path = "/dev/video1"
width = 640
height = 480`,
			wantMsg: "duplicate id",
		},
		{
			name: "empty path",
			toml: `
[[devices]]
id = "a"
width = 640
height = 480`,
			wantMsg: "missing path",
		},
		{
			name: "zero geometry",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"`,
			wantMsg: "must be positive",
		},
		{
			name: "unknown format",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"
width = 640
height = 480
format = "p010"`,
			wantMsg: "format",
		},
		{
			name: "unsupported conversion",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"
width = 640
height = 480
format = "mjpeg"
output_format = "rgb24"`,
			wantMsg: "no conversion",
		},
		{
			name: "file sink without path",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"
width = 640
height = 480
sink = "file"`,
			wantMsg: "sink_path",
		},
		{
			name: "too few buffers",
			toml: `
[[devices]]
id = "a"
path = "/dev/video0"
width = 640
height = 480
buffers = 1`,
			wantMsg: "at least 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDevices([]byte(tt.toml))
			if !errors.Is(err, ErrInvalidDevice) {
				t.Fatalf("ParseDevices() error = %v, want ErrInvalidDevice", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	enabled := true
	disabled := false
	dev := func(id string, width int, on *bool) DeviceConfig {
		return DeviceConfig{ID: id, Path: "/dev/" + id, Width: width, Height: 480, Enabled: on}
	}

	old := Devices{Devices: []DeviceConfig{
		dev("keep", 640, nil),
		dev("change", 640, nil),
		dev("remove", 640, nil),
		dev("disable", 640, &enabled),
	}}
	next := Devices{Devices: []DeviceConfig{
		dev("keep", 640, &enabled),
		dev("change", 1280, nil),
		dev("add", 640, nil),
		dev("disable", 640, &disabled),
	}}

	got := Diff(old, next)
	want := DeviceDiff{
		Start:   []string{"add"},
		Stop:    []string{"disable", "remove"},
		Restart: []string{"change"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %+v, want %+v", got, want)
	}

	if !Diff(old, old).Empty() {
		t.Error("Diff(old, old) is not empty")
	}
}
