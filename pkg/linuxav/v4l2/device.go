//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

const (
	sysClassDir = "/sys/class/video4linux"
	byIDDir     = "/dev/v4l/by-id"
)

// FindDevices lists the video capture nodes registered with the kernel.
// Nodes that only expose metadata or output queues are skipped.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysClassDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sysClassDir, err)
	}

	links := stableLinks()
	var out []DeviceInfo
	for _, entry := range entries {
		info, err := describe(entry.Name(), links)
		if err != nil {
			slog.With("component", "linuxav").Debug("Skipping video node", "node", entry.Name(), "error", err)
			continue
		}
		if info.Caps&v4l2CapVideoCapture != 0 {
			out = append(out, info)
		}
	}
	return out, nil
}

// describe queries one /dev node and fills in its stable id.
func describe(node string, links map[string][]string) (DeviceInfo, error) {
	path := "/dev/" + node
	fd, err := open(path)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer close(fd)

	var cap v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&cap)); err != nil {
		return DeviceInfo{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}

	info := DeviceInfo{
		DevicePath: path,
		DeviceName: cstr(cap.card[:]),
		Driver:     cstr(cap.driver[:]),
		BusInfo:    cstr(cap.busInfo[:]),
		Caps:       cap.effectiveCaps(),
	}

	index := sysfsIndex(node)
	suffix := "-video-index" + strconv.Itoa(index)
	for _, name := range links[node] {
		if strings.HasSuffix(name, suffix) {
			info.DeviceID = name
			break
		}
	}
	if info.DeviceID == "" {
		prefix := "platform-"
		if strings.HasPrefix(info.BusInfo, "usb-") {
			prefix = ""
		}
		info.DeviceID = prefix + info.BusInfo + suffix
	}
	return info, nil
}

// stableLinks maps each /dev node name to the by-id symlinks pointing at it.
func stableLinks() map[string][]string {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return nil
	}
	links := make(map[string][]string, len(entries))
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		links[node] = append(links[node], entry.Name())
	}
	return links
}

func sysfsIndex(node string) int {
	data, err := os.ReadFile(filepath.Join(sysClassDir, node, "index"))
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return n
}

// GetDevicePathByID resolves a stable id to its /dev node. Ids backed by a
// by-id symlink resolve without opening any device.
func GetDevicePathByID(deviceID string) (string, error) {
	if path, err := filepath.EvalSymlinks(filepath.Join(byIDDir, deviceID)); err == nil {
		return path, nil
	}

	devices, err := FindDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.DeviceID == deviceID {
			return d.DevicePath, nil
		}
	}
	return "", fmt.Errorf("device id %q: %w", deviceID, os.ErrNotExist)
}

// cstr converts a NUL-terminated byte array to a string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
