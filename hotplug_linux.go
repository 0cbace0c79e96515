//go:build linux

package main

import (
	"fmt"
	"time"

	"github.com/smazurov/framereactor/internal/events"
	"github.com/smazurov/framereactor/internal/logging"
	"github.com/smazurov/framereactor/internal/reactor"
	"github.com/smazurov/framereactor/pkg/linuxav/hotplug"
)

// startHotplug registers a video4linux uevent monitor on the service reactor.
// The monitor handler runs on the reactor goroutine and only publishes; the
// bus subscriber does the pipeline work.
func startHotplug(s *service) (func(), error) {
	mon, err := hotplug.NewMonitor(
		hotplug.WithLogger(logging.GetLogger("hotplug")),
		hotplug.WithHandler(func(ev hotplug.Event) {
			node := ev.Node()
			if node == "" {
				return
			}
			s.bus.Publish(events.DeviceHotplugEvent{
				Action:     ev.Action,
				DevicePath: node,
				Timestamp:  time.Now(),
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	mon.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	unsub := s.bus.Subscribe(func(e events.DeviceHotplugEvent) {
		switch e.Action {
		case hotplug.ActionRemove:
			s.onDeviceRemoved(e.DevicePath)
		case hotplug.ActionAdd:
			s.onDeviceAdded(e.DevicePath)
		}
	})

	if err := s.loop.Register(mon.Fd(), reactor.Read, mon); err != nil {
		unsub()
		_ = mon.Close()
		return nil, fmt.Errorf("register hotplug monitor: %w", err)
	}

	return func() {
		s.loop.Unregister(mon.Fd(), reactor.Read)
		unsub()
		_ = mon.Close()
	}, nil
}
