package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/framereactor/internal/events"
)

// eventBuffer is how many events one slow client may lag before losing some.
const eventBuffer = 32

func (s *Server) registerEventRoutes() {
	if s.bus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event stream",
		Description: "Pipeline state changes, capture errors, hotplug and device list reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"pipeline-state": events.PipelineStateChangedEvent{},
		"capture-error":  events.CaptureErrorEvent{},
		"device-hotplug": events.DeviceHotplugEvent{},
		"config-reload":  events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, eventBuffer)
		unsubs := []func(){
			events.SubscribeToChannel[events.PipelineStateChangedEvent](s.bus, ch),
			events.SubscribeToChannel[events.CaptureErrorEvent](s.bus, ch),
			events.SubscribeToChannel[events.DeviceHotplugEvent](s.bus, ch),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.bus, ch),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
