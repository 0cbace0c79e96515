package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framereactor/internal/api/models"
	"github.com/smazurov/framereactor/internal/devices"
)

func (s *Server) registerDeviceRoutes() {
	if s.scan == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List capture devices",
		Description: "Enumerates V4L2 capture devices. Modes adds resolutions and frame rates per format.",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 501},
	}, func(_ context.Context, input *models.DeviceListRequest) (*models.DeviceListResponse, error) {
		devs, err := s.scan(devices.Options{Formats: true, Modes: input.Modes})
		switch {
		case errors.Is(err, devices.ErrUnsupported):
			return nil, huma.NewError(http.StatusNotImplemented, "Device enumeration unavailable", err)
		case err != nil:
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}
		if devs == nil {
			devs = []devices.Device{}
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: devs, Count: len(devs)},
		}, nil
	})
}
