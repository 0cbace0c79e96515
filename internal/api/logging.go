package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framereactor/internal/api/models"
	"github.com/smazurov/framereactor/internal/logging"
)

// globalModule addresses the global level in the logging route.
const globalModule = "global"

func (s *Server) registerLoggingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logging/{module}",
		Summary:     "Set log level",
		Description: "Changes a module's log level until restart. Module global sets the default for modules without an override.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		module := input.Module
		if module == globalModule {
			module = ""
		}
		if !logging.SetLevel(module, input.Body.Level) {
			return nil, huma.Error422UnprocessableEntity("Unknown level: " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "module", input.Module, "level", input.Body.Level)
		return &models.LogLevelResponse{
			Body: models.LogLevelData{Module: input.Module, Level: input.Body.Level},
		}, nil
	})
}
