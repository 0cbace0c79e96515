package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framereactor/internal/api/models"
	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/metrics"
	"github.com/smazurov/framereactor/internal/pipeline"
)

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-pipelines",
		Method:      http.MethodGet,
		Path:        "/api/pipelines",
		Summary:     "List pipelines",
		Description: "Every pipeline the pool is running or that ended in error",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(context.Context, *struct{}) (*models.PipelineListResponse, error) {
		infos := s.pipelines.List()
		out := make([]models.PipelineData, 0, len(infos))
		for _, info := range infos {
			out = append(out, pipelineData(info))
		}
		return &models.PipelineListResponse{
			Body: models.PipelineListData{Pipelines: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{id}",
		Summary:     "Get pipeline",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.PipelineRequest) (*models.PipelineResponse, error) {
		for _, info := range s.pipelines.List() {
			if info.ID == input.ID {
				return &models.PipelineResponse{Body: pipelineData(info)}, nil
			}
		}
		return nil, huma.Error404NotFound("Pipeline not found: " + input.ID)
	})

	s.registerAction("start", "Start pipeline", s.pipelines.Start)
	s.registerAction("stop", "Stop pipeline", s.pipelines.Stop)
	s.registerAction("restart", "Restart pipeline", s.pipelines.Restart)
}

func (s *Server) registerAction(action, summary string, fn func(id string) error) {
	huma.Register(s.api, huma.Operation{
		OperationID: action + "-pipeline",
		Method:      http.MethodPost,
		Path:        "/api/pipelines/{id}/" + action,
		Summary:     summary,
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500},
	}, func(_ context.Context, input *models.PipelineRequest) (*models.PipelineActionResponse, error) {
		if err := fn(input.ID); err != nil {
			return nil, actionError(action, err)
		}
		return &models.PipelineActionResponse{
			Body: models.PipelineActionData{ID: input.ID, Action: action},
		}, nil
	})
}

func actionError(action string, err error) error {
	switch {
	case errors.Is(err, config.ErrUnknownDevice):
		return huma.Error404NotFound("Pipeline not in device list", err)
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return huma.Error409Conflict("Pipeline already running", err)
	default:
		return huma.Error500InternalServerError("Failed to "+action+" pipeline", err)
	}
}

func pipelineData(info *pipeline.Info) models.PipelineData {
	d := models.PipelineData{
		ID:           info.ID,
		RunID:        info.RunID,
		Device:       info.Device,
		State:        string(info.State),
		StartedAt:    info.StartedAt,
		RestartCount: info.RestartCount,
		Format: models.FormatData{
			Width:        info.Stats.Format.Width,
			Height:       info.Stats.Format.Height,
			FPS:          info.Stats.Format.FPS,
			BytesPerLine: info.Stats.Format.BytesPerLine,
			SizeImage:    info.Stats.Format.SizeImage,
		},
		Ring: models.RingData{
			Slots:     info.Stats.Ring.Slots,
			Queued:    info.Stats.Ring.Queued,
			Filled:    info.Stats.Ring.Filled,
			Delivered: info.Stats.Ring.Delivered,
			NotReady:  info.Stats.Ring.NotReady,
			Recovered: info.Stats.Ring.Recovered,
		},
		QueueDepth: info.Stats.QueueDepth,
		Dropped:    info.Stats.Dropped,
		Written:    info.Stats.Written,
	}
	if info.Stats.Format.PixelFormat != 0 {
		d.Format.PixelFormat = info.Stats.Format.PixelFormat.String()
	}
	if info.Stats.Output != 0 {
		d.Output = info.Stats.Output.String()
	}
	if m := metrics.GetPipelineMetrics(info.ID); m != nil {
		d.Captured = m.Captured
		d.CaptureErrs = m.CaptureErrors
		d.Transforms = m.TransformErrors
	}
	if info.LastError != nil {
		d.LastError = info.LastError.Error()
	}
	return d
}
