// Package api is the HTTP control surface of the service: pipeline status and
// control, an event stream, and the Prometheus endpoint.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/framereactor/internal/api/models"
	"github.com/smazurov/framereactor/internal/devices"
	"github.com/smazurov/framereactor/internal/events"
	"github.com/smazurov/framereactor/internal/pipeline"
	"github.com/smazurov/framereactor/internal/version"
)

// PipelineController is the part of a pipeline pool the API drives.
type PipelineController interface {
	List() []*pipeline.Info
	Start(id string) error
	Stop(id string) error
	Restart(id string) error
}

// DeviceScanner enumerates capture devices.
type DeviceScanner func(devices.Options) ([]devices.Device, error)

// Options configures a Server.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	Pipelines      PipelineController
	Bus            *events.Bus
	Devices        DeviceScanner // enables /api/devices when set
	MetricsHandler http.Handler  // mounted at /metrics when set
	Logger         *slog.Logger
}

// Server is the huma API over a net/http mux.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	pipelines  PipelineController
	scan       DeviceScanner
	bus        *events.Bus
	logger     *slog.Logger
}

// NewServer builds the API and registers every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Pipelines == nil {
		return nil, errors.New("api: pipeline controller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	cors := DefaultCORSConfig()
	AddCORSHandler(mux, cors)

	config := huma.DefaultConfig("framereactor API", version.Version)
	config.Info.Description = "Capture pipeline status and control"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}

	s := &Server{
		api:       humago.New(mux, config),
		mux:       mux,
		pipelines: opts.Pipelines,
		scan:      opts.Devices,
		bus:       opts.Bus,
		logger:    logger,
	}

	s.api.UseMiddleware(NewCORSMiddleware(cors))
	s.api.UseMiddleware(requestLogger(logger))
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		s.api.UseMiddleware(s.basicAuth(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	s.registerRoutes()
	return s, nil
}

// Handler returns the mux serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", "addr", addr, "docs", "http://"+addr+"/docs")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		// Event streams never finish on their own, so close instead of draining.
		return s.httpServer.Close()
	}
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(context.Context, *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(context.Context, *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerPipelineRoutes()
	s.registerDeviceRoutes()
	s.registerLoggingRoutes()
	s.registerEventRoutes()
}

func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}
