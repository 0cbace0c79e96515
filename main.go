package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framereactor/cmd"
	"github.com/smazurov/framereactor/internal/config"
	"github.com/smazurov/framereactor/internal/logging"
	"github.com/smazurov/framereactor/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"framereactor.toml"`

	// Device list
	DevicesFile string `help:"Device list file" default:"devices.toml" toml:"devices.file" env:"DEVICES_FILE"`

	// API server settings
	ServerAddr   string `help:"Control API listen address, empty disables" default:":8090" toml:"server.addr" env:"SERVER_ADDR"`
	AuthUsername string `help:"Basic auth username for the control API" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for the control API" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsAddr string `help:"Standalone Prometheus listen address; /metrics is also served by the API" default:"" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Reactor settings
	ReactorWaitTimeout string `help:"Reactor wait timeout" default:"1s" toml:"reactor.wait_timeout" env:"REACTOR_WAIT_TIMEOUT"`

	// Hotplug settings
	HotplugEnabled bool `help:"Stop and restart pipelines on device hotplug" default:"true" toml:"hotplug.enabled" env:"HOTPLUG_ENABLED"`

	// Pipeline settings
	PipelineShutdownTimeout string `help:"Per-pipeline teardown timeout" default:"10s" toml:"pipeline.shutdown_timeout" env:"PIPELINE_SHUTDOWN_TIMEOUT"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingReactor  string `help:"Reactor logging level" default:"info" toml:"logging.reactor" env:"LOGGING_REACTOR"`
	LoggingCapture  string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingHotplug  string `help:"Hotplug logging level" default:"info" toml:"logging.hotplug" env:"LOGGING_HOTPLUG"`
	LoggingConfig   string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingMetrics  string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"reactor":  opts.LoggingReactor,
				"capture":  opts.LoggingCapture,
				"pipeline": opts.LoggingPipeline,
				"hotplug":  opts.LoggingHotplug,
				"config":   opts.LoggingConfig,
				"metrics":  opts.LoggingMetrics,
				"api":      opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info("Starting framereactor", version.Get().LogAttrs()...)

		svc := newService(opts, logger)

		hooks.OnStart(func() {
			if startErr := svc.Start(); startErr != nil {
				logger.Error("Failed to start service", "error", startErr)
				os.Exit(1)
			}
			// humacli treats a returning OnStart as shutdown.
			svc.Wait()
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			svc.Stop()
		})
	})

	root := cli.Root()
	root.Use = "framereactor"
	root.Version = version.Get().String()
	root.Short = "V4L2 capture reactor"

	for _, sub := range []*cobra.Command{
		cmd.CreateDevicesCmd(),
		cmd.CreateConvertCmd(),
		cmd.CreateCaptureCmd(),
	} {
		root.AddCommand(sub)
	}

	// Run the CLI
	cli.Run()
}
