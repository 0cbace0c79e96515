// Package logging configures slog with per-module levels.
//
// Records go to stdout when a terminal, pipe or file is attached and to the
// systemd journal when journald is running; both at once when both are present.
//
// Initialize once at startup, then take a logger per component:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"reactor": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("capture").With("device", path)
//	logger.Info("Streaming started", "format", f)
//
// Loggers handed out before Initialize are updated in place, so package-level
// loggers pick up the configured levels.
//
// Levels are debug, info, warn and error. In TOML:
//
//	[logging]
//	level = "info"
//	format = "json"
//
//	[logging.modules]
//	pipeline = "debug"
//
// Journal entries carry SYSLOG_IDENTIFIER=framereactor and one upper-case
// field per attribute:
//
//	journalctl -t framereactor MODULE=capture DEVICE=/dev/video0
package logging
