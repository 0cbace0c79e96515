package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the logging surface components depend on. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the global level, the output format and per-module overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type registry struct {
	mu      sync.RWMutex
	config  Config
	ready   bool
	out     io.Writer
	global  slog.LevelVar
	loggers map[string]*slog.Logger
	levels  map[string]*slog.LevelVar
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		out:     os.Stdout,
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
	}
}

// Initialize applies config to the default logger and every module logger,
// including ones handed out before the call.
func Initialize(config Config) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.config = config
	reg.ready = true
	reg.global.Set(levelOr(config.Level, slog.LevelInfo))

	for module, lv := range reg.levels {
		lv.Set(reg.moduleLevel(module))
		reg.loggers[module] = slog.New(reg.handler(lv)).With("module", module)
	}

	slog.SetDefault(slog.New(reg.handler(&reg.global)))
}

// SetLevel changes the level of one module at runtime. An empty module
// changes the global level and every module without an override.
func SetLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if module == "" {
		reg.config.Level = level
		reg.global.Set(*parsed)
		for m, lv := range reg.levels {
			if _, ok := reg.config.Modules[m]; !ok {
				lv.Set(*parsed)
			}
		}
		return true
	}

	if reg.config.Modules == nil {
		reg.config.Modules = make(map[string]string)
	}
	reg.config.Modules[module] = level
	if lv, ok := reg.levels[module]; ok {
		lv.Set(*parsed)
	}
	return true
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	reg.mu.RLock()
	logger, ok := reg.loggers[module]
	reg.mu.RUnlock()
	if ok {
		return logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if logger, ok := reg.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(reg.moduleLevel(module))
	logger = slog.New(reg.handler(lv)).With("module", module)
	reg.loggers[module] = logger
	reg.levels[module] = lv
	return logger
}

func (r *registry) moduleLevel(module string) slog.Level {
	if !r.ready {
		return slog.LevelInfo
	}
	level := levelOr(r.config.Level, slog.LevelInfo)
	if s, ok := r.config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// handler builds the output chain: stdout when something is attached to it,
// plus the journal when journald is listening.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var out slog.Handler
	if r.ready && r.config.Format == "json" {
		out = slog.NewJSONHandler(r.out, opts)
	} else {
		out = slog.NewTextHandler(r.out, opts)
	}

	var handlers []slog.Handler
	if r.out != os.Stdout || isStdoutAvailable() {
		handlers = append(handlers, out)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return out
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or file.
// /dev/null is a device and does not count.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return fallback
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
