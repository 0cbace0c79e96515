package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetRegistry gives each test a fresh registry writing to buf.
func resetRegistry(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	prev := reg
	reg = newRegistry()
	reg.out = buf
	t.Cleanup(func() { reg = prev })
}

func TestModuleLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	resetRegistry(t, &buf)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"capture": "debug",
			"reactor": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"reactor", false, false, true},
		{"pipeline", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestModuleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	resetRegistry(t, &buf)
	Initialize(Config{Level: "debug", Format: "text"})

	GetLogger("capture").Debug("Buffer requeued", "index", 2)

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "Buffer requeued", "module=capture", "index=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	resetRegistry(t, &buf)
	Initialize(Config{Level: "info", Format: "json"})

	GetLogger("pipeline").Info("Pipeline running", "id", "cam0")

	out := buf.String()
	if !strings.Contains(out, `"msg":"Pipeline running"`) || !strings.Contains(out, `"module":"pipeline"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	var buf bytes.Buffer
	resetRegistry(t, &buf)

	before := GetLogger("capture")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize has debug enabled")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"capture": "debug"}})

	if GetLogger("capture") == before {
		t.Error("Initialize did not rebuild the module logger")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("level of logger created before Initialize was not updated")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	resetRegistry(t, &buf)
	Initialize(Config{Level: "info", Modules: map[string]string{"reactor": "warn"}})

	capture := GetLogger("capture")
	reactor := GetLogger("reactor")
	ctx := context.Background()

	if !SetLevel("", "debug") {
		t.Fatal("SetLevel(global) = false")
	}
	if !capture.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("global debug did not reach module without override")
	}
	if reactor.Handler().Enabled(ctx, slog.LevelInfo) {
		t.Error("global change overrode module level")
	}

	if !SetLevel("reactor", "debug") {
		t.Fatal("SetLevel(reactor) = false")
	}
	if !reactor.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("module level not applied")
	}

	if SetLevel("reactor", "loud") {
		t.Error("SetLevel accepted an invalid level")
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(multi).With("module", "test")

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Count(debugBuf.String(), "debug only") != 1 {
		t.Errorf("debug handler output: %s", debugBuf.String())
	}
	if strings.Contains(infoBuf.String(), "debug only") {
		t.Errorf("info handler received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(infoBuf.String(), "both") || !strings.Contains(infoBuf.String(), "module=test") {
		t.Errorf("info handler output: %s", infoBuf.String())
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	multi := NewMultiHandler(ok, failingHandler{ok})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := multi.Handle(context.Background(), r); err == nil {
		t.Error("Handle() error = nil, want joined error")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Error("healthy handler did not receive the record")
	}
}

func TestJournalFields(t *testing.T) {
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "Frame dropped", 0)
	r.AddAttrs(
		slog.Int("index", 3),
		slog.Bool("keyframe", true),
		slog.Duration("age", 1500*time.Millisecond),
		slog.Group("ring", slog.Int("queued", 2)),
	)

	fields := journalFields([]slog.Attr{slog.String("device", "/dev/video0")}, nil, r)

	want := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"DEVICE":            "/dev/video0",
		"INDEX":             "3",
		"KEYFRAME":          "true",
		"AGE":               "1.5s",
		"RING_QUEUED":       "2",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
