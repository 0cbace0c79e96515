package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.2.0",
		GitCommit: "0123456789abcdef0123",
		BuildDate: "2026-01-02",
		GoVersion: "go1.24.11",
		Platform:  "linux/arm64",
	}
	want := "1.2.0 (commit 0123456789ab, built 2026-01-02, go1.24.11 linux/arm64)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || !strings.HasPrefix(info.GoVersion, "go") || !strings.Contains(info.Platform, "/") {
		t.Errorf("Get() = %+v", info)
	}
	if len(info.LogAttrs())%2 != 0 {
		t.Error("LogAttrs() is not key/value pairs")
	}
}
