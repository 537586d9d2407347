package log

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var sb strings.Builder
	logger := New(Config{Level: LevelWarn, Output: &sb})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")
	logger.Error("also visible")

	out := sb.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "also visible") {
		t.Errorf("expected messages missing: %q", out)
	}
}

func TestLogger_Fields(t *testing.T) {
	var sb strings.Builder
	logger := New(Config{Level: LevelDebug, Output: &sb}).
		WithComponent("loader").
		WithField("resource", "duck.glb")

	logger.Info("load took %dms", 42)

	out := sb.String()
	for _, want := range []string{"component=loader", "resource=duck.glb", "load took 42ms", "[INFO]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
