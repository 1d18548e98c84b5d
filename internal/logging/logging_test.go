package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/docannot/internal/config"
)

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
	log.Debug("hidden")
	log.Info("analyzers initialized", "lang", "eng")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines", len(lines))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if m["lang"] != "eng" || m["msg"] != "analyzers initialized" {
		t.Errorf("unexpected record %v", m)
	}
}

func TestNewWriter_TextHasSource(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})
	log.Debug("source test")
	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("text format should include source information, got %q", buf.String())
	}
}

func TestNew_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := New(config.LogConfig{Level: "warn", Format: "json"})
	if slog.Default() != logger {
		t.Error("expected New to replace the default logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
