package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_WritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "portfolio", nil)

	log.Info(context.Background(), "wallet connected", "account", "0xabc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}

	if rec["msg"] != "wallet connected" {
		t.Errorf("expected msg 'wallet connected', got %v", rec["msg"])
	}
	if rec["service"] != "portfolio" {
		t.Errorf("expected service 'portfolio', got %v", rec["service"])
	}
	if rec["account"] != "0xabc" {
		t.Errorf("expected account '0xabc', got %v", rec["account"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected source to point at the test, got %q", src)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "debug")
	log.Info(context.Background(), "info")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}

	log.Warn(context.Background(), "warn")
	if !strings.Contains(buf.String(), `"msg":"warn"`) {
		t.Errorf("expected warn record, got %q", buf.String())
	}
}

func TestLogger_Events(t *testing.T) {
	var got []string
	events := &Events{
		Error: func(_ context.Context, r slog.Record) { got = append(got, r.Message) },
	}
	log := New(&bytes.Buffer{}, LevelDebug, "svc", events)

	log.Info(context.Background(), "ignored")
	log.Error(context.Background(), "boom")

	if len(got) != 1 || got[0] != "boom" {
		t.Errorf("expected one error event 'boom', got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
