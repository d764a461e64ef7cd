package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(NewJSONLoggerTo(&buf, "api", "info"), "gateway")
	logger.Debug("hidden")
	logger.Info("backend_search_failed", "backend", "qdrant")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if record["service"] != "api" || record["component"] != "gateway" || record["msg"] != "backend_search_failed" {
		t.Fatalf("unexpected record %v", record)
	}
}
