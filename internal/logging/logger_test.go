package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"ghcnd-server/internal/config"
)

func TestNew_ReleaseLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}
	logger := newWithWriter(&buf, cfg, "1.2.3", "ghcnd-server")

	logger.Info("catalog loaded", "stations", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]any{
		"msg":      "catalog loaded",
		"app":      "ghcnd-server",
		"version":  "1.2.3",
		"env":      "prod",
		"stations": float64(3),
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}
	logger := newWithWriter(&buf, cfg, "1.2.3", "ghcnd-server")

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
}

func TestNew_DevUsesTextHandler(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}
	logger := newWithWriter(&buf, cfg, "dev", "ghcnd-server")

	logger.Debug("series fetched", "station_id", "USW00094728")

	out := buf.String()
	if !strings.Contains(out, "series fetched") || !strings.Contains(out, "station_id=USW00094728") {
		t.Fatalf("unexpected dev output: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("dev output should not be JSON: %q", out)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Component(base, "catalog").Info("built")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["component"] != "catalog" {
		t.Errorf("component = %v, want catalog", rec["component"])
	}
}
