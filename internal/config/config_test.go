package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Radius != 22 || cfg.World.Seed != 42 {
		t.Fatalf("world defaults: got=%+v", cfg.World)
	}
	if cfg.Engine.FrameInterval != 100*time.Millisecond {
		t.Fatalf("frame interval: got=%s want=100ms", cfg.Engine.FrameInterval)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Fatalf("log level: got=%s want=INFO", cfg.Log.Level)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
world:
  seed: 7
  radius: 10
engine:
  speed: 730
  frame_budget: 20ms
log:
  level: debug
api:
  timeout: 2s
`)
	t.Setenv("WORLDSIM_API_PORT", "9090")
	t.Setenv("WORLDSIM_ADMIN_KEY", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Seed != 7 || cfg.World.Radius != 10 {
		t.Fatalf("world: got=%+v", cfg.World)
	}
	if cfg.Engine.Speed != 730 || cfg.Engine.FrameBudget != 20*time.Millisecond {
		t.Fatalf("engine: got=%+v", cfg.Engine)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Fatalf("log level: got=%s want=DEBUG", cfg.Log.Level)
	}
	if cfg.API.Port != 9090 || cfg.API.AdminKey != "hunter2" || cfg.API.Timeout != 2*time.Second {
		t.Fatalf("api: got=%+v", cfg.API)
	}
	if gen := cfg.GenConfig(); gen.Seed != 7 || gen.Radius != 10 {
		t.Fatalf("gen config: got=%+v", gen)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
world:
  sea_level: 0.9
  mountain_level: 0.5
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("inverted sea and mountain levels accepted")
	}

	path = writeConfig(t, `
engine:
  speed: -3
world:
  starting_sites: 0
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("negative speed accepted")
	}
	if !strings.Contains(err.Error(), "engine.speed") || !strings.Contains(err.Error(), "starting_sites") {
		t.Fatalf("joined error should name both fields: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestWatchReportsChanges(t *testing.T) {
	path := writeConfig(t, "engine:\n  speed: 10\n")
	changed := make(chan float64, 8)
	onChange := func(c *Config) {
		select {
		case changed <- c.Engine.Speed:
		default:
		}
	}
	if err := Watch(path, onChange); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := os.WriteFile(path, []byte("engine:\n  speed: 20\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	// A rewrite can surface as several events, the first seeing a truncated
	// file, so wait for the final value.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case speed := <-changed:
			if speed == 20 {
				return
			}
		case <-deadline:
			t.Fatalf("no change to speed 20 reported")
		}
	}
}

func TestSetupLoggingWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	file := filepath.Join(t.TempDir(), "worldsim.log")
	closer := SetupLogging(LogConfig{Level: slog.LevelInfo, File: file, MaxSize: 1})
	slog.Info("hello from the test")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Fatalf("log file: got=%q", data)
	}
}
