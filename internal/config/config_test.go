package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.WebSocketPath != "/ws/audio" {
		t.Errorf("default websocket path = %q", cfg.Server.WebSocketPath)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("default sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Batch.MinChunks != 5 || cfg.Batch.MaxChunks != 20 || cfg.Batch.WindowSeconds != 5 {
		t.Errorf("default batch policy = %d/%d/%d, want 5/20/5",
			cfg.Batch.MinChunks, cfg.Batch.MaxChunks, cfg.Batch.WindowSeconds)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
batch:
  min_chunks: 3
transcription:
  endpoint: "http://localhost:9000/v1/audio/transcriptions"
  api_key: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Batch.MinChunks != 3 {
		t.Errorf("min_chunks = %d, want 3", cfg.Batch.MinChunks)
	}
	// Omitted fields keep their defaults.
	if cfg.Server.WebSocketPath != "/ws/audio" {
		t.Errorf("websocket path = %q, want default", cfg.Server.WebSocketPath)
	}
	if cfg.Batch.MaxChunks != 20 {
		t.Errorf("max_chunks = %d, want default 20", cfg.Batch.MaxChunks)
	}
	if cfg.Transcription.APIKey != "secret" {
		t.Errorf("api_key = %q", cfg.Transcription.APIKey)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"max below min", "batch:\n  min_chunks: 10\n  max_chunks: 5\n"},
		{"bad sample rate", "audio:\n  sample_rate: 12345\n"},
		{"stereo", "audio:\n  channels: 2\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"not yaml", "{{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	if got := cfg.Batch.Window(); got != 5*time.Second {
		t.Errorf("Window = %v, want 5s", got)
	}
	if got := cfg.Transcription.GetTimeoutDuration(); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", got)
	}
}

func TestStorageEnabled(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled by default")
	}

	cfg.Storage.Bucket = "recordings"
	if !cfg.Storage.Enabled() {
		t.Error("storage with a bucket should be enabled")
	}
}
