package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Batch         BatchConfig         `yaml:"batch"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcripts   TranscriptsConfig   `yaml:"transcripts"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains the websocket/HTTP server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	WebSocketPath  string `yaml:"websocket_path"`
	MaxSessions    int    `yaml:"max_sessions"`
	ReadLimitBytes int64  `yaml:"read_limit_bytes"`
}

// AudioConfig contains canonical audio format parameters
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// BatchConfig contains the batch trigger policy parameters
type BatchConfig struct {
	MinChunks     int `yaml:"min_chunks"`
	MaxChunks     int `yaml:"max_chunks"`
	WindowSeconds int `yaml:"window_seconds"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// StorageConfig contains the archival object store configuration.
// An empty bucket disables archival: finalization skips the upload.
type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // optional, for S3-compatible stores
}

// TranscriptsConfig controls local transcript history persistence
type TranscriptsConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			BindAddress:    "0.0.0.0",
			WebSocketPath:  "/ws/audio",
			MaxSessions:    256,
			ReadLimitBytes: 8 << 20,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
			FFmpegPath: "ffmpeg",
		},
		Batch: BatchConfig{
			MinChunks:     5,
			MaxChunks:     20,
			WindowSeconds: 5,
		},
		Transcription: TranscriptionConfig{
			Endpoint:      "https://api.openai.com/v1/audio/transcriptions",
			Model:         "whisper-1",
			Timeout:       30,
			MaxRetries:    2,
			MaxConcurrent: 10,
		},
		Transcripts: TranscriptsConfig{
			Directory: "transcriptions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file, falling back to defaults
// for omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Transcripts.Validate(); err != nil {
		return fmt.Errorf("transcripts config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.WebSocketPath == "" || s.WebSocketPath[0] != '/' {
		return fmt.Errorf("websocket_path must start with '/', got %q", s.WebSocketPath)
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	if s.ReadLimitBytes < 1024 {
		return fmt.Errorf("read_limit_bytes must be at least 1024, got %d", s.ReadLimitBytes)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 && a.SampleRate != 44100 && a.SampleRate != 48000 {
		return fmt.Errorf("sample_rate must be one of [8000, 16000, 44100, 48000], got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	return nil
}

// Validate validates batch trigger configuration
func (b *BatchConfig) Validate() error {
	if b.MinChunks < 1 {
		return fmt.Errorf("min_chunks must be at least 1, got %d", b.MinChunks)
	}

	if b.MaxChunks < b.MinChunks {
		return fmt.Errorf("max_chunks (%d) must be >= min_chunks (%d)", b.MaxChunks, b.MinChunks)
	}

	if b.WindowSeconds < 1 {
		return fmt.Errorf("window_seconds must be at least 1, got %d", b.WindowSeconds)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates transcript history configuration
func (t *TranscriptsConfig) Validate() error {
	if t.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr, or a file path; nothing to reject here.

	return nil
}

// Enabled reports whether the archival object store is configured.
func (s *StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// Window returns the time-based batch trigger threshold as a Duration.
func (b *BatchConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
