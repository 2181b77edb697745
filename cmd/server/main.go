package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/voicesportstat/audio-gateway/internal/audio"
	"github.com/voicesportstat/audio-gateway/internal/config"
	"github.com/voicesportstat/audio-gateway/internal/metrics"
	"github.com/voicesportstat/audio-gateway/internal/server"
	"github.com/voicesportstat/audio-gateway/internal/session"
	"github.com/voicesportstat/audio-gateway/internal/storage"
	"github.com/voicesportstat/audio-gateway/internal/transcription"
	"github.com/voicesportstat/audio-gateway/internal/transcripts"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-gateway"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.String("websocket_path", cfg.Server.WebSocketPath),
		slog.Int("max_sessions", cfg.Server.MaxSessions),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("batch_min_chunks", cfg.Batch.MinChunks),
		slog.Int("batch_max_chunks", cfg.Batch.MaxChunks),
		slog.Int("batch_window_seconds", cfg.Batch.WindowSeconds),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.Bool("storage_enabled", cfg.Storage.Enabled()),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the audio transcoder
	transcoder, err := audio.NewFFmpegTranscoder(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate)
	if err != nil {
		logger.Error("Failed to initialize audio transcoder", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Audio transcoder initialized",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
	)

	// Initialize transcription client
	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to initialize transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription client initialized",
		slog.String("endpoint", cfg.Transcription.Endpoint),
		slog.String("model", cfg.Transcription.Model),
	)

	// Initialize object storage for session archival
	store, err := initStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to initialize object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize transcript history store
	history, err := transcripts.NewStore(cfg.Transcripts.Directory)
	if err != nil {
		logger.Error("Failed to initialize transcript store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcript store initialized",
		slog.String("directory", history.Directory()),
	)

	// Initialize session registry
	registry := session.NewRegistry(session.Deps{
		Policy: session.Policy{
			MinChunks: cfg.Batch.MinChunks,
			MaxChunks: cfg.Batch.MaxChunks,
			Window:    cfg.Batch.Window(),
		},
		SampleRate: cfg.Audio.SampleRate,
		Model:      cfg.Transcription.Model,
		Transcoder: transcoder,
		Oracle:     transcriber,
		Store:      store,
		History:    history,
		Logger:     logger,
		Metrics:    appMetrics,
	}, cfg.Server.MaxSessions)
	logger.Info("Session registry initialized",
		slog.Int("max_sessions", cfg.Server.MaxSessions),
	)

	// Initialize and start the HTTP server (websocket + API)
	httpServer := server.NewHTTPServer(cfg, logger, registry, transcriber, history, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop accepting new connections first
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Finalize remaining sessions so buffered audio is batched and archived
	registry.Shutdown(shutdownCtx)

	if err := transcriber.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	// Final transcription statistics
	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
}

// initStorage builds the archival store: S3-backed when a bucket is
// configured, otherwise a no-op that skips archival.
func initStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	if !cfg.Enabled() {
		logger.Info("Object storage not configured, session archival disabled")
		return storage.NoopStore{}, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			// Path-style addressing for S3-compatible stores (MinIO).
			o.UsePathStyle = true
		}
	})

	logger.Info("Object storage initialized",
		slog.String("bucket", cfg.Bucket),
		slog.String("prefix", cfg.Prefix),
		slog.String("region", cfg.Region),
	)

	return storage.NewS3(client, cfg.Bucket, cfg.Prefix), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
