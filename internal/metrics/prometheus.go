package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio gateway
type Metrics struct {
	// Connection / session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsFinalized prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Chunk ingestion metrics
	ChunksReceived prometheus.Counter
	ChunkBytes     prometheus.Histogram
	DecodeErrors   prometheus.Counter
	ProtocolErrors prometheus.Counter

	// Batch metrics
	BatchesProcessed prometheus.Counter
	BatchesEmpty     prometheus.Counter
	BatchChunks      prometheus.Histogram
	BatchDuration    prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionLatency   prometheus.Histogram

	// Archival metrics
	ArchivalUploads  prometheus.Counter
	ArchivalFailures prometheus.Counter
	ArchivalSkipped  prometheus.Counter
	ArchivalBytes    prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_sessions",
			Help: "Current number of active audio sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_sessions_finalized_total",
			Help: "Total number of sessions finalized",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_session_duration_seconds",
			Help:    "Duration of audio sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		ChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_chunks_received_total",
			Help: "Total number of audio chunks received",
		}),
		ChunkBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_chunk_size_bytes",
			Help:    "Size of received audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B to ~512KB
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_decode_errors_total",
			Help: "Total number of chunk decode failures",
		}),
		ProtocolErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_protocol_errors_total",
			Help: "Total number of malformed inbound messages",
		}),

		BatchesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_batches_processed_total",
			Help: "Total number of audio batches handed to transcription",
		}),
		BatchesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_batches_empty_total",
			Help: "Total number of batch triggers aborted with no new audio",
		}),
		BatchChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_batch_chunks",
			Help:    "Number of chunks per processed batch",
			Buckets: prometheus.LinearBuckets(1, 2, 12), // 1 to 23 chunks
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_batch_audio_seconds",
			Help:    "Audio duration of processed batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2 minutes
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		ArchivalUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_archival_uploads_total",
			Help: "Total number of full-session recordings archived",
		}),
		ArchivalFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_archival_failures_total",
			Help: "Total number of failed archival uploads",
		}),
		ArchivalSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_archival_skipped_total",
			Help: "Total number of sessions with archival skipped (unconfigured or empty)",
		}),
		ArchivalBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_archival_size_bytes",
			Help:    "Size of archived session recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12), // 16KB to ~32MB
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionCreated increments session counters
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionFinalized records a finalized session and its duration
func (m *Metrics) RecordSessionFinalized(durationSeconds float64) {
	m.SessionsFinalized.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// SetActiveSessions sets the active session gauge
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordChunkReceived records one accepted audio chunk
func (m *Metrics) RecordChunkReceived(sizeBytes int) {
	m.ChunksReceived.Inc()
	m.ChunkBytes.Observe(float64(sizeBytes))
}

// RecordDecodeError increments the decode error counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordProtocolError increments the malformed message counter
func (m *Metrics) RecordProtocolError() {
	m.ProtocolErrors.Inc()
}

// RecordBatchProcessed records a successfully transcribed batch
func (m *Metrics) RecordBatchProcessed(chunks int, audioSeconds float64) {
	m.BatchesProcessed.Inc()
	m.BatchChunks.Observe(float64(chunks))
	m.BatchDuration.Observe(audioSeconds)
}

// RecordBatchEmpty records a trigger that found no new audio
func (m *Metrics) RecordBatchEmpty() {
	m.BatchesEmpty.Inc()
}

// RecordTranscription records a transcription round trip
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionLatency.Observe(durationSeconds)
}

// RecordArchival records the outcome of a full-session upload
func (m *Metrics) RecordArchival(sizeBytes int, err error) {
	if err != nil {
		m.ArchivalFailures.Inc()
		return
	}
	m.ArchivalUploads.Inc()
	m.ArchivalBytes.Observe(float64(sizeBytes))
}

// RecordArchivalSkipped increments the skipped-archival counter
func (m *Metrics) RecordArchivalSkipped() {
	m.ArchivalSkipped.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
