package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voicesportstat/audio-gateway/internal/audio"
	"github.com/voicesportstat/audio-gateway/internal/metrics"
	"github.com/voicesportstat/audio-gateway/internal/protocol"
	"github.com/voicesportstat/audio-gateway/internal/storage"
	"github.com/voicesportstat/audio-gateway/internal/transcription"
	"github.com/voicesportstat/audio-gateway/internal/transcripts"
)

// State is the session lifecycle state.
type State int

const (
	// StateActive is the initial state: receiving and buffering chunks.
	StateActive State = iota
	// StateFinalizing means the session is draining and archiving.
	StateFinalizing
	// StateClosed is terminal; no further events are accepted.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender delivers outbound events to the client. Implementations must be
// usable from the session's single processing context.
type Sender interface {
	Send(event *protocol.Event) error
	Close() error
}

// Transcriber is the transcription oracle collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, request *transcription.Request) (*transcription.Response, error)
}

// ChunkMeta records one accepted chunk of the current batch.
type ChunkMeta struct {
	SequenceNumber int    `json:"sequence_number"`
	Timestamp      string `json:"timestamp"`
	DeclaredMime   string `json:"declared_mime"`
	DecodedBytes   int    `json:"decoded_bytes"`
}

// DefaultLanguage is used until a start_recording event sets one.
const DefaultLanguage = "en"

// archiveTimeout bounds the detached archival upload.
const archiveTimeout = 2 * time.Minute

// Session owns one connection's ingestion, buffering, batching and
// finalization. Inbound events are processed strictly in arrival order;
// the mutex serializes the connection's read loop against shutdown-time
// finalization, nothing else contends on it.
type Session struct {
	ID        string
	StartTime time.Time

	mu        sync.Mutex
	archiveWG sync.WaitGroup

	state         State
	language      string
	buffer        *audio.BatchBuffer
	chunkMeta     []ChunkMeta
	totalChunks   int
	lastBatchTime time.Time
	finalized     bool

	policy     Policy
	transcoder audio.Transcoder
	oracle     Transcriber
	store      storage.Store
	history    *transcripts.Store
	sender     Sender
	logger     *slog.Logger
	metrics    *metrics.Metrics
	model      string

	now func() time.Time
}

// newSession is invoked by the registry; sessions are never constructed
// directly.
func newSession(id string, sender Sender, deps Deps) *Session {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	return &Session{
		ID:            id,
		StartTime:     start,
		state:         StateActive,
		language:      DefaultLanguage,
		buffer:        audio.NewBatchBuffer(deps.SampleRate),
		lastBatchTime: start,
		policy:        deps.Policy,
		transcoder:    deps.Transcoder,
		oracle:        deps.Oracle,
		store:         deps.Store,
		history:       deps.History,
		sender:        sender,
		logger:        deps.Logger.With(slog.String("session_id", id)),
		metrics:       deps.Metrics,
		model:         deps.Model,
		now:           now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Language returns the transcription language currently in effect.
func (s *Session) Language() string { return s.language }

// TotalChunks returns the monotonically increasing accepted chunk count.
func (s *Session) TotalChunks() int { return s.totalChunks }

// PendingChunks returns the number of chunks in the current batch.
func (s *Session) PendingChunks() int { return len(s.chunkMeta) }

// SourceFormat returns the format fixed by the session's first chunk.
func (s *Session) SourceFormat() audio.SourceFormat { return s.buffer.Format() }

// HandleMessage processes one inbound event in arrival order.
func (s *Session) HandleMessage(ctx context.Context, msg *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		s.logger.Warn("Dropping event for non-active session",
			slog.String("state", s.state.String()),
			slog.String("type", msg.Type),
		)
		return
	}

	switch msg.Type {
	case protocol.TypeAudioChunk:
		s.handleAudioChunk(ctx, msg)

	case protocol.TypeStartRecording:
		s.handleStartRecording(msg)

	case protocol.TypeEndRecording:
		s.finalize(ctx)

	case protocol.TypeStopRecording:
		s.send(protocol.NewAckEvent(protocol.TypeRecordingStopped, "Recording session stopped"))

	case protocol.TypePing:
		s.send(protocol.NewAckEvent(protocol.TypePong, ""))

	default:
		s.send(protocol.NewAckEvent(protocol.TypeUnknownMessage,
			fmt.Sprintf("Unknown message type: %s", msg.Type)))
	}
}

// handleAudioChunk buffers one chunk and evaluates the trigger policy.
// A decode failure leaves all session state untouched: the chunk is not
// counted, metadata is not appended, and the session continues.
func (s *Session) handleAudioChunk(ctx context.Context, msg *protocol.Message) {
	format := s.buffer.FixFormat(msg.MimeType)

	decodedBytes := 0
	switch format {
	case audio.FormatStreamingContainer:
		// Cumulative container: append raw bytes, defer decoding to
		// batch time. A chunk's later MIME mismatch is ignored, the
		// first chunk fixed the branch for the whole session.
		if err := s.buffer.AppendContainer(msg.Data); err != nil {
			s.logger.Error("Failed to append container bytes", slog.String("error", err.Error()))
			s.send(protocol.NewErrorEvent(fmt.Sprintf("Failed to process audio chunk %d", msg.SequenceNumber)))
			return
		}
		decodedBytes = len(msg.Data)

	default:
		pcm, err := s.decodeChunk(ctx, msg.Data, msg.MimeType)
		if err != nil {
			s.logger.Warn("Chunk decode failed",
				slog.Int("sequence_number", msg.SequenceNumber),
				slog.String("mime_type", msg.MimeType),
				slog.String("error", err.Error()),
			)
			if s.metrics != nil {
				s.metrics.RecordDecodeError()
			}
			s.send(protocol.NewErrorEvent(
				fmt.Sprintf("Failed to decode audio chunk %d", msg.SequenceNumber)))
			return
		}

		if err := s.buffer.AppendPCM(pcm); err != nil {
			s.logger.Error("Failed to append PCM", slog.String("error", err.Error()))
			s.send(protocol.NewErrorEvent(fmt.Sprintf("Failed to process audio chunk %d", msg.SequenceNumber)))
			return
		}
		decodedBytes = len(pcm)
	}

	s.chunkMeta = append(s.chunkMeta, ChunkMeta{
		SequenceNumber: msg.SequenceNumber,
		Timestamp:      msg.Timestamp,
		DeclaredMime:   msg.MimeType,
		DecodedBytes:   decodedBytes,
	})
	s.totalChunks++

	if s.metrics != nil {
		s.metrics.RecordChunkReceived(len(msg.Data))
	}

	s.send(protocol.NewAudioAckEvent(msg.SequenceNumber, len(s.chunkMeta)))

	if s.policy.ShouldProcess(len(s.chunkMeta), s.now().Sub(s.lastBatchTime)) {
		s.processBatch(ctx)
	}
}

// decodeChunk decodes one self-delimited chunk to canonical PCM: first
// attempt with the declared format hint, then exactly one fallback with
// auto-detection.
func (s *Session) decodeChunk(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	pcm, err := s.transcoder.Decode(ctx, data, mimeType)
	if err == nil {
		return pcm, nil
	}

	s.logger.Debug("Hinted decode failed, retrying with auto-detection",
		slog.String("mime_type", mimeType),
		slog.String("error", err.Error()),
	)

	return s.transcoder.Decode(ctx, data, "")
}

// handleStartRecording updates the session language. It may arrive more
// than once; the last write wins.
func (s *Session) handleStartRecording(msg *protocol.Message) {
	if msg.Language != "" {
		s.language = msg.Language
	}

	s.logger.Info("Recording started",
		slog.String("language", s.language),
	)

	s.send(protocol.NewAckEvent(protocol.TypeRecordingStarted, "Recording session started"))
}

// processBatch packages the audio newly arrived since the last successful
// batch and hands it to the transcription oracle. Offsets advance and
// chunk metadata clears only after the downstream call succeeds, so a
// failed batch is retried in full on the next trigger.
func (s *Session) processBatch(ctx context.Context) {
	pcm, end, err := s.buffer.PendingBatch(ctx, s.transcoder)
	if err != nil {
		s.logger.Warn("Batch decode failed, batch retained for retry",
			slog.Int("pending_chunks", len(s.chunkMeta)),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordDecodeError()
		}
		s.send(protocol.NewErrorEvent("Batch processing failed: audio decode error"))
		return
	}

	if len(pcm) == 0 {
		// No net new audio since the last batch; keep the pending
		// chunks and let the next trigger try again.
		if s.metrics != nil {
			s.metrics.RecordBatchEmpty()
		}
		return
	}

	wav, err := audio.EncodeWAV(pcm, s.buffer.SampleRate())
	if err != nil {
		s.logger.Error("Failed to package batch container", slog.String("error", err.Error()))
		s.send(protocol.NewErrorEvent("Batch processing failed: container packaging error"))
		return
	}

	chunkCount := len(s.chunkMeta)
	s.send(protocol.NewBatchProcessingEvent(chunkCount, len(wav)))

	started := s.now()
	result, err := s.oracle.Transcribe(ctx, &transcription.Request{
		SessionID:  s.ID,
		Audio:      wav,
		Language:   s.language,
		ChunkCount: chunkCount,
	})
	elapsed := time.Since(started)

	if s.metrics != nil {
		s.metrics.RecordTranscription(err == nil, elapsed.Seconds())
	}

	if err != nil {
		// Batch audio is not discarded: offsets were not advanced, so
		// the same pending audio rides along into the next trigger.
		s.logger.Warn("Batch transcription failed, batch retained for retry",
			slog.Int("pending_chunks", chunkCount),
			slog.String("error", err.Error()),
		)
		s.send(protocol.NewErrorEvent(fmt.Sprintf("Batch processing failed: %v", err)))
		return
	}

	s.buffer.Commit(end)

	duration := audio.Duration(pcm, s.buffer.SampleRate())
	s.send(protocol.NewBatchTranscriptionEvent(result.Text, result.Confidence, chunkCount, duration))

	s.appendTranscript(result, chunkCount, duration, len(wav))

	s.chunkMeta = s.chunkMeta[:0]
	s.lastBatchTime = s.now()

	if s.metrics != nil {
		s.metrics.RecordBatchProcessed(chunkCount, duration)
	}

	s.logger.Info("Batch processed",
		slog.Int("chunk_count", chunkCount),
		slog.Float64("audio_seconds", duration),
		slog.Int("container_bytes", len(wav)),
		slog.Duration("transcription_time", elapsed),
	)
}

// appendTranscript records the batch result in the session's JSON
// history. Failures are logged and never affect the stream.
func (s *Session) appendTranscript(result *transcription.Response, chunkCount int, duration float64, audioBytes int) {
	if s.history == nil {
		return
	}

	entry := transcripts.Entry{
		Timestamp:           s.now().Format(time.RFC3339),
		Text:                result.Text,
		Confidence:          result.Confidence,
		DurationSeconds:     duration,
		ChunkCount:          chunkCount,
		AudioSizeBytes:      audioBytes,
		Model:               s.model,
		Language:            s.language,
		ProcessingTimestamp: time.Now().Format(time.RFC3339),
		ReadyForLLM:         true,
	}

	if err := s.history.Append(s.ID, s.language, entry); err != nil {
		s.logger.Warn("Failed to persist transcript entry", slog.String("error", err.Error()))
	}
}

// Finalize drains the session and archives its full audio. Every step is
// independently fault-tolerant; the finalized guard makes the archival
// hand-off exactly-once even if Finalize runs more than once.
func (s *Session) Finalize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalize(ctx)
}

func (s *Session) finalize(ctx context.Context) {
	if s.state == StateClosed {
		return
	}
	s.state = StateFinalizing

	// One last batch for whatever is still pending.
	if len(s.chunkMeta) > 0 {
		s.processBatch(ctx)
	}

	s.send(protocol.NewRecordingCompleteEvent(s.totalChunks))
	if err := s.sender.Close(); err != nil {
		s.logger.Debug("Error closing outbound connection", slog.String("error", err.Error()))
	}

	if s.finalized {
		s.state = StateClosed
		return
	}
	s.finalized = true
	s.state = StateClosed

	// Archival runs detached from the connection's processing context: a
	// slow upload must not delay teardown or registry removal. The
	// finalized guard keeps the handoff exactly-once, and no buffer is
	// mutated once the session is closed.
	s.archiveWG.Add(1)
	go func() {
		defer s.archiveWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		s.archive(ctx)
	}()

	if s.metrics != nil {
		s.metrics.RecordSessionFinalized(time.Since(s.StartTime).Seconds())
	}

	s.logger.Info("Session finalized",
		slog.Int("total_chunks", s.totalChunks),
		slog.String("source_format", s.buffer.Format().String()),
		slog.Duration("duration", time.Since(s.StartTime)),
	)
}

// Wait blocks until the detached archival, if any, has completed. Used
// by graceful shutdown to drain in-flight uploads.
func (s *Session) Wait() {
	s.archiveWG.Wait()
}

// archive builds the full-session container and hands it to the object
// store. Failures are logged, never retried, never surfaced to the
// client.
func (s *Session) archive(ctx context.Context) {
	pcm, err := s.buffer.FullSessionPCM(ctx, s.transcoder)
	if err != nil {
		s.logger.Error("Failed to rebuild full session audio for archival",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordArchival(0, err)
		}
		return
	}

	if len(pcm) == 0 {
		s.logger.Info("No audio to archive")
		if s.metrics != nil {
			s.metrics.RecordArchivalSkipped()
		}
		return
	}

	wav, err := audio.EncodeWAV(pcm, s.buffer.SampleRate())
	if err != nil {
		s.logger.Error("Failed to package full session container",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordArchival(0, err)
		}
		return
	}

	metadata := map[string]string{
		"session_id":    s.ID,
		"language":      s.language,
		"source_format": s.buffer.Format().String(),
		"total_chunks":  fmt.Sprintf("%d", s.totalChunks),
		"started_at":    s.StartTime.UTC().Format(time.RFC3339),
	}

	key, err := s.store.Store(ctx, s.ID, wav, metadata)
	if errors.Is(err, storage.ErrNotConfigured) {
		s.logger.Info("Object store not configured, skipping archival")
		if s.metrics != nil {
			s.metrics.RecordArchivalSkipped()
		}
		return
	}
	if err != nil {
		s.logger.Error("Failed to archive session recording",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordArchival(0, err)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordArchival(len(wav), nil)
	}

	s.logger.Info("Session recording archived",
		slog.String("object_key", key),
		slog.Int("container_bytes", len(wav)),
	)
}

// send delivers one outbound event, logging delivery failures. A dead
// connection is not fatal to finalization.
func (s *Session) send(event *protocol.Event) {
	if err := s.sender.Send(event); err != nil {
		s.logger.Debug("Failed to send event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Info is a monitoring snapshot of one session.
type Info struct {
	SessionID          string    `json:"session_id"`
	State              string    `json:"state"`
	SourceFormat       string    `json:"source_format"`
	Language           string    `json:"language"`
	StartTime          time.Time `json:"start_time"`
	TotalChunks        int       `json:"total_chunks"`
	PendingChunks      int       `json:"pending_chunks"`
	PendingBytes       int       `json:"pending_bytes"`
	SessionBytes       int       `json:"session_bytes"`
	ProcessedPCMOffset int       `json:"processed_pcm_offset"`
}

// Snapshot returns the session's monitoring info.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		SessionID:          s.ID,
		State:              s.state.String(),
		SourceFormat:       s.buffer.Format().String(),
		Language:           s.language,
		StartTime:          s.StartTime,
		TotalChunks:        s.totalChunks,
		PendingChunks:      len(s.chunkMeta),
		PendingBytes:       s.buffer.PendingBytes(),
		SessionBytes:       s.buffer.SessionBytes(),
		ProcessedPCMOffset: s.buffer.ProcessedPCMOffset(),
	}
}
