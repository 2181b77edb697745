package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message types sent by the client over the websocket.
const (
	TypeAudioChunk     = "audio_chunk"
	TypeStartRecording = "start_recording"
	TypeEndRecording   = "end_recording"
	TypeStopRecording  = "stop_recording"
	TypePing           = "ping"
)

// Outbound event types sent back to the client.
const (
	TypeConnection         = "connection"
	TypeAudioAck           = "audio_ack"
	TypeBatchProcessing    = "batch_processing"
	TypeBatchTranscription = "batch_transcription"
	TypeRecordingComplete  = "recording_complete"
	TypeRecordingStarted   = "recording_started"
	TypeRecordingStopped   = "recording_stopped"
	TypePong               = "pong"
	TypeUnknownMessage     = "unknown_message"
	TypeError              = "error"
)

// Message is the envelope for every inbound client message.
// Only the fields relevant to the declared type are populated.
type Message struct {
	Type           string
	Data           []byte
	Timestamp      string
	SequenceNumber int
	MimeType       string
	Language       string
}

// rawMessage mirrors Message but carries audio data as the JSON integer
// array the frontend produces (one element per byte) instead of the
// base64 string encoding/json would expect for []byte.
type rawMessage struct {
	Type           string `json:"type"`
	Data           []int  `json:"data,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	SequenceNumber int    `json:"sequenceNumber,omitempty"`
	MimeType       string `json:"mimeType,omitempty"`
	Language       string `json:"language,omitempty"`
}

// ParseMessage decodes a single inbound JSON message.
func ParseMessage(data []byte) (*Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON message: %w", err)
	}

	if raw.Type == "" {
		return nil, fmt.Errorf("message missing type field")
	}

	msg := &Message{
		Type:           raw.Type,
		Timestamp:      raw.Timestamp,
		SequenceNumber: raw.SequenceNumber,
		MimeType:       raw.MimeType,
		Language:       raw.Language,
	}

	if len(raw.Data) > 0 {
		msg.Data = make([]byte, len(raw.Data))
		for i, v := range raw.Data {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("audio data element %d out of byte range: %d", i, v)
			}
			msg.Data[i] = byte(v)
		}
	}

	return msg, nil
}

// Event is an outbound JSON event. Optional fields are pointers with
// omitempty so each event type serializes with exactly the fields its
// shape defines.
type Event struct {
	Type                 string   `json:"type"`
	SessionID            string   `json:"session_id,omitempty"`
	Message              string   `json:"message,omitempty"`
	SequenceNumber       *int     `json:"sequenceNumber,omitempty"`
	BatchSize            *int     `json:"batch_size,omitempty"`
	Text                 *string  `json:"text,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
	ChunkCount           *int     `json:"chunk_count,omitempty"`
	DurationSeconds      *float64 `json:"duration_seconds,omitempty"`
	ReadyForLLM          *bool    `json:"ready_for_llm,omitempty"`
	TotalChunksProcessed *int     `json:"total_chunks_processed,omitempty"`
	Timestamp            string   `json:"timestamp"`
}

// Encode serializes the event for transmission.
func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}

// NewConnectionEvent builds the welcome event sent right after upgrade.
func NewConnectionEvent(sessionID string) *Event {
	return &Event{
		Type:      TypeConnection,
		SessionID: sessionID,
		Message:   "WebSocket connected successfully",
		Timestamp: now(),
	}
}

// NewAudioAckEvent acknowledges a buffered audio chunk. batchSize is the
// number of chunks accumulated toward the current (unprocessed) batch.
func NewAudioAckEvent(sequenceNumber, batchSize int) *Event {
	return &Event{
		Type:           TypeAudioAck,
		Message:        "Audio chunk received",
		SequenceNumber: &sequenceNumber,
		BatchSize:      &batchSize,
		Timestamp:      now(),
	}
}

// NewBatchProcessingEvent announces that a batch is being transcribed.
func NewBatchProcessingEvent(chunkCount, totalBytes int) *Event {
	return &Event{
		Type:      TypeBatchProcessing,
		Message:   fmt.Sprintf("Processing batch of %d chunks (%d bytes)", chunkCount, totalBytes),
		Timestamp: now(),
	}
}

// NewBatchTranscriptionEvent carries one batch's transcription result.
func NewBatchTranscriptionEvent(text string, confidence float64, chunkCount int, durationSeconds float64) *Event {
	ready := true
	return &Event{
		Type:            TypeBatchTranscription,
		Text:            &text,
		Confidence:      &confidence,
		ChunkCount:      &chunkCount,
		DurationSeconds: &durationSeconds,
		ReadyForLLM:     &ready,
		Timestamp:       now(),
	}
}

// NewRecordingCompleteEvent is the final notice before the connection closes.
func NewRecordingCompleteEvent(totalChunks int) *Event {
	return &Event{
		Type:                 TypeRecordingComplete,
		Message:              "Recording session completed",
		TotalChunksProcessed: &totalChunks,
		Timestamp:            now(),
	}
}

// NewAckEvent builds a plain acknowledgment for control messages.
func NewAckEvent(eventType, message string) *Event {
	return &Event{
		Type:      eventType,
		Message:   message,
		Timestamp: now(),
	}
}

// NewErrorEvent reports a recoverable error to the client. The session
// stays open; only end_recording or disconnect terminates it.
func NewErrorEvent(message string) *Event {
	return &Event{
		Type:      TypeError,
		Message:   message,
		Timestamp: now(),
	}
}
