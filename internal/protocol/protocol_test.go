package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, msg *Message)
	}{
		{
			name:  "audio chunk with integer data",
			input: `{"type":"audio_chunk","data":[0,127,255,16],"sequenceNumber":3,"mimeType":"audio/webm","timestamp":"2026-01-01T00:00:00Z"}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Type != TypeAudioChunk {
					t.Errorf("Type = %q, want %q", msg.Type, TypeAudioChunk)
				}
				if msg.SequenceNumber != 3 {
					t.Errorf("SequenceNumber = %d, want 3", msg.SequenceNumber)
				}
				if msg.MimeType != "audio/webm" {
					t.Errorf("MimeType = %q, want audio/webm", msg.MimeType)
				}
				want := []byte{0, 127, 255, 16}
				if string(msg.Data) != string(want) {
					t.Errorf("Data = %v, want %v", msg.Data, want)
				}
			},
		},
		{
			name:  "start recording with language",
			input: `{"type":"start_recording","language":"uk"}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Type != TypeStartRecording {
					t.Errorf("Type = %q, want %q", msg.Type, TypeStartRecording)
				}
				if msg.Language != "uk" {
					t.Errorf("Language = %q, want uk", msg.Language)
				}
			},
		},
		{
			name:  "control message without data",
			input: `{"type":"ping"}`,
			check: func(t *testing.T, msg *Message) {
				if msg.Type != TypePing {
					t.Errorf("Type = %q, want %q", msg.Type, TypePing)
				}
				if msg.Data != nil {
					t.Errorf("Data = %v, want nil", msg.Data)
				}
			},
		},
		{
			name:    "missing type",
			input:   `{"data":[1,2,3]}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			input:   `audio bytes`,
			wantErr: true,
		},
		{
			name:    "data element above byte range",
			input:   `{"type":"audio_chunk","data":[1,2,256]}`,
			wantErr: true,
		},
		{
			name:    "negative data element",
			input:   `{"type":"audio_chunk","data":[-1]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, msg)
			}
		})
	}
}

func TestEventEncoding(t *testing.T) {
	t.Run("audio ack carries sequence and batch size", func(t *testing.T) {
		data, err := NewAudioAckEvent(7, 3).Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("event is not valid JSON: %v", err)
		}

		if decoded["type"] != TypeAudioAck {
			t.Errorf("type = %v, want %q", decoded["type"], TypeAudioAck)
		}
		if decoded["sequenceNumber"] != float64(7) {
			t.Errorf("sequenceNumber = %v, want 7", decoded["sequenceNumber"])
		}
		if decoded["batch_size"] != float64(3) {
			t.Errorf("batch_size = %v, want 3", decoded["batch_size"])
		}
		if decoded["timestamp"] == "" {
			t.Error("timestamp missing")
		}
	})

	t.Run("batch transcription marks ready for llm", func(t *testing.T) {
		data, err := NewBatchTranscriptionEvent("hello", 0.95, 5, 2.5).Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("event is not valid JSON: %v", err)
		}

		if decoded["text"] != "hello" {
			t.Errorf("text = %v, want hello", decoded["text"])
		}
		if decoded["confidence"] != 0.95 {
			t.Errorf("confidence = %v, want 0.95", decoded["confidence"])
		}
		if decoded["ready_for_llm"] != true {
			t.Errorf("ready_for_llm = %v, want true", decoded["ready_for_llm"])
		}
		if decoded["chunk_count"] != float64(5) {
			t.Errorf("chunk_count = %v, want 5", decoded["chunk_count"])
		}
	})

	t.Run("optional fields are omitted", func(t *testing.T) {
		data, err := NewErrorEvent("something failed").Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		raw := string(data)
		for _, field := range []string{"sequenceNumber", "batch_size", "text", "confidence", "ready_for_llm", "total_chunks_processed"} {
			if strings.Contains(raw, field) {
				t.Errorf("error event should not carry %q: %s", field, raw)
			}
		}
	})

	t.Run("recording complete carries total chunks", func(t *testing.T) {
		data, err := NewRecordingCompleteEvent(42).Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("event is not valid JSON: %v", err)
		}

		if decoded["total_chunks_processed"] != float64(42) {
			t.Errorf("total_chunks_processed = %v, want 42", decoded["total_chunks_processed"])
		}
	})
}
