package audio

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestNormalizeFormatHint(t *testing.T) {
	tests := []struct {
		hint string
		want string
	}{
		{"audio/webm", "matroska"},
		{"audio/webm;codecs=opus", "matroska"},
		{"video/webm", "matroska"},
		{"webm", "matroska"},
		{"audio/ogg", "ogg"},
		{"opus", "ogg"},
		{"audio/wav", "wav"},
		{"audio/x-wav", "wav"},
		{"audio/mpeg", "mp3"},
		{"audio/mp4", "mp4"},
		{"flac", "flac"},
		{"", ""},
		{"application/octet-stream", ""},
		{"  AUDIO/WEBM  ", "matroska"},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			if got := normalizeFormatHint(tt.hint); got != tt.want {
				t.Errorf("normalizeFormatHint(%q) = %q, want %q", tt.hint, got, tt.want)
			}
		})
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	base := errors.New("boom")
	err := newDecodeError([]byte{0x1a, 0x45, 0xdf, 0xa3}, "webm", base)

	if !errors.Is(err, base) {
		t.Error("DecodeError should unwrap to the underlying error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "webm") {
		t.Errorf("error message missing format hint: %s", msg)
	}
	if !strings.Contains(msg, "1a45dfa3") {
		t.Errorf("error message missing payload preview: %s", msg)
	}

	autoErr := newDecodeError(nil, "", base)
	if !strings.Contains(autoErr.Error(), "auto") {
		t.Errorf("empty hint should render as auto: %s", autoErr.Error())
	}
}

func TestNewFFmpegTranscoderValidation(t *testing.T) {
	if _, err := NewFFmpegTranscoder("ffmpeg", 0); err == nil {
		t.Error("zero sample rate should be rejected")
	}

	if _, err := NewFFmpegTranscoder("/nonexistent/ffmpeg-binary", 16000); err == nil {
		t.Error("missing binary should be rejected")
	}
}

func TestFFmpegTranscoderWAVFastPath(t *testing.T) {
	// The fast path unwraps canonical WAV without spawning a process, so
	// this works even where ffmpeg is absent; construction still needs a
	// resolvable binary.
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	tc, err := NewFFmpegTranscoder("ffmpeg", 16000)
	if err != nil {
		t.Fatalf("NewFFmpegTranscoder failed: %v", err)
	}

	pcm := testPCM(640)
	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	got, err := tc.Decode(context.Background(), wav, "audio/wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !bytes.Equal(got, pcm) {
		t.Error("fast path PCM does not match original")
	}
}

func TestFFmpegTranscoderRejectsEmptyInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	tc, err := NewFFmpegTranscoder("ffmpeg", 16000)
	if err != nil {
		t.Fatalf("NewFFmpegTranscoder failed: %v", err)
	}

	if _, err := tc.Decode(context.Background(), nil, ""); err == nil {
		t.Error("empty input should fail")
	}

	var decodeErr *DecodeError
	_, err = tc.Decode(context.Background(), nil, "")
	if !errors.As(err, &decodeErr) {
		t.Errorf("error type = %T, want *DecodeError", err)
	}
}
