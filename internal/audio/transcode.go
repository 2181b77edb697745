package audio

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
)

// Transcoder converts audio bytes in an arbitrary container format into
// canonical PCM (mono, 16-bit signed little-endian, fixed sample rate).
//
// formatHint is an optional container format name ("webm", "ogg", "wav",
// ...). An empty hint lets the transcoder auto-detect the input format.
// A failed decode yields a *DecodeError.
type Transcoder interface {
	Decode(ctx context.Context, data []byte, formatHint string) ([]byte, error)
}

// DecodeError reports a failed decode attempt. Preview carries a hex dump
// of the payload head for diagnostics.
type DecodeError struct {
	Format  string // format hint used, empty for auto-detect
	Preview string // hex of the first bytes of the failed payload
	Err     error
}

func (e *DecodeError) Error() string {
	hint := e.Format
	if hint == "" {
		hint = "auto"
	}
	return fmt.Sprintf("decode failed (format=%s, head=%s): %v", hint, e.Preview, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(data []byte, format string, err error) *DecodeError {
	n := len(data)
	if n > 16 {
		n = 16
	}
	return &DecodeError{
		Format:  format,
		Preview: hex.EncodeToString(data[:n]),
		Err:     err,
	}
}

// FFmpegTranscoder decodes via an ffmpeg subprocess. Input is streamed on
// stdin, canonical PCM is read from stdout, so no temporary files touch
// disk. One process per decode; ffmpeg itself holds no cross-call state,
// which is what makes full-context re-decodes of a growing container safe.
type FFmpegTranscoder struct {
	binaryPath string
	sampleRate int
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary
// (empty means "ffmpeg" from PATH) and output sample rate.
func NewFFmpegTranscoder(binaryPath string, sampleRate int) (*FFmpegTranscoder, error) {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if _, err := exec.LookPath(binaryPath); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found at %q: %w", binaryPath, err)
	}

	return &FFmpegTranscoder{
		binaryPath: binaryPath,
		sampleRate: sampleRate,
	}, nil
}

// Decode runs one ffmpeg process over data and returns canonical PCM.
// WAV input already matching the canonical layout is unwrapped directly
// without spawning a process.
func (t *FFmpegTranscoder) Decode(ctx context.Context, data []byte, formatHint string) ([]byte, error) {
	if len(data) == 0 {
		return nil, newDecodeError(data, formatHint, fmt.Errorf("empty input"))
	}

	if IsWAV(data) {
		pcm, rate, err := DecodeWAV(data)
		if err == nil && rate == t.sampleRate {
			return pcm, nil
		}
		// Mismatched rate or odd layout: fall through to ffmpeg resampling.
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if hint := normalizeFormatHint(formatHint); hint != "" {
		args = append(args, "-f", hint)
	}
	args = append(args,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", t.sampleRate),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 200 {
			detail = detail[:200]
		}
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return nil, newDecodeError(data, formatHint, err)
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, newDecodeError(data, formatHint, fmt.Errorf("ffmpeg produced no output"))
	}

	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	return pcm, nil
}

// normalizeFormatHint maps a MIME type or bare format name to an ffmpeg
// demuxer name. Unknown hints are dropped so ffmpeg auto-detects.
func normalizeFormatHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ""
	}

	// Strip "audio/" prefix and codec suffixes like ";codecs=opus".
	if idx := strings.Index(hint, ";"); idx >= 0 {
		hint = hint[:idx]
	}
	hint = strings.TrimPrefix(hint, "audio/")
	hint = strings.TrimPrefix(hint, "video/")

	switch hint {
	case "webm", "matroska":
		return "matroska"
	case "ogg", "opus":
		return "ogg"
	case "wav", "wave", "x-wav":
		return "wav"
	case "mp3", "mpeg":
		return "mp3"
	case "mp4", "m4a", "x-m4a", "aac":
		return "mp4"
	case "flac":
		return "flac"
	default:
		return ""
	}
}
