package audio

import (
	"context"
	"fmt"
	"strings"
)

// SourceFormat identifies how a session's inbound chunks must be buffered
// and decoded. It is fixed by the first chunk of a session and never
// changes afterwards, even if later chunks declare a different MIME type.
type SourceFormat int

const (
	// FormatUnknown means no chunk has been seen yet.
	FormatUnknown SourceFormat = iota

	// FormatRawPCM covers self-delimited formats: each chunk decodes
	// independently into canonical PCM (WAV, OGG pages, ...).
	FormatRawPCM

	// FormatStreamingContainer covers cumulative container formats
	// (WebM/Matroska) that can only be decoded with the full byte
	// history from the start of the stream.
	FormatStreamingContainer
)

func (f SourceFormat) String() string {
	switch f {
	case FormatRawPCM:
		return "raw_pcm_container"
	case FormatStreamingContainer:
		return "streaming_container"
	default:
		return "unknown"
	}
}

// DetectSourceFormat classifies a declared MIME type. WebM is the only
// streaming-container indicator; everything else is treated as
// self-delimited.
func DetectSourceFormat(mimeType string) SourceFormat {
	if strings.Contains(strings.ToLower(mimeType), "webm") {
		return FormatStreamingContainer
	}
	return FormatRawPCM
}

// BatchBuffer accumulates one session's audio between batches and tracks
// the offsets that separate already-transcribed audio from pending audio.
//
// It is not safe for concurrent use: a session's buffer is owned and
// mutated exclusively by that session's single processing context.
type BatchBuffer struct {
	format     SourceFormat
	sampleRate int

	// Raw-PCM mode: decoded PCM accumulated since the last compaction,
	// plus the high-water mark consumed by prior batches. After every
	// compaction batchOffset is 0 and the buffer holds only pending PCM.
	pcmBatch    []byte
	batchOffset int

	// Streaming-container mode: cumulative raw container bytes. Never
	// compacted; every batch re-decodes from byte 0. processedPCMOffset
	// is the high-water mark into the decoded PCM stream and only grows.
	container          []byte
	processedPCMOffset int

	// Raw-PCM mode: every decoded PCM byte ever produced, for the
	// full-session archive. The streaming branch rebuilds the full
	// session from container instead.
	fullSessionPCM []byte
}

// NewBatchBuffer creates an empty buffer with the source format still
// undetermined.
func NewBatchBuffer(sampleRate int) *BatchBuffer {
	return &BatchBuffer{
		format:     FormatUnknown,
		sampleRate: sampleRate,
	}
}

// Format returns the source format fixed for this buffer.
func (b *BatchBuffer) Format() SourceFormat { return b.format }

// FixFormat sets the source format from the first chunk's MIME type.
// Subsequent calls are no-ops: the first chunk wins for the whole session.
func (b *BatchBuffer) FixFormat(mimeType string) SourceFormat {
	if b.format == FormatUnknown {
		b.format = DetectSourceFormat(mimeType)
	}
	return b.format
}

// AppendPCM adds decoded canonical PCM from one self-delimited chunk to
// both the pending batch and the full-session mirror.
func (b *BatchBuffer) AppendPCM(pcm []byte) error {
	if b.format != FormatRawPCM {
		return fmt.Errorf("AppendPCM requires raw PCM mode, buffer is %s", b.format)
	}
	b.pcmBatch = append(b.pcmBatch, pcm...)
	b.fullSessionPCM = append(b.fullSessionPCM, pcm...)
	return nil
}

// AppendContainer adds raw cumulative container bytes; decoding is
// deferred until batch time.
func (b *BatchBuffer) AppendContainer(data []byte) error {
	if b.format != FormatStreamingContainer {
		return fmt.Errorf("AppendContainer requires streaming container mode, buffer is %s", b.format)
	}
	b.container = append(b.container, data...)
	return nil
}

// PendingBatch returns the PCM that arrived since the last committed
// batch, plus the end offset to pass to Commit once the downstream call
// succeeds. A nil slice with a nil error means there is no new audio and
// the batch should be aborted silently.
//
// For the streaming-container format the entire container is re-decoded
// from byte 0 (the format cannot be decoded from an arbitrary offset) and
// the already-processed prefix is skipped.
func (b *BatchBuffer) PendingBatch(ctx context.Context, tc Transcoder) ([]byte, int, error) {
	switch b.format {
	case FormatRawPCM:
		if b.batchOffset >= len(b.pcmBatch) {
			return nil, 0, nil
		}
		return b.pcmBatch[b.batchOffset:], len(b.pcmBatch), nil

	case FormatStreamingContainer:
		if len(b.container) == 0 {
			return nil, 0, nil
		}
		pcm, err := tc.Decode(ctx, b.container, "webm")
		if err != nil {
			return nil, 0, err
		}
		if len(pcm) <= b.processedPCMOffset {
			return nil, 0, nil
		}
		return pcm[b.processedPCMOffset:], len(pcm), nil

	default:
		return nil, 0, nil
	}
}

// Commit advances the consumed high-water mark after a successful
// downstream handoff. end must be the offset returned by PendingBatch.
//
// Raw PCM mode compacts: consumed bytes are dropped and batchOffset
// resets to 0 (bounded memory). Streaming mode only advances
// processedPCMOffset; the container is retained in full.
func (b *BatchBuffer) Commit(end int) {
	switch b.format {
	case FormatRawPCM:
		if end > len(b.pcmBatch) {
			end = len(b.pcmBatch)
		}
		b.pcmBatch = append(b.pcmBatch[:0], b.pcmBatch[end:]...)
		b.batchOffset = 0

	case FormatStreamingContainer:
		if end > b.processedPCMOffset {
			b.processedPCMOffset = end
		}
	}
}

// FullSessionPCM reconstructs every PCM byte of the session for archival.
// The streaming branch performs one final full-context decode.
func (b *BatchBuffer) FullSessionPCM(ctx context.Context, tc Transcoder) ([]byte, error) {
	switch b.format {
	case FormatRawPCM:
		out := make([]byte, len(b.fullSessionPCM))
		copy(out, b.fullSessionPCM)
		return out, nil

	case FormatStreamingContainer:
		if len(b.container) == 0 {
			return nil, nil
		}
		return tc.Decode(ctx, b.container, "webm")

	default:
		return nil, nil
	}
}

// PendingBytes returns the number of buffered-but-unprocessed bytes: PCM
// bytes for raw mode, raw container bytes for streaming mode.
func (b *BatchBuffer) PendingBytes() int {
	switch b.format {
	case FormatRawPCM:
		return len(b.pcmBatch) - b.batchOffset
	case FormatStreamingContainer:
		return len(b.container)
	default:
		return 0
	}
}

// SessionBytes returns the total bytes retained for the whole session.
func (b *BatchBuffer) SessionBytes() int {
	switch b.format {
	case FormatRawPCM:
		return len(b.fullSessionPCM)
	case FormatStreamingContainer:
		return len(b.container)
	default:
		return 0
	}
}

// ProcessedPCMOffset exposes the streaming-mode decode high-water mark
// for monitoring.
func (b *BatchBuffer) ProcessedPCMOffset() int { return b.processedPCMOffset }

// SampleRate returns the canonical sample rate this buffer was built for.
func (b *BatchBuffer) SampleRate() int { return b.sampleRate }
