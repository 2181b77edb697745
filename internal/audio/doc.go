// Package audio provides the canonical PCM/WAV container helpers, the
// format-aware per-session batch buffer, and the ffmpeg-backed transcoder.
package audio
