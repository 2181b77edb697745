// Package transcription provides the long-lived HTTP client for the
// Whisper-compatible transcription API.
package transcription
