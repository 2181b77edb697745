// Package transcripts persists per-session transcription history as
// JSON files and serves listings for the HTTP API.
package transcripts
