// Package session implements the per-connection audio engine: chunk
// ingestion, format-aware buffering, the batch trigger policy, batch
// packaging and transcription hand-off, and exactly-once finalization
// with archival. A Registry tracks live sessions for monitoring and
// graceful shutdown.
package session
