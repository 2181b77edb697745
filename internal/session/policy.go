package session

import "time"

// Policy is the batch trigger policy: a pure decision function over the
// pending chunk count and the time since the last successful batch.
//
// The three thresholds are independent safety valves. MinChunks amortizes
// per-batch transcription cost over enough audio to be worth a call,
// MaxChunks bounds buffer growth and per-batch latency under fast
// arrival, Window bounds end-to-end latency under sparse speech.
type Policy struct {
	MinChunks int
	MaxChunks int
	Window    time.Duration
}

// DefaultPolicy matches the service defaults: 5 chunks minimum, 20
// maximum, 5 second window.
func DefaultPolicy() Policy {
	return Policy{
		MinChunks: 5,
		MaxChunks: 20,
		Window:    5 * time.Second,
	}
}

// ShouldProcess reports whether a batch should be processed now, given
// the number of pending chunks and the elapsed time since the last
// successful batch. Any one threshold is sufficient.
func (p Policy) ShouldProcess(pendingChunks int, sinceLastBatch time.Duration) bool {
	if pendingChunks <= 0 {
		return false
	}

	if pendingChunks >= p.MinChunks {
		return true
	}

	if pendingChunks >= p.MaxChunks {
		return true
	}

	return sinceLastBatch >= p.Window
}
