package session

import (
	"testing"
	"time"
)

func TestPolicyShouldProcess(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name           string
		pendingChunks  int
		sinceLastBatch time.Duration
		want           bool
	}{
		{"no chunks", 0, time.Minute, false},
		{"below minimum, fresh", 4, time.Second, false},
		{"exactly minimum", 5, 0, true},
		{"above minimum", 12, 0, true},
		{"at maximum", 20, 0, true},
		{"single chunk, window elapsed", 1, 5 * time.Second, true},
		{"single chunk, window exceeded", 1, time.Minute, true},
		{"single chunk, window not elapsed", 1, 4999 * time.Millisecond, false},
		{"no chunks, window elapsed", 0, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ShouldProcess(tt.pendingChunks, tt.sinceLastBatch)
			if got != tt.want {
				t.Errorf("ShouldProcess(%d, %v) = %v, want %v",
					tt.pendingChunks, tt.sinceLastBatch, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MinChunks != 5 {
		t.Errorf("MinChunks = %d, want 5", p.MinChunks)
	}
	if p.MaxChunks != 20 {
		t.Errorf("MaxChunks = %d, want 20", p.MaxChunks)
	}
	if p.Window != 5*time.Second {
		t.Errorf("Window = %v, want 5s", p.Window)
	}
}
