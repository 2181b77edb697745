package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voicesportstat/audio-gateway/internal/audio"
	"github.com/voicesportstat/audio-gateway/internal/metrics"
	"github.com/voicesportstat/audio-gateway/internal/storage"
	"github.com/voicesportstat/audio-gateway/internal/transcripts"
)

// Deps carries the collaborators shared by all sessions. Logger,
// Transcoder, Oracle and Store are required; History and Metrics may be
// nil; a nil Now defaults to time.Now.
type Deps struct {
	Policy     Policy
	SampleRate int
	Model      string

	Transcoder audio.Transcoder
	Oracle     Transcriber
	Store      storage.Store
	History    *transcripts.Store
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	Now func() time.Time
}

// Registry tracks live sessions by ID. The map is guarded by a mutex;
// each Session's internals remain single-owner and are never touched by
// the registry beyond creation, snapshots and shutdown.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	deps        Deps
	maxSessions int
}

// NewRegistry creates an empty registry. maxSessions <= 0 means
// unlimited.
func NewRegistry(deps Deps, maxSessions int) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		deps:        deps,
		maxSessions: maxSessions,
	}
}

// Create registers a new session bound to the given sender.
func (r *Registry) Create(id string, sender Sender) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", r.maxSessions)
	}

	sess := newSession(id, sender, r.deps)
	r.sessions[id] = sess

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordSessionCreated()
		r.deps.Metrics.SetActiveSessions(len(r.sessions))
	}

	return sess, nil
}

// Get returns the session with the given ID, if present.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove drops a session from the registry. The caller is responsible
// for finalizing it first.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)

	if r.deps.Metrics != nil {
		r.deps.Metrics.SetActiveSessions(len(r.sessions))
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshots returns monitoring info for every live session. The session
// list is copied under the registry lock and snapshots are taken after
// releasing it: a session busy in a slow batch must not stall
// create/remove for everyone else.
func (r *Registry) Snapshots() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Snapshot())
	}
	return infos
}

// Shutdown finalizes every live session. Used during graceful server
// shutdown so buffered audio still gets a final batch and an archive.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Finalize(ctx)
	}
	for _, sess := range sessions {
		sess.Wait()
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.SetActiveSessions(0)
	}
}
