package transcripts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one batch transcription appended to a session's history.
type Entry struct {
	Timestamp           string  `json:"timestamp"`
	Text                string  `json:"text"`
	Confidence          float64 `json:"confidence"`
	DurationSeconds     float64 `json:"duration_seconds"`
	ChunkCount          int     `json:"chunk_count"`
	AudioSizeBytes      int     `json:"audio_size_bytes"`
	Model               string  `json:"model"`
	Language            string  `json:"language"`
	ProcessingTimestamp string  `json:"processing_timestamp"`
	ReadyForLLM         bool    `json:"ready_for_llm"`
	Error               string  `json:"error,omitempty"`
}

// SessionHistory is the on-disk shape of one session's transcript file.
type SessionHistory struct {
	SessionID      string  `json:"session_id"`
	CreatedAt      string  `json:"created_at"`
	LastUpdated    string  `json:"last_updated"`
	Language       string  `json:"language"`
	Transcriptions []Entry `json:"transcriptions"`
}

// FileInfo describes one stored transcript file for listings.
type FileInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Modified  string `json:"modified"`
}

// Store persists per-session transcript history as one JSON file per
// session. Append failures are the caller's to log; they never affect
// the live stream.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the transcript directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory %s: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) filename(sessionID string) string {
	return fmt.Sprintf("transcription_session_%s.json", sessionID)
}

// Append adds one entry to the session's history file, creating it on
// first use. A corrupt existing file is replaced rather than failing the
// append.
func (s *Store) Append(sessionID, language string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, s.filename(sessionID))
	now := time.Now().Format(time.RFC3339)

	history := &SessionHistory{
		SessionID: sessionID,
		CreatedAt: now,
		Language:  language,
	}

	if data, err := os.ReadFile(path); err == nil {
		var existing SessionHistory
		if jsonErr := json.Unmarshal(data, &existing); jsonErr == nil {
			history = &existing
		}
		// Corrupt file: keep the fresh history and overwrite.
	}

	history.Transcriptions = append(history.Transcriptions, entry)
	history.LastUpdated = now
	if language != "" {
		history.Language = language
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript history: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace transcript file: %w", err)
	}

	return nil
}

// List returns all stored transcript files, newest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "transcription_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Filename:  e.Name(),
			SizeBytes: info.Size(),
			Modified:  info.ModTime().Format(time.RFC3339),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified > files[j].Modified
	})

	return files, nil
}

// Get loads one transcript file by name. The name must be a bare
// filename produced by this store; path separators are rejected.
func (s *Store) Get(filename string) (*SessionHistory, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".json") {
		return nil, fmt.Errorf("invalid transcript filename: %q", filename)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript file not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	var history SessionHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse transcript file %s: %w", filename, err)
	}

	return &history, nil
}

// Directory returns the store's base directory.
func (s *Store) Directory() string { return s.dir }
