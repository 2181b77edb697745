package transcripts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testEntry(text string) Entry {
	return Entry{
		Timestamp:       time.Now().Format(time.RFC3339),
		Text:            text,
		Confidence:      0.95,
		DurationSeconds: 2.5,
		ChunkCount:      5,
		AudioSizeBytes:  80044,
		Model:           "whisper-1",
		Language:        "en",
		ReadyForLLM:     true,
	}
}

func TestAppendCreatesAndExtendsHistory(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Append("sess-1", "en", testEntry("first")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append("sess-1", "en", testEntry("second")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	history, err := store.Get("transcription_session_sess-1.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if history.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", history.SessionID)
	}
	if history.Language != "en" {
		t.Errorf("Language = %q", history.Language)
	}
	if len(history.Transcriptions) != 2 {
		t.Fatalf("got %d entries, want 2", len(history.Transcriptions))
	}
	if history.Transcriptions[0].Text != "first" || history.Transcriptions[1].Text != "second" {
		t.Error("entries out of order")
	}
	if history.LastUpdated == "" {
		t.Error("LastUpdated not set")
	}
}

func TestAppendReplacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path := filepath.Join(dir, "transcription_session_bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file failed: %v", err)
	}

	if err := store.Append("bad", "en", testEntry("recovered")); err != nil {
		t.Fatalf("Append over corrupt file failed: %v", err)
	}

	history, err := store.Get("transcription_session_bad.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(history.Transcriptions) != 1 || history.Transcriptions[0].Text != "recovered" {
		t.Errorf("unexpected recovered history: %+v", history)
	}
}

func TestListReturnsOnlyTranscriptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Append("a", "en", testEntry("x")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append("b", "en", testEntry("y")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Unrelated files in the directory must not appear in listings.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	for _, f := range files {
		if f.SizeBytes == 0 {
			t.Errorf("file %s has zero size", f.Filename)
		}
		if f.Modified == "" {
			t.Errorf("file %s missing modified time", f.Filename)
		}
	}
}

func TestGetRejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	for _, name := range []string{
		"../../../etc/passwd",
		"sub/file.json",
		"file.txt",
		"",
	} {
		if _, err := store.Get(name); err == nil {
			t.Errorf("Get(%q) should fail", name)
		}
	}
}

func TestGetMissingFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.Get("transcription_session_none.json"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestNewStoreRejectsEmptyDir(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Error("empty directory should be rejected")
	}
}
