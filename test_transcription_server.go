package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Standalone fake transcription endpoint for local development. Point
// transcription.endpoint at http://localhost:9000/v1/audio/transcriptions
// and every batch gets a canned verbose_json response.

type TranscriptionResponse struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Duration    float64   `json:"duration"`
	Confidence  float64   `json:"confidence"`
	ProcessedAt time.Time `json:"processed_at"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(32 << 20) // 32 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	model := r.FormValue("model")
	responseFormat := r.FormValue("response_format")
	sessionID := r.FormValue("session_id")
	chunkCount := r.FormValue("chunk_count")
	language := r.FormValue("language")

	// Get audio file
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("  Session ID: %s", sessionID)
	log.Printf("  Chunk Count: %s", chunkCount)
	log.Printf("  Model: %s", model)
	log.Printf("  Response Format: %s", responseFormat)
	log.Printf("  Language: %s", language)
	log.Printf("  Filename: %s", header.Filename)
	log.Printf("  Audio Size: %d bytes", len(audioData))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := TranscriptionResponse{
		Text:        "This is a test transcription of the batched audio segment",
		Language:    "en",
		Duration:    estimateDuration(len(audioData)),
		Confidence:  0.95,
		ProcessedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

// estimateDuration assumes 16 kHz mono 16-bit WAV (44-byte header).
func estimateDuration(sizeBytes int) float64 {
	pcmBytes := sizeBytes - 44
	if pcmBytes <= 0 {
		return 0
	}
	return float64(pcmBytes) / (16000 * 2)
}

func main() {
	http.HandleFunc("/v1/audio/transcriptions", transcribeHandler)

	port := ":9000"
	log.Printf("🚀 Test Transcription Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/v1/audio/transcriptions", port)
	log.Println("💡 Update your config to use this endpoint for local testing")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
