package audio

import (
	"bytes"
	"testing"
)

func testPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}
	return pcm
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	pcm := testPCM(3200) // 100ms at 16kHz mono 16-bit

	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wav) != WAVHeaderSize+len(pcm) {
		t.Errorf("container size = %d, want %d", len(wav), WAVHeaderSize+len(pcm))
	}

	if !IsWAV(wav) {
		t.Error("encoded container not recognized by IsWAV")
	}

	decoded, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}

	if !bytes.Equal(decoded, pcm) {
		t.Error("decoded PCM does not match original")
	}
}

func TestEncodeWAVRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
	}{
		{"empty data", nil, 16000},
		{"odd length", []byte{1, 2, 3}, 16000},
		{"zero sample rate", []byte{1, 2}, 0},
		{"negative sample rate", []byte{1, 2}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.pcm, tt.sampleRate); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeWAVRejectsInvalidContainers(t *testing.T) {
	valid, err := EncodeWAV(testPCM(320), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	corruptRIFF := append([]byte(nil), valid...)
	copy(corruptRIFF[0:4], "JUNK")

	stereo := append([]byte(nil), valid...)
	stereo[22] = 2 // NumChannels

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", valid[:20]},
		{"corrupt RIFF marker", corruptRIFF},
		{"stereo rejected", stereo},
		{"random bytes", testPCM(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeWAVTruncatedData(t *testing.T) {
	wav, err := EncodeWAV(testPCM(1000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Header declares 1000 data bytes but only 500 are present.
	truncated := wav[:WAVHeaderSize+500]

	pcm, _, err := DecodeWAV(truncated)
	if err != nil {
		t.Fatalf("DecodeWAV failed on truncated container: %v", err)
	}

	if len(pcm) != 500 {
		t.Errorf("decoded %d bytes, want 500", len(pcm))
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		pcmBytes   int
		sampleRate int
		want       float64
	}{
		{"one second at 16kHz", 32000, 16000, 1.0},
		{"half second at 16kHz", 16000, 16000, 0.5},
		{"empty", 0, 16000, 0},
		{"invalid rate", 32000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Duration(make([]byte, tt.pcmBytes), tt.sampleRate)
			if got != tt.want {
				t.Errorf("Duration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetWAVInfo(t *testing.T) {
	wav, err := EncodeWAV(testPCM(32000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(wav)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.BitsPerSample != 16 {
		t.Errorf("BitsPerSample = %d, want 16", info.BitsPerSample)
	}
	if info.Duration != 1.0 {
		t.Errorf("Duration = %v, want 1.0", info.Duration)
	}
}
