package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"voiceagent/core"
	"voiceagent/utils/audio"
)

func TestDecodeMonoWAVToOutput(t *testing.T) {
	// 100 ms of 8 kHz mono.
	pcm := make([]byte, 1600)
	for i := 0; i < 800; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i)))
	}
	wav, err := audio.PCMBytesToWavBytes(pcm, 1, 8000)
	if err != nil {
		t.Fatalf("PCMBytesToWavBytes: %v", err)
	}

	out, err := decodeToOutput(wav, core.MimeWAV)
	if err != nil {
		t.Fatalf("decodeToOutput: %v", err)
	}
	wantFrames := 800 * outputSampleRate / 8000
	if got := len(out) / 4; got != wantFrames {
		t.Fatalf("frames = %d, want %d", got, wantFrames)
	}
	left := int16(binary.LittleEndian.Uint16(out[0:]))
	right := int16(binary.LittleEndian.Uint16(out[2:]))
	if left != right {
		t.Fatalf("mono should be duplicated, got %d/%d", left, right)
	}
}

func TestDecodeRejectsUnknown(t *testing.T) {
	if _, err := decodeToOutput([]byte("nope"), core.MimeWebM); err == nil {
		t.Fatal("expected an error for webm")
	}
}

func TestResampleSameRate(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	out := resampleStereo(in, 44100, 44100)
	if len(out) != 8 || int16(binary.LittleEndian.Uint16(out[6:])) != 4 {
		t.Fatalf("out = %v", out)
	}
}

func TestFileMicrophone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.wav")
	wav, _ := audio.PCMBytesToWavBytes(make([]byte, 4000), 1, 16000)
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		t.Fatal(err)
	}
	mic := newFileMicrophone([]string{path, filepath.Join(dir, "missing.wav")})

	if err := mic.RequestPermission(t.Context()); err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}
	if err := mic.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p, err := mic.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.MimeType != core.MimeWAV || p.Filename != "hello.wav" || len(p.Data) != len(wav) {
		t.Fatalf("payload = %s %s %d", p.MimeType, p.Filename, len(p.Data))
	}
	mic.Release()

	if err := mic.RequestPermission(t.Context()); err == nil {
		t.Fatal("missing file must be refused")
	}
	if mic.Remaining() != 0 {
		t.Fatalf("remaining = %d", mic.Remaining())
	}
}
