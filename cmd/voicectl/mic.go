package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voiceagent/core"
	"voiceagent/utils/audio"
)

// fileMicrophone "records" pre-made audio files, one per attempt, so turns
// can be driven from a terminal without capture hardware.
type fileMicrophone struct {
	mu      sync.Mutex
	files   []string
	current string
}

func newFileMicrophone(files []string) *fileMicrophone {
	return &fileMicrophone{files: files}
}

// RequestPermission claims the next file; an unreadable file counts as a
// refusal.
func (m *fileMicrophone) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.files) == 0 {
		return errors.New("no recordings left")
	}
	next := m.files[0]
	m.files = m.files[1:]
	if _, err := os.Stat(next); err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	m.current = next
	return nil
}

func (m *fileMicrophone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == "" {
		return errors.New("microphone not granted")
	}
	return nil
}

func (m *fileMicrophone) Stop() (core.AudioPayload, error) {
	m.mu.Lock()
	path := m.current
	m.mu.Unlock()
	if path == "" {
		return core.AudioPayload{}, errors.New("not recording")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("read recording: %w", err)
	}
	return core.AudioPayload{
		Data:     data,
		MimeType: audio.ResolveMimeType(mimeFromExt(path), data),
		Filename: filepath.Base(path),
	}, nil
}

func (m *fileMicrophone) Release() {
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()
}

func (m *fileMicrophone) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func mimeFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".wav":
		return core.MimeWAV
	case ".webm":
		return core.MimeWebM
	case ".ogg", ".opus":
		return core.MimeOgg
	case ".mp3":
		return core.MimeMP3
	case ".m4a", ".mp4":
		return core.MimeMP4
	case ".flac":
		return core.MimeFLAC
	case ".ulaw", ".ul":
		return core.MimeULaw
	}
	return ""
}
