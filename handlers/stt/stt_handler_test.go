package stt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceagent/core"
	"voiceagent/events/stt"
)

type fakeSTT struct {
	name  string
	text  string
	err   error
	delay time.Duration

	mu       sync.Mutex
	calls    int
	lastMime string
	lastData []byte
}

func (f *fakeSTT) Name() string                   { return f.name }
func (f *fakeSTT) Init(ctx context.Context) error { return nil }
func (f *fakeSTT) Cleanup() error                 { return nil }

func (f *fakeSTT) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastMime = mimeType
	f.lastData = data
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func wavHeader() []byte {
	b := make([]byte, 1200)
	copy(b, "RIFF")
	copy(b[8:], "WAVE")
	return b
}

func TestTranscribeSniffsMimeAndTrims(t *testing.T) {
	svc := &fakeSTT{name: "primary", text: "  hello  "}
	var got []*core.EventPacket
	h := NewSTTHandler(svc, nil, DefaultConfig(), core.NewNopLogger()).
		WithObserver(core.EventObserverFunc(func(p *core.EventPacket) { got = append(got, p) }))

	ctx := core.ContextWithSessionKey(context.Background(), "s1")
	tr, err := h.Transcribe(ctx, core.AudioPayload{Data: wavHeader(), MimeType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello" || tr.Provider != "primary" {
		t.Fatalf("transcript=%+v", tr)
	}
	if svc.lastMime != core.MimeWAV {
		t.Fatalf("mime=%q", svc.lastMime)
	}
	if len(got) != 2 {
		t.Fatalf("events=%d", len(got))
	}
	if _, ok := got[1].Event.(*stt.TranscriptionCompletedEvent); !ok || got[1].SessionKey != "s1" {
		t.Fatalf("last event=%+v", got[1])
	}
}

func TestTranscribeRejectsUnsupportedType(t *testing.T) {
	svc := &fakeSTT{name: "primary", text: "x"}
	h := NewSTTHandler(svc, nil, DefaultConfig(), core.NewNopLogger())

	_, err := h.Transcribe(context.Background(), core.AudioPayload{Data: make([]byte, 2000), MimeType: "text/plain"})
	if core.KindOf(err) != core.KindUnsupportedAudio {
		t.Fatalf("err=%v", err)
	}
	if svc.calls != 0 {
		t.Fatalf("service called for unsupported type")
	}
}

func TestTranscribeConvertsULawToWAV(t *testing.T) {
	svc := &fakeSTT{name: "primary", text: "ok"}
	h := NewSTTHandler(svc, nil, DefaultConfig(), core.NewNopLogger())

	ulaw := make([]byte, 1600)
	for i := range ulaw {
		ulaw[i] = 0xFF
	}
	if _, err := h.Transcribe(context.Background(), core.AudioPayload{Data: ulaw, MimeType: "audio/x-mulaw"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if svc.lastMime != core.MimeWAV {
		t.Fatalf("mime=%q", svc.lastMime)
	}
	if string(svc.lastData[:4]) != "RIFF" || len(svc.lastData) != 44+2*len(ulaw) {
		t.Fatalf("converted payload has %d bytes", len(svc.lastData))
	}
}

func TestTranscribeFailsOverToBackup(t *testing.T) {
	primary := &fakeSTT{name: "primary", err: core.NewStageError(core.StageTranscribe, core.KindUpstreamUnavailable, errors.New("503"))}
	backup := &fakeSTT{name: "backup", text: "from backup"}
	h := NewSTTHandler(primary, []STTService{backup}, DefaultConfig(), core.NewNopLogger())

	tr, err := h.Transcribe(context.Background(), core.AudioPayload{Data: wavHeader(), MimeType: core.MimeWAV})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Provider != "backup" || tr.Text != "from backup" {
		t.Fatalf("transcript=%+v", tr)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	svc := &fakeSTT{name: "slow", text: "late", delay: time.Second}
	cfg := DefaultConfig()
	cfg.TimeoutMs = 20
	h := NewSTTHandler(svc, nil, cfg, core.NewNopLogger())

	_, err := h.Transcribe(context.Background(), core.AudioPayload{Data: wavHeader(), MimeType: core.MimeWAV})
	if core.KindOf(err) != core.KindTimeout || core.StageOf(err) != core.StageTranscribe {
		t.Fatalf("err=%v", err)
	}
}
