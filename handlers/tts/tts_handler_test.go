package tts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"voiceagent/audiostore"
	"voiceagent/core"
)

type fakeTTS struct {
	name      string
	max       int
	audio     *core.SynthesizedAudio
	err       error
	lastText  string
	lastVoice string
}

func (f *fakeTTS) Name() string                   { return f.name }
func (f *fakeTTS) Init(ctx context.Context) error { return nil }
func (f *fakeTTS) Cleanup() error                 { return nil }
func (f *fakeTTS) MaxTextLength() int             { return f.max }

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice string) (*core.SynthesizedAudio, error) {
	f.lastText = text
	f.lastVoice = voice
	return f.audio, f.err
}

func TestSynthesizeStoresBytesLocally(t *testing.T) {
	store := audiostore.NewMemoryStore(10, 0)
	svc := &fakeTTS{name: "openai-tts", max: 4096, audio: &core.SynthesizedAudio{Data: []byte("mp3"), MimeType: core.MimeMP3}}
	cfg := DefaultConfig()
	cfg.DefaultVoice = "alloy"
	h := NewTTSHandler(svc, nil, store, cfg, core.NewNopLogger())

	speech, err := h.Synthesize(context.Background(), "**Hello** there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if svc.lastText != "Hello there" || svc.lastVoice != "alloy" {
		t.Fatalf("sent %q voice %q", svc.lastText, svc.lastVoice)
	}
	if !strings.HasPrefix(speech.Audio.URL, "/audio/") {
		t.Fatalf("url=%q", speech.Audio.URL)
	}
	clip, err := store.Get(context.Background(), strings.TrimPrefix(speech.Audio.URL, "/audio/"))
	if err != nil || string(clip.Data) != "mp3" {
		t.Fatalf("clip=%+v err=%v", clip, err)
	}
}

func TestSynthesizePassesHostedURL(t *testing.T) {
	svc := &fakeTTS{name: "murf", max: 3000, audio: &core.SynthesizedAudio{URL: "https://cdn/x.wav", MimeType: core.MimeWAV}}
	h := NewTTSHandler(svc, nil, nil, DefaultConfig(), core.NewNopLogger())

	speech, err := h.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if speech.Audio.URL != "https://cdn/x.wav" {
		t.Fatalf("url=%q", speech.Audio.URL)
	}
}

func TestSynthesizeTruncatesLongText(t *testing.T) {
	svc := &fakeTTS{name: "murf", max: 20, audio: &core.SynthesizedAudio{URL: "u"}}
	h := NewTTSHandler(svc, nil, nil, DefaultConfig(), core.NewNopLogger())

	speech, err := h.Synthesize(context.Background(), "one two three four five six seven")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !speech.Truncated {
		t.Fatalf("expected truncation flag")
	}
	if svc.lastText != "one two three four" {
		t.Fatalf("sent %q", svc.lastText)
	}
}

func TestSynthesizeFailureKeepsKind(t *testing.T) {
	svc := &fakeTTS{name: "murf", max: 3000, err: core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, errors.New("down"))}
	h := NewTTSHandler(svc, nil, nil, DefaultConfig(), core.NewNopLogger())

	_, err := h.Synthesize(context.Background(), "hi")
	if core.KindOf(err) != core.KindUpstreamUnavailable || core.StageOf(err) != core.StageSynthesize {
		t.Fatalf("err=%v", err)
	}
}

func TestNormalizeTextForTTS(t *testing.T) {
	cases := map[string]string{
		"## Title\n- item one\n- item two": "Title item one item two",
		"see [the docs](http://x.y) now":   "see the docs now",
		"great job 🎉   really":             "great job really",
		"`code` and ~~old~~":               "code and old",
	}
	for in, want := range cases {
		if got := normalizeTextForTTS(in); got != want {
			t.Errorf("normalize(%q)=%q want %q", in, got, want)
		}
	}
}

func TestTruncateAtWord(t *testing.T) {
	if got, cut := truncateAtWord("short", 10); got != "short" || cut {
		t.Fatalf("got %q %v", got, cut)
	}
	if got, cut := truncateAtWord("abcdefghijkl", 5); got != "abcde" || !cut {
		t.Fatalf("got %q %v", got, cut)
	}
}
