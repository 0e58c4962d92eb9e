package fallback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/utils/audio"
)

// ApologyClipID is the fixed audio store id of the apology clip.
const ApologyClipID = "fallback-apology"

// SynthesizeFunc renders text with a speech provider.
type SynthesizeFunc func(ctx context.Context, text string) (*core.SynthesizedAudio, error)

type Config struct {
	Messages Messages `json:"messages"`
	// ClipPath points at a .ulaw, .wav or .mp3 apology recording.
	ClipPath string `json:"clip_path"`
	// ClipText is synthesized once at startup when no ClipPath is set.
	ClipText       string `json:"clip_text"`
	ULawSampleRate int    `json:"ulaw_sample_rate"`
	AudioBasePath  string `json:"audio_base_path"`
}

func DefaultConfig() Config {
	return Config{
		Messages:       DefaultMessages(),
		ULawSampleRate: 8000,
		AudioBasePath:  "/audio",
	}
}

// Fallback resolves messages for failed turns and holds the apology clip
// reference once one has been prepared.
type Fallback struct {
	config Config
	logger *core.Logger

	mu   sync.RWMutex
	clip *core.AudioRef
}

func New(config Config, logger *core.Logger) *Fallback {
	def := DefaultConfig()
	config.Messages = config.Messages.merge(def.Messages)
	if config.ULawSampleRate <= 0 {
		config.ULawSampleRate = def.ULawSampleRate
	}
	if config.AudioBasePath == "" {
		config.AudioBasePath = def.AudioBasePath
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Fallback{config: config, logger: logger.With(map[string]any{"component": "fallback"})}
}

// Message returns the user-facing text for a failed turn.
func (f *Fallback) Message(err error) string {
	return f.config.Messages.For(err)
}

// Messages returns the resolved message set.
func (f *Fallback) Messages() Messages {
	return f.config.Messages
}

// Clip returns the apology clip reference, or nil when none is prepared.
func (f *Fallback) Clip() *core.AudioRef {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.clip == nil {
		return nil
	}
	c := *f.clip
	return &c
}

// Prepare loads the configured clip file or, failing that, synthesizes
// ClipText. A missing clip is not an error: turns just fail without audio.
func (f *Fallback) Prepare(ctx context.Context, store audiostore.Store, synth SynthesizeFunc) error {
	switch {
	case f.config.ClipPath != "":
		return f.LoadClipFile(ctx, store, f.config.ClipPath)
	case f.config.ClipText != "" && synth != nil:
		return f.Presynthesize(ctx, store, f.config.ClipText, synth)
	}
	return nil
}

// LoadClipFile pins the recording at path in store.
func (f *Fallback) LoadClipFile(ctx context.Context, store audiostore.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fallback: read clip: %w", err)
	}

	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ulaw", ".ul", ".mulaw", ".pcmu":
		data, err = audio.ULawToWav(data, f.config.ULawSampleRate)
		if err != nil {
			return fmt.Errorf("fallback: decode μ-law clip: %w", err)
		}
		mime = core.MimeWAV
	case ".wav":
		if _, _, err := audio.ParseWAV(data); err != nil {
			return fmt.Errorf("fallback: invalid wav clip: %w", err)
		}
		mime = core.MimeWAV
	case ".mp3":
		mime = core.MimeMP3
	default:
		return fmt.Errorf("fallback: unsupported clip file %q", filepath.Base(path))
	}
	return f.pin(ctx, store, data, mime)
}

// Presynthesize renders text once and keeps the result as the apology clip.
func (f *Fallback) Presynthesize(ctx context.Context, store audiostore.Store, text string, synth SynthesizeFunc) error {
	out, err := synth(ctx, text)
	if err != nil {
		return fmt.Errorf("fallback: synthesize clip: %w", err)
	}
	if out == nil {
		return errors.New("fallback: synthesizer returned no audio")
	}
	if out.URL != "" {
		f.setClip(core.AudioRef{URL: out.URL, MimeType: out.MimeType, Fallback: true})
		return nil
	}
	return f.pin(ctx, store, out.Data, out.MimeType)
}

func (f *Fallback) pin(ctx context.Context, store audiostore.Store, data []byte, mime string) error {
	if store == nil {
		return errors.New("fallback: no audio store")
	}
	if err := store.Pin(ctx, ApologyClipID, data, mime); err != nil {
		return fmt.Errorf("fallback: store clip: %w", err)
	}
	f.setClip(core.AudioRef{
		URL:      audiostore.URLFor(f.config.AudioBasePath, ApologyClipID),
		MimeType: mime,
		Fallback: true,
	})
	return nil
}

func (f *Fallback) setClip(ref core.AudioRef) {
	f.mu.Lock()
	f.clip = &ref
	f.mu.Unlock()
	f.logger.Info("apology clip ready", "url", ref.URL)
}
