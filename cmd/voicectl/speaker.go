package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"voiceagent/core"
	"voiceagent/utils/audio"
)

const (
	outputSampleRate = 44100
	outputChannels   = 2
	maxClipBytes     = 32 << 20
)

// speaker fetches reply audio and plays it on the default output device.
// The oto context is opened on first use because a process may only have
// one.
type speaker struct {
	http *http.Client

	once   sync.Once
	ctx    *oto.Context
	ctxErr error
}

func newSpeaker() *speaker {
	return &speaker{http: &http.Client{Timeout: time.Minute}}
}

func (s *speaker) init() error {
	s.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   outputSampleRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			s.ctxErr = fmt.Errorf("speaker: open output: %w", err)
			return
		}
		<-ready
		s.ctx = ctx
	})
	return s.ctxErr
}

// Play implements client.Player.
func (s *speaker) Play(ctx context.Context, url string) error {
	data, mime, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}
	pcm, err := decodeToOutput(data, mime)
	if err != nil {
		return err
	}
	if err := s.init(); err != nil {
		return err
	}

	player := s.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *speaker) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("speaker: fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("speaker: fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return nil, "", fmt.Errorf("speaker: read audio: %w", err)
	}
	return data, audio.ResolveMimeType(resp.Header.Get("Content-Type"), data), nil
}

// decodeToOutput turns an MP3 or WAV clip into 16-bit stereo PCM at the
// output sample rate.
func decodeToOutput(data []byte, mime string) ([]byte, error) {
	switch mime {
	case core.MimeMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("speaker: decode mp3: %w", err)
		}
		raw, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("speaker: decode mp3: %w", err)
		}
		// go-mp3 always yields 16-bit stereo.
		return resampleStereo(bytesToSamples(raw), dec.SampleRate(), outputSampleRate), nil
	case core.MimeWAV:
		pcm, info, err := audio.ParseWAV(data)
		if err != nil {
			return nil, fmt.Errorf("speaker: %w", err)
		}
		if info.BitsPerSample != 16 {
			return nil, fmt.Errorf("speaker: unsupported wav depth %d", info.BitsPerSample)
		}
		samples := bytesToSamples(pcm)
		switch info.Channels {
		case 1:
			samples = monoToStereo(samples)
		case 2:
		default:
			return nil, fmt.Errorf("speaker: unsupported wav channel count %d", info.Channels)
		}
		return resampleStereo(samples, info.SampleRate, outputSampleRate), nil
	}
	return nil, fmt.Errorf("speaker: cannot play %q", mime)
}

func bytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func monoToStereo(in []int16) []int16 {
	out := make([]int16, len(in)*2)
	for i, v := range in {
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

// resampleStereo linearly resamples interleaved stereo frames and returns
// little endian bytes.
func resampleStereo(in []int16, from, to int) []byte {
	frames := len(in) / 2
	if from == to || frames == 0 || from <= 0 {
		return samplesToBytes(in[:frames*2])
	}
	outFrames := int(int64(frames) * int64(to) / int64(from))
	out := make([]int16, outFrames*2)
	ratio := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := pos - float64(j)
		k := j + 1
		if k >= frames {
			k = frames - 1
		}
		for ch := 0; ch < 2; ch++ {
			a := float64(in[2*j+ch])
			b := float64(in[2*k+ch])
			out[2*i+ch] = int16(a + (b-a)*frac)
		}
	}
	return samplesToBytes(out)
}

func samplesToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// mutedSpeaker waits for as long as the clip would play without opening an
// output device.
type mutedSpeaker struct{ *speaker }

func (m mutedSpeaker) Play(ctx context.Context, url string) error {
	data, mime, err := m.fetch(ctx, url)
	if err != nil {
		return err
	}
	pcm, err := decodeToOutput(data, mime)
	if err != nil {
		return err
	}
	d := time.Duration(len(pcm)/(2*outputChannels)) * time.Second / outputSampleRate
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
