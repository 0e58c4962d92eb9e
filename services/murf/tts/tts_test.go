package murf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

func TestSynthesizeReturnsHostedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/speech/generate" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("api-key") != "murf-key" {
			t.Errorf("api-key header=%q", r.Header.Get("api-key"))
		}
		raw, _ := io.ReadAll(r.Body)
		var body generateRequest
		if err := sonic.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Text != "Hello!" || body.VoiceID != defaultVoice {
			t.Errorf("body=%+v", body)
		}
		w.Write([]byte(`{"audioFile":"https://cdn.murf.ai/a.wav","audioLengthInSeconds":1.2}`))
	}))
	defer srv.Close()

	svc := NewMurfTTSService(Config{APIKey: "murf-key", BaseURL: srv.URL}, core.NewNopLogger())
	audio, err := svc.Synthesize(context.Background(), "Hello!", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.URL != "https://cdn.murf.ai/a.wav" || len(audio.Data) != 0 {
		t.Fatalf("audio=%+v", audio)
	}
}

func TestSynthesizeMissingAudioFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewMurfTTSService(Config{APIKey: "k", BaseURL: srv.URL}, core.NewNopLogger())
	_, err := svc.Synthesize(context.Background(), "x", "")
	if core.KindOf(err) != core.KindUpstreamUnavailable {
		t.Fatalf("err=%v", err)
	}
}

func TestSynthesizeServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewMurfTTSService(Config{APIKey: "k", BaseURL: srv.URL}, core.NewNopLogger())
	_, err := svc.Synthesize(context.Background(), "x", "")
	if core.KindOf(err) != core.KindUpstreamUnavailable || core.StageOf(err) != core.StageSynthesize {
		t.Fatalf("err=%v", err)
	}
}
