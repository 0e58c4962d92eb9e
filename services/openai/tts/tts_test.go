package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiceagent/core"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenAITTSService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test"
	cfg.BaseURL = srv.URL + "/v1"
	svc := NewOpenAITTSService(cfg, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return svc
}

func TestSynthesizeReturnsMP3(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path=%q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if s := string(body); !strings.Contains(s, `"voice":"nova"`) || !strings.Contains(s, `"input":"Hi there"`) {
			t.Errorf("unexpected body %s", s)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "ID3-mp3-bytes")
	})

	out, err := svc.Synthesize(context.Background(), "Hi there", "nova")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(out.Data) != "ID3-mp3-bytes" || out.MimeType != core.MimeMP3 {
		t.Fatalf("audio=%q (%s)", out.Data, out.MimeType)
	}
}

func TestSynthesizeClassifiesHTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   core.ErrorKind
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, core.KindRateLimited},
		{http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`, core.KindUpstreamUnavailable},
		{http.StatusBadRequest, `{"error":{"message":"bad voice","type":"invalid_request_error"}}`, core.KindUpstreamUnavailable},
	}
	for _, tc := range cases {
		svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		})
		_, err := svc.Synthesize(context.Background(), "x", "")
		if core.KindOf(err) != tc.want {
			t.Errorf("status %d: kind=%q err=%v", tc.status, core.KindOf(err), err)
		}
		if core.StageOf(err) != core.StageSynthesize {
			t.Errorf("status %d: stage=%q", tc.status, core.StageOf(err))
		}
	}
}

func TestSynthesizeWithoutInit(t *testing.T) {
	svc := NewOpenAITTSService(Config{}, core.NewNopLogger())
	if err := svc.Init(context.Background()); !errors.Is(err, core.ErrNotConfigured) {
		t.Fatalf("Init err=%v", err)
	}
	if _, err := svc.Synthesize(context.Background(), "x", ""); core.KindOf(err) != core.KindUpstreamUnavailable {
		t.Fatalf("err=%v", err)
	}
	if svc.MaxTextLength() != maxInputLength {
		t.Fatalf("max text length=%d", svc.MaxTextLength())
	}
}
