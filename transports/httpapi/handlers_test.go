package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/fallback"
	"voiceagent/handlers/llm"
	"voiceagent/handlers/stt"
	"voiceagent/handlers/tts"
	"voiceagent/orchestrator"
	"voiceagent/protocol"
	"voiceagent/session"
)

type transcriberFunc func(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error)

func (f transcriberFunc) Transcribe(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error) {
	return f(ctx, p)
}

type generatorFunc func(ctx context.Context, history []core.Turn, text string) (*llm.Reply, error)

func (f generatorFunc) Generate(ctx context.Context, history []core.Turn, text string) (*llm.Reply, error) {
	return f(ctx, history, text)
}

type synthesizerFunc func(ctx context.Context, text string) (*tts.Speech, error)

func (f synthesizerFunc) Synthesize(ctx context.Context, text string) (*tts.Speech, error) {
	return f(ctx, text)
}

func (f synthesizerFunc) SynthesizeVoice(ctx context.Context, text, voice string) (*tts.Speech, error) {
	return f(ctx, text)
}

type fixture struct {
	srv   *httptest.Server
	store *session.MemoryStore
	audio *audiostore.MemoryStore
	fb    *fallback.Fallback
}

type fixtureOpts struct {
	transcriber transcriberFunc
	generator   generatorFunc
	synthesizer synthesizerFunc
	checks      []HealthCheck
	maxUpload   int64
	withClip    bool
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	if opts.transcriber == nil {
		opts.transcriber = func(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error) {
			return &stt.Transcript{Text: "hello", Provider: "fake-stt"}, nil
		}
	}
	if opts.generator == nil {
		opts.generator = func(ctx context.Context, history []core.Turn, text string) (*llm.Reply, error) {
			return &llm.Reply{Text: "Hi! How can I help?", Provider: "fake-llm"}, nil
		}
	}
	if opts.synthesizer == nil {
		opts.synthesizer = func(ctx context.Context, text string) (*tts.Speech, error) {
			return &tts.Speech{Audio: core.AudioRef{URL: "/audio/reply-1", MimeType: core.MimeMP3}, Provider: "fake-tts"}, nil
		}
	}

	logger := core.NewNopLogger()
	store := session.NewMemoryStore(0)
	clips := audiostore.NewMemoryStore(0, 0)
	fb := fallback.New(fallback.Config{}, logger)
	if opts.withClip {
		err := fb.Presynthesize(context.Background(), clips, "sorry", func(ctx context.Context, text string) (*core.SynthesizedAudio, error) {
			return &core.SynthesizedAudio{Data: []byte("ID3-apology"), MimeType: core.MimeMP3}, nil
		})
		if err != nil {
			t.Fatalf("Presynthesize: %v", err)
		}
	}
	orch := orchestrator.New(store, opts.transcriber, opts.generator, opts.synthesizer, fb, orchestrator.WithLogger(logger))

	h := &Handler{
		Orchestrator:   orch,
		Audio:          clips,
		Speech:         opts.synthesizer,
		Fallback:       fb,
		HealthChecks:   opts.checks,
		MaxUploadBytes: opts.maxUpload,
		Logger:         logger,
	}
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, audio: clips, fb: fb}
}

func multipartBody(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "recording.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postChat(t *testing.T, f *fixture, key, field string, size int) (int, map[string]any) {
	t.Helper()
	body, contentType := multipartBody(t, field, make([]byte, size))
	resp, err := http.Post(f.srv.URL+"/agent/chat/"+key, contentType, body)
	if err != nil {
		t.Fatalf("POST chat: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := sonic.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return out
}

func historyLen(t *testing.T, store session.Store, key string) int {
	t.Helper()
	sess, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess == nil {
		return 0
	}
	return len(sess.Turns)
}

func TestChatSuccess(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	status, body := postChat(t, f, "s1", "audio_file", 4000)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if body["user_message"] != "hello" || body["ai_response"] != "Hi! How can I help?" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["audio_url"] != "/audio/reply-1" {
		t.Fatalf("audio_url = %v", body["audio_url"])
	}
	if n := historyLen(t, f.store, "s1"); n != 1 {
		t.Fatalf("history = %d, want 1", n)
	}
}

func TestChatUsesRequestedTurnID(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	const id = "6f1c2a4e-8d1b-4c52-9a43-2f0d6b7e9c10"

	for _, tt := range []struct {
		header string
		reuse  bool
	}{
		{header: id, reuse: true},
		{header: "not-a-uuid", reuse: false},
	} {
		body, contentType := multipartBody(t, "audio_file", make([]byte, 4000))
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/agent/chat/s1", body)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(protocol.TurnIDHeader, tt.header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST chat: %v", err)
		}
		got := decode(t, resp.Body)
		resp.Body.Close()
		turnID, _ := got["turn_id"].(string)
		if (turnID == tt.header) != tt.reuse || turnID == "" {
			t.Fatalf("header %q gave turn_id %q", tt.header, turnID)
		}
	}
}

func TestChatAcceptsAudioField(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	status, _ := postChat(t, f, "s1", "audio", 4000)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
}

func TestChatPartialWithoutClip(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		synthesizer: func(ctx context.Context, text string) (*tts.Speech, error) {
			return nil, core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, errors.New("boom"))
		},
	})

	status, body := postChat(t, f, "s1", "audio_file", 4000)
	if status != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", status)
	}
	if _, ok := body["audio_url"]; ok {
		t.Fatalf("partial reply without a clip must not carry audio_url: %v", body)
	}
	if body["ai_response"] != "Hi! How can I help?" {
		t.Fatalf("ai_response = %v", body["ai_response"])
	}
	if n := historyLen(t, f.store, "s1"); n != 1 {
		t.Fatalf("history = %d, want 1", n)
	}
}

func TestChatPartialWithClip(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		withClip: true,
		synthesizer: func(ctx context.Context, text string) (*tts.Speech, error) {
			return nil, errors.New("tts down")
		},
	})

	status, body := postChat(t, f, "s1", "audio_file", 4000)
	if status != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", status)
	}
	if body["audio_url"] != "/audio/"+fallback.ApologyClipID {
		t.Fatalf("audio_url = %v", body["audio_url"])
	}
}

func TestChatErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		stt    transcriberFunc
		llm    generatorFunc
		status int
		msg    string
	}{
		{
			name:   "too short",
			size:   10,
			status: http.StatusBadRequest,
			msg:    fallback.DefaultMessages().RecordingTooShort,
		},
		{
			name: "empty transcript",
			size: 4000,
			stt: func(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error) {
				return &stt.Transcript{Provider: "fake-stt"}, nil
			},
			status: http.StatusUnprocessableEntity,
			msg:    fallback.DefaultMessages().EmptyTranscript,
		},
		{
			name: "unsupported audio",
			size: 4000,
			stt: func(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error) {
				return nil, core.NewStageError(core.StageTranscribe, core.KindUnsupportedAudio, errors.New("bad codec"))
			},
			status: http.StatusUnsupportedMediaType,
			msg:    fallback.DefaultMessages().UnsupportedAudio,
		},
		{
			name: "llm rate limited",
			size: 4000,
			llm: func(ctx context.Context, history []core.Turn, text string) (*llm.Reply, error) {
				return nil, core.NewStageError(core.StageGenerate, core.KindRateLimited, errors.New("429"))
			},
			status: http.StatusTooManyRequests,
			msg:    fallback.DefaultMessages().LLMError,
		},
		{
			name: "llm unavailable",
			size: 4000,
			llm: func(ctx context.Context, history []core.Turn, text string) (*llm.Reply, error) {
				return nil, errors.New("connection refused")
			},
			status: http.StatusServiceUnavailable,
			msg:    fallback.DefaultMessages().LLMError,
		},
		{
			name: "stt timeout",
			size: 4000,
			stt: func(ctx context.Context, p core.AudioPayload) (*stt.Transcript, error) {
				return nil, core.NewStageError(core.StageTranscribe, core.KindTimeout, context.DeadlineExceeded)
			},
			status: http.StatusGatewayTimeout,
			msg:    fallback.DefaultMessages().STTError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{transcriber: tt.stt, generator: tt.llm})
			status, body := postChat(t, f, "s1", "audio_file", tt.size)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.status, body)
			}
			if body["fallback_message"] != tt.msg {
				t.Fatalf("fallback_message = %v, want %q", body["fallback_message"], tt.msg)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Fatal("missing error field")
			}
			if n := historyLen(t, f.store, "s1"); n != 0 {
				t.Fatalf("history = %d, want 0", n)
			}
		})
	}
}

func TestChatMissingFileIsTooShort(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no audio here")
	_ = mw.Close()
	resp, err := http.Post(f.srv.URL+"/agent/chat/s1", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatNotMultipart(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	resp, err := http.Post(f.srv.URL+"/agent/chat/s1", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatBodyTooLarge(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxUpload: 2048})
	status, _ := postChat(t, f, "s1", "audio_file", 8192)
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", status)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	resp, err := http.Get(f.srv.URL + "/agent/history/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body := decode(t, resp.Body)
	resp.Body.Close()
	if body["status"] != "new_session" {
		t.Fatalf("status = %v, want new_session", body["status"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 0 {
		t.Fatalf("messages = %v, want empty", msgs)
	}

	postChat(t, f, "s1", "audio_file", 4000)

	resp, err = http.Get(f.srv.URL + "/agent/history/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body = decode(t, resp.Body)
	resp.Body.Close()
	if body["status"] != "success" || body["session_id"] != "s1" {
		t.Fatalf("unexpected body %v", body)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["role"] != "user" || first["content"] != "hello" {
		t.Fatalf("first message = %v", first)
	}
	if second["role"] != "assistant" || second["content"] != "Hi! How can I help?" {
		t.Fatalf("second message = %v", second)
	}
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	resp, err := http.Post(f.srv.URL+"/agent/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST session: %v", err)
	}
	body := decode(t, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	key, _ := body["session_id"].(string)
	if key == "" {
		t.Fatal("empty session_id")
	}

	postChat(t, f, key, "audio_file", 4000)

	resp, err = http.Post(f.srv.URL+"/agent/session/"+key+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reset: %v", err)
	}
	body = decode(t, resp.Body)
	resp.Body.Close()
	next, _ := body["session_id"].(string)
	if next == "" || next == key {
		t.Fatalf("reset returned %q for %q", next, key)
	}
	if body["previous_session_id"] != key {
		t.Fatalf("previous_session_id = %v", body["previous_session_id"])
	}
	if n := historyLen(t, f.store, next); n != 0 {
		t.Fatalf("new session history = %d, want 0", n)
	}
}

func TestGenerateAudio(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	resp, err := http.Post(f.srv.URL+"/generate-audio", "application/json", strings.NewReader(`{"text":"Good morning","voice_id":"v1"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	body := decode(t, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["audio_url"] != "/audio/reply-1" {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}

	resp, err = http.Post(f.srv.URL+"/generate-audio", "application/json", strings.NewReader(`{"text":"  "}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank text status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateAudioFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		synthesizer: func(ctx context.Context, text string) (*tts.Speech, error) {
			return nil, core.NewStageError(core.StageSynthesize, core.KindUpstreamUnavailable, errors.New("down"))
		},
	})

	resp, err := http.Post(f.srv.URL+"/generate-audio", "application/json", strings.NewReader(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	body := decode(t, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body["fallback_message"] != fallback.DefaultMessages().TTSError {
		t.Fatalf("fallback_message = %v", body["fallback_message"])
	}
}

func TestServeAudio(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id, err := f.audio.Put(context.Background(), []byte("mp3-bytes"), core.MimeMP3)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	resp, err := http.Get(f.srv.URL + audiostore.URLFor("/audio", id))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(data) != "mp3-bytes" {
		t.Fatalf("status %d body %q", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != core.MimeMP3 {
		t.Fatalf("Content-Type = %q", ct)
	}

	resp, err = http.Get(f.srv.URL + "/audio/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing clip status = %d, want 404", resp.StatusCode)
	}
}

func TestServeAudioWithoutStore(t *testing.T) {
	h := &Handler{Logger: core.NewNopLogger()}
	srv := httptest.NewServer(NewRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/audio/any")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks []HealthCheck
		status int
		want   string
	}{
		{
			name:   "all ok",
			checks: []HealthCheck{{Name: "stt", Critical: true, Check: ok}, {Name: "tts", Check: ok}},
			status: http.StatusOK,
			want:   HealthHealthy,
		},
		{
			name:   "tts down",
			checks: []HealthCheck{{Name: "stt", Critical: true, Check: ok}, {Name: "tts", Check: down}},
			status: http.StatusOK,
			want:   HealthDegraded,
		},
		{
			name:   "llm down",
			checks: []HealthCheck{{Name: "llm", Critical: true, Check: down}, {Name: "tts", Check: down}},
			status: http.StatusServiceUnavailable,
			want:   HealthUnhealthy,
		},
		{
			name: "stt not configured",
			checks: []HealthCheck{{Name: "stt", Critical: true, Check: func(ctx context.Context) error {
				return core.ErrNotConfigured
			}}},
			status: http.StatusServiceUnavailable,
			want:   HealthUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{checks: tt.checks})
			resp, err := http.Get(f.srv.URL + "/health")
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			body := decode(t, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != tt.status || body["status"] != tt.want {
				t.Fatalf("got %d %v, want %d %s", resp.StatusCode, body["status"], tt.status, tt.want)
			}
		})
	}
}

func TestStatusForKind(t *testing.T) {
	cases := map[core.ErrorKind]int{
		core.KindRecordingTooShort:   400,
		core.KindUnsupportedAudio:    415,
		core.KindEmptyInput:          422,
		core.KindRateLimited:         429,
		core.KindUpstreamUnavailable: 503,
		core.KindTimeout:             504,
		core.KindInternal:            500,
		core.KindUserCancelled:       500,
	}
	for kind, want := range cases {
		if got := StatusForKind(kind); got != want {
			t.Errorf("StatusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}
