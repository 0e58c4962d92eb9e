package factories

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/core"
	"voiceagent/session"
	openaillm "voiceagent/services/openai/llm"
)

func TestSettingsDefaultToOpenAI(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{}`))
	if err != nil {
		t.Fatalf("SettingsConfigFromJSON: %v", err)
	}
	if cfg.Pipeline.STT.ServiceConfig.OpenAIConfig == nil ||
		cfg.Pipeline.LLM.ServiceConfig.OpenAIConfig == nil ||
		cfg.Pipeline.TTS.ServiceConfig.OpenAIConfig == nil {
		t.Fatalf("expected openai for every stage: %+v", cfg.Pipeline)
	}
	if cfg.Server.Addr != ":8000" || cfg.Storage.Sessions.Driver != session.StoreTypeMemory {
		t.Fatalf("defaults lost: addr=%q driver=%q", cfg.Server.Addr, cfg.Storage.Sessions.Driver)
	}
	if cfg.Pipeline.LLM.HandlerConfig.HistoryTurns != 3 {
		t.Fatalf("history turns = %d", cfg.Pipeline.LLM.HandlerConfig.HistoryTurns)
	}
}

func TestSettingsSelectProvider(t *testing.T) {
	data := `{
		"server": {"addr": ":9000", "shutdown_timeout": "3s", "read_header_timeout": 2500},
		"pipeline": {
			"stt": {"service": {"deepgram": {"model": "nova-3"}}},
			"llm": {
				"handler": {"history_turns": 5},
				"service": {"gemini": {"model": "gemini-2.0-flash"}},
				"fallbacks": [{"groq": {}}]
			},
			"tts": {"service": {"murf": {"voice_id": "en-US-ken"}}}
		},
		"storage": {"sessions": {"driver": "redis", "ttl": "1h"}}
	}`
	cfg, err := SettingsConfigFromJSON([]byte(data))
	if err != nil {
		t.Fatalf("SettingsConfigFromJSON: %v", err)
	}
	p := cfg.Pipeline
	if p.STT.ServiceConfig.DeepgramConfig == nil || p.STT.ServiceConfig.OpenAIConfig != nil {
		t.Fatalf("stt = %+v", p.STT.ServiceConfig)
	}
	if p.LLM.ServiceConfig.GeminiConfig == nil || p.LLM.ServiceConfig.GeminiConfig.Model != "gemini-2.0-flash" {
		t.Fatalf("llm = %+v", p.LLM.ServiceConfig)
	}
	if p.LLM.HandlerConfig.HistoryTurns != 5 || p.LLM.HandlerConfig.SystemPrompt == "" {
		t.Fatalf("llm handler = %+v", p.LLM.HandlerConfig)
	}
	if len(p.LLM.FallbackServiceConfigs) != 1 || p.LLM.FallbackServiceConfigs[0].GroqConfig == nil {
		t.Fatalf("llm fallbacks = %+v", p.LLM.FallbackServiceConfigs)
	}
	if p.TTS.ServiceConfig.MurfConfig == nil || p.TTS.ServiceConfig.MurfConfig.VoiceID != "en-US-ken" {
		t.Fatalf("tts = %+v", p.TTS.ServiceConfig)
	}
	if cfg.Server.ShutdownTimeout.Std() != 3*time.Second || cfg.Server.ReadHeaderTimeout.Std() != 2500*time.Millisecond {
		t.Fatalf("timeouts = %v %v", cfg.Server.ShutdownTimeout.Std(), cfg.Server.ReadHeaderTimeout.Std())
	}
	if cfg.Storage.Sessions.TTL.Std() != time.Hour || cfg.Storage.Sessions.Driver != session.StoreTypeRedis {
		t.Fatalf("storage = %+v", cfg.Storage.Sessions)
	}
}

func TestSettingsRejectInvalid(t *testing.T) {
	cases := map[string]string{
		"two providers":  `{"pipeline": {"llm": {"service": {"openai": {}, "gemini": {}}}}}`,
		"unknown driver": `{"storage": {"sessions": {"driver": "sqlite"}}}`,
		"bad duration":   `{"server": {"shutdown_timeout": "soon"}}`,
		"not json":       `{`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := SettingsConfigFromJSON([]byte(data)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSettingsFromFileFallsBack(t *testing.T) {
	cfg, err := SettingsConfigFromFile(t.TempDir() + "/missing.json")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if cfg.Pipeline.LLM.ServiceConfig.OpenAIConfig == nil {
		t.Fatal("defaults should still be returned")
	}
}

func TestInjectAPIKeys(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.LLM.ServiceConfig.OpenAIConfig = &openaillm.Config{APIKey: "explicit"}
	cfg.LLM.FallbackServiceConfigs = []LLMFactoryConfig{{DeepSeekConfig: &openaillm.Config{}}}
	cfg.applyDefaultProviders()

	cfg.InjectAPIKeys(APIKeys{OpenAI: "env-openai", DeepSeek: "env-deepseek"})

	if got := cfg.LLM.ServiceConfig.OpenAIConfig.APIKey; got != "explicit" {
		t.Fatalf("explicit key overwritten: %q", got)
	}
	if got := cfg.LLM.FallbackServiceConfigs[0].DeepSeekConfig.APIKey; got != "env-deepseek" {
		t.Fatalf("fallback key = %q", got)
	}
	if got := cfg.STT.ServiceConfig.OpenAIConfig.APIKey; got != "env-openai" {
		t.Fatalf("stt key = %q", got)
	}
}

func TestBuildLLMServiceCompatibleDefaults(t *testing.T) {
	svc, err := BuildLLMService(LLMFactoryConfig{GroqConfig: &openaillm.Config{}}, core.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildLLMService: %v", err)
	}
	if svc.Name() != "groq" {
		t.Fatalf("name = %q", svc.Name())
	}
	if _, err := BuildLLMService(LLMFactoryConfig{}, nil); err == nil {
		t.Fatal("expected an error without a provider")
	}
}

func TestBuildServerWithoutKeys(t *testing.T) {
	settings := DefaultSettingsConfig()
	ctx := context.Background()
	srv, err := BuildServer(ctx, settings, APIKeys{}, ServerOptions{Logger: core.NewNopLogger()})
	if err != nil {
		t.Fatalf("BuildServer: %v", err)
	}
	defer srv.Close(ctx)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "unhealthy" || body.Services["stt"] != "not_configured" || body.Services["session_store"] != "ok" {
		t.Fatalf("health = %+v", body)
	}

	resp, err = http.Post(ts.URL+"/agent/session", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("new session status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
