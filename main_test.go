package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"voiceagent/core"
)

func TestLoadSettingsFromBase64(t *testing.T) {
	raw := `{"server": {"addr": ":9100"}, "pipeline": {"llm": {"service": {"gemini": {}}}}}`
	t.Setenv("SETTINGS_JSON_B64", base64.StdEncoding.EncodeToString([]byte(raw)))

	settings := loadSettings("unused.json", core.NewNopLogger())
	if settings.Server.Addr != ":9100" || settings.Pipeline.LLM.ServiceConfig.GeminiConfig == nil {
		t.Fatalf("settings = %+v", settings.Server)
	}
}

func TestLoadSettingsFallsBackToDefaults(t *testing.T) {
	t.Setenv("SETTINGS_JSON_B64", "")
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"pipeline": {"llm": {"service": {"openai": {}, "gemini": {}}}}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	settings := loadSettings(path, core.NewNopLogger())
	if settings.Server.Addr != ":8000" || settings.Pipeline.LLM.ServiceConfig.GeminiConfig != nil {
		t.Fatalf("expected defaults, got %+v", settings.Server)
	}
}

func TestLoadAPIKeysAndEnvHelpers(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("MURF_API_KEY", "murf-test")
	t.Setenv("PORT", "not-a-number")

	keys := loadAPIKeys()
	if keys.Groq != "gsk-test" || keys.Murf != "murf-test" {
		t.Fatalf("keys = %+v", keys)
	}
	if got := getEnvAsInt("PORT", 8000); got != 8000 {
		t.Fatalf("getEnvAsInt = %d", got)
	}
}
