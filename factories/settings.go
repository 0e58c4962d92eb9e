package factories

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/obs"
	"voiceagent/transports/httpapi"
)

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr"`
	// MaxUploadBytes bounds a single chat upload; larger bodies get 413.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	// AllowedOrigins lists origins allowed to open the events WebSocket.
	// "*" accepts any origin. Empty means same-origin only.
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	ReadHeaderTimeout Duration `json:"read_header_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
	MetricsNamespace  string   `json:"metrics_namespace"`
	// DisableMetrics hides /metrics.
	DisableMetrics bool `json:"disable_metrics,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Server        ServerConfig   `json:"server"`
	Pipeline      PipelineConfig `json:"pipeline"`
	Storage       StorageConfig  `json:"storage"`
	Observability obs.Options    `json:"observability"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults and
// OpenAI for every stage.
func DefaultSettingsConfig() SettingsConfig {
	cfg := defaultSettings()
	cfg.Pipeline.applyDefaultProviders()
	return cfg
}

func defaultSettings() SettingsConfig {
	return SettingsConfig{
		Server: ServerConfig{
			Addr:              ":8000",
			MaxUploadBytes:    httpapi.DefaultMaxUploadBytes,
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(10 * time.Second),
			MetricsNamespace:  "voiceagent",
		},
		Pipeline:      DefaultPipelineConfig(),
		Storage:       DefaultStorageConfig(),
		Observability: obs.Options{ServiceName: "voiceagent", Exporter: obs.ExporterNone},
	}
}

// SettingsConfigFromJSON parses a JSON blob over the defaults, so absent
// fields keep their default values. Each stage must name at most one
// provider; a stage that names none uses OpenAI.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := defaultSettings()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.Pipeline.applyDefaultProviders()
	if err := cfg.Validate(); err != nil {
		return SettingsConfig{}, err
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// Validate reports configuration that cannot be built.
func (c SettingsConfig) Validate() error {
	var errs []error
	p := c.Pipeline
	check := func(stage string, sets ...bool) {
		if err := exactlyOne(stage, sets...); err != nil {
			errs = append(errs, err)
		}
	}
	check("stt", p.STT.ServiceConfig.OpenAIConfig != nil, p.STT.ServiceConfig.DeepgramConfig != nil)
	check("llm", p.LLM.ServiceConfig.OpenAIConfig != nil, p.LLM.ServiceConfig.GeminiConfig != nil,
		p.LLM.ServiceConfig.GroqConfig != nil, p.LLM.ServiceConfig.TogetherConfig != nil,
		p.LLM.ServiceConfig.DeepSeekConfig != nil, p.LLM.ServiceConfig.OpenRouterConfig != nil)
	check("tts", p.TTS.ServiceConfig.OpenAIConfig != nil, p.TTS.ServiceConfig.ElevenLabsConfig != nil,
		p.TTS.ServiceConfig.MurfConfig != nil)
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("settings: server.max_upload_bytes must not be negative"))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// exactlyOne fails unless exactly one of sets is true.
func exactlyOne(component string, sets ...bool) error {
	n := 0
	for _, s := range sets {
		if s {
			n++
		}
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%s: no provider config specified", component)
	default:
		return fmt.Errorf("%s: %d provider configs specified, want exactly one", component, n)
	}
}

// Duration is a time.Duration read from JSON as a Go duration string
// ("1.5s") or as integer milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := sonic.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := sonic.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration: want string or milliseconds, got %s", data)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}
