package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"voiceagent/core"
	"voiceagent/factories"
)

func main() {
	var (
		settingsPath string
		addr         string
	)
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json (overrides SETTINGS_PATH)")
	flag.StringVar(&addr, "addr", "", "listen address (overrides settings and PORT)")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}
	core.SetLogger(*core.NewLoggerFromEnv())
	logger := core.GetLogger().With(map[string]any{"component": "server"})

	if settingsPath == "" {
		settingsPath = getEnv("SETTINGS_PATH", "./settings.json")
	}
	settings := loadSettings(settingsPath, logger)
	settings.Storage.RedisURL = getEnv("REDIS_URL", "")
	settings.Storage.DatabaseURL = getEnv("DATABASE_URL", "")
	switch {
	case addr != "":
		settings.Server.Addr = addr
	case os.Getenv("PORT") != "":
		settings.Server.Addr = ":" + strconv.Itoa(getEnvAsInt("PORT", 8000))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := factories.BuildServer(ctx, settings, loadAPIKeys(), factories.ServerOptions{
		LogDir: getEnv("LOG_DIR", ""),
		Logger: core.GetLogger(),
	})
	if err != nil {
		logger.With(map[string]any{"error": err}).Fatal("failed to build server")
	}

	httpServer := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           srv.Handler,
		ReadHeaderTimeout: settings.Server.ReadHeaderTimeout.Std(),
	}
	go func() {
		logger.With(map[string]any{"addr": httpServer.Addr}).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.With(map[string]any{"error": err}).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout.Std())
	defer cancel()
	// Close the hub first so open event streams do not hold Shutdown open.
	srv.Hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("http shutdown incomplete")
	}
	if err := srv.Close(shutdownCtx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("cleanup incomplete")
	}
}

// loadSettings reads settings from SETTINGS_JSON_B64 when set, otherwise
// from path. Unreadable settings fall back to defaults.
func loadSettings(path string, logger *core.Logger) factories.SettingsConfig {
	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			logger.With(map[string]any{"error": err}).Error("failed to decode SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig()
		}
		settings, err := factories.SettingsConfigFromJSON(data)
		if err != nil {
			logger.With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig()
		}
		logger.Info("loaded settings from SETTINGS_JSON_B64")
		return settings
	}
	settings, err := factories.SettingsConfigFromFile(path)
	if err != nil {
		logger.With(map[string]any{"path": path, "error": err}).Warn("failed to load settings, using defaults")
		return factories.DefaultSettingsConfig()
	}
	return settings
}

func loadAPIKeys() factories.APIKeys {
	return factories.APIKeys{
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Gemini:     getEnv("GEMINI_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		DeepSeek:   getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Deepgram:   getEnv("DEEPGRAM_API_KEY", ""),
		ElevenLabs: getEnv("ELEVENLABS_API_KEY", ""),
		Murf:       getEnv("MURF_API_KEY", ""),
	}
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
