// Package config loads the server configuration from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/voicejournal/adapters/llm"
	"github.com/satriahrh/voicejournal/adapters/memoryserver"
	"github.com/satriahrh/voicejournal/adapters/mongo"
	"github.com/satriahrh/voicejournal/adapters/stt"
	"github.com/satriahrh/voicejournal/adapters/tts"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config is the complete server configuration
type Config struct {
	Port           string
	AppEnv         string
	AllowedOrigins []string

	// UseMockProviders replaces the LLM, speech and synthesis vendors with offline mocks
	UseMockProviders bool
	DefaultLanguage  string

	StorageBackend string
	Mongo          mongo.Config

	// MemoryServer.BaseURL empty keeps memories in process
	MemoryServer memoryserver.Config

	Gemini     llm.GeminiConfig
	ElevenLabs tts.ElevenLabsConfig
	Speech     stt.GoogleConfig

	SessionCleanupInterval time.Duration
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads the configuration. A missing .env file is not an error.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AppEnv:          getEnv("APP_ENV", "production"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en-IN"),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
		Mongo: mongo.Config{
			URI:      os.Getenv("MONGODB_URI"),
			Database: os.Getenv("MONGODB_DATABASE"),
		},
		MemoryServer: memoryserver.Config{
			BaseURL:   os.Getenv("MEMORY_SERVER_URL"),
			Namespace: getEnv("MEMORY_NAMESPACE", "voice-journal"),
		},
		Gemini:     llm.NewGeminiConfigFromEnv(),
		ElevenLabs: tts.NewElevenLabsConfigFromEnv(),
		Speech: stt.GoogleConfig{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		SessionCleanupInterval: getDuration(logger, "SESSION_CLEANUP_INTERVAL", 30*time.Minute),
	}
	cfg.Speech.DefaultLanguage = cfg.DefaultLanguage

	noVendorKeys := cfg.Gemini.APIKey == "" && cfg.ElevenLabs.APIKey == ""
	cfg.UseMockProviders = getBool(logger, "USE_MOCK_PROVIDERS", noVendorKeys)

	if cfg.StorageBackend != StorageMemory && cfg.StorageBackend != StorageMongo {
		logger.Warn("Unknown storage backend, using memory", zap.String("storageBackend", cfg.StorageBackend))
		cfg.StorageBackend = StorageMemory
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(logger *zap.Logger, key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("Invalid boolean, using default", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return value
}

func getDuration(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		logger.Warn("Invalid duration, using default", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
