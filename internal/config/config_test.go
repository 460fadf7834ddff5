package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "APP_ENV", "ALLOWED_ORIGINS", "USE_MOCK_PROVIDERS", "DEFAULT_LANGUAGE",
		"STORAGE_BACKEND", "MONGODB_URI", "MEMORY_SERVER_URL", "GEMINI_API_KEY",
		"ELEVEN_LABS_API_KEY", "SESSION_CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load(zaptest.NewLogger(t))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.True(t, cfg.UseMockProviders)
	assert.Equal(t, "en-IN", cfg.DefaultLanguage)
	assert.Equal(t, "en-IN", cfg.Speech.DefaultLanguage)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, "voice-journal", cfg.MemoryServer.Namespace)
	assert.Empty(t, cfg.MemoryServer.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.SessionCleanupInterval)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "development")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("STORAGE_BACKEND", "Mongo")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "5m")

	cfg := Load(zaptest.NewLogger(t))

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.UseMockProviders)
	assert.Equal(t, "key", cfg.Gemini.APIKey)
	assert.Equal(t, StorageMongo, cfg.StorageBackend)
	assert.Equal(t, 5*time.Minute, cfg.SessionCleanupInterval)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("USE_MOCK_PROVIDERS", "maybe")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "soon")

	cfg := Load(zaptest.NewLogger(t))

	assert.False(t, cfg.UseMockProviders)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 30*time.Minute, cfg.SessionCleanupInterval)

	t.Setenv("USE_MOCK_PROVIDERS", "true")
	assert.True(t, Load(zaptest.NewLogger(t)).UseMockProviders)
}
