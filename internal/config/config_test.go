package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("STORE_BASE_URL", "http://store.example:8080/store/")
	t.Setenv("SESSION_USERNAME", "alice")
	t.Setenv("SESSION_KEY", "c2VjcmV0")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://store.example:8080/store/", cfg.Store.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.TickInterval)
	assert.Equal(t, 40, cfg.Store.ThumbnailSize)
	assert.Equal(t, "chrome", cfg.Browser.Mode)
	assert.False(t, cfg.Mongo.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Workers.PoolSize)
	assert.Equal(t, 2, cfg.Workers.ImagePoolSize)
	assert.Equal(t, 8<<20, cfg.Store.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, cfg.Browser.Timeout)

	key, err := cfg.Session.SessionKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), key)
}

func TestLoadRequiresPinnedCAForHTTPS(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BASE_URL", "https://store.example/")

	_, err := Load()
	assert.ErrorContains(t, err, "pinned CA")

	t.Setenv("STORE_CA_PEM", "-----BEGIN CERTIFICATE-----")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("BROWSER_MODE", "firefox")

	_, err := Load()
	assert.ErrorContains(t, err, "validate config")
}

func TestLoadRejectsZeroBrowserTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("BROWSER_TIMEOUT", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "Timeout")
}

func TestLoadJournalKeyRequiredWithMongo(t *testing.T) {
	setRequired(t)
	t.Setenv("MONGO_ENABLED", "true")

	_, err := Load()
	assert.ErrorContains(t, err, "token key")
}

func TestLoadCORSOrigin(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_CORS_ORIGIN", "^https://ui\\.example$")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, `^https://ui\.example$`, cfg.Server.CORSOrigin)

	t.Setenv("SERVER_CORS_ORIGIN", "([")
	_, err = Load()
	assert.ErrorContains(t, err, "cors origin")
}
