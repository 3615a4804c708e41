package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "identity-store", cfg.AppName)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "identity", cfg.MongoDatabase)
	assert.Equal(t, "users", cfg.UsersCollection)
	assert.Equal(t, "roles", cfg.RolesCollection)
	assert.Equal(t, 5, cfg.MaxAccessFailed)
	assert.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_DATABASE", "identity_test")
	t.Setenv("MAX_ACCESS_FAILED", "3")
	t.Setenv("LOCKOUT_WINDOW", "5m")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()

	assert.Equal(t, "identity_test", cfg.MongoDatabase)
	assert.Equal(t, 3, cfg.MaxAccessFailed)
	assert.Equal(t, 5*time.Minute, cfg.LockoutWindow)
	assert.True(t, cfg.CookieSecure)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_ACCESS_FAILED", "lots")
	t.Setenv("LOCKOUT_WINDOW", "soon")
	t.Setenv("COOKIE_SECURE", "yep")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxAccessFailed)
	assert.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	assert.False(t, cfg.CookieSecure)
}

func TestSplitLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ELASTICSEARCH_ADDRS", "http://es1:9200,http://es2:9200")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.ESAddrs())
}
