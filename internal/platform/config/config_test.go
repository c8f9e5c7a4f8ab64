package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"NOMINATIM_HOST": "https://nominatim.example.org/",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3125", cfg.Server.Addr())
	assert.Equal(t, DefaultABSCHURL, cfg.Registry.URL)
	assert.Equal(t, "https://nominatim.example.org", cfg.Geocoder.Host, "trailing slash trimmed")
	assert.Equal(t, "nagoya-api", cfg.Geocoder.UserAgent)
	assert.Equal(t, 1.0, cfg.Geocoder.RateLimit)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Zero(t, cfg.Cache.MaxStaleness)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"SERVER_HOST":          "127.0.0.1",
		"SERVER_PORT":          "8080",
		"NOMINATIM_HOST":       "http://localhost:8088",
		"NOMINATIM_RATE_LIMIT": "5",
		"CACHE_TTL":            "10",
		"CACHE_MAX_STALENESS":  "3600",
		"UPSTREAM_TIMEOUT":     "3",
		"LOG_LEVEL":            "DEBUG",
		"LOG_FORMAT":           "text",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 5.0, cfg.Geocoder.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
	assert.Equal(t, time.Hour, cfg.Cache.MaxStaleness)
	assert.Equal(t, 3*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestFromEnv_ReportsAllProblems(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		"SERVER_PORT": "70000",
		"CACHE_TTL":   "soon",
		"LOG_FORMAT":  "xml",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "SERVER_PORT")
	assert.Contains(t, msg, "CACHE_TTL")
	assert.Contains(t, msg, "NOMINATIM_HOST is required")
	assert.Contains(t, msg, "LOG_FORMAT")
}

func TestFromEnv_RejectsBadURLs(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		"NOMINATIM_HOST": "nominatim.local",
		"ABSCH_URL":      "ftp://api.cbd.int/",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOMINATIM_HOST")
	assert.Contains(t, err.Error(), "ABSCH_URL")
}
