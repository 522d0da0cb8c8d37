package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"endpoint_addr_http":              "www.example:8000",
		"endpoint_addr_grpc":              "www.example:9000",
		"database_dsn":                    "trainlog-db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"reset_token_validity_duration":   "30m",
		"upload_url_validity_duration":    300000000000,
		"password_min_length":             10,
		"password_require_special":        false,
		"rate_limit_enabled":              false,
		"cors_allowed_origins":            []string{"https://app.example"},
		"s3_bucket":                       "bucket",
		"resend_api_key":                  "re_123",
		"app_url":                         "https://app.example",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", full}))

		assert.Equal(t, "www.example:8000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "trainlog-db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 30*time.Minute, cfg.ResetTokenValidityDuration)
		assert.Equal(t, 5*time.Minute, cfg.UploadURLValidityDuration)
		assert.Equal(t, 10, cfg.PasswordMinLength)
		assert.False(t, cfg.PasswordRequireSpecial)
		assert.True(t, cfg.PasswordRequireUppercase, "absent bool keeps default")
		assert.False(t, cfg.RateLimitEnabled)
		assert.Equal(t, []string{"https://app.example"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "us-east-1", cfg.S3Region, "absent string keeps default")
		assert.Equal(t, "re_123", cfg.ResendAPIKey)
		assert.Equal(t, "https://app.example", cfg.AppURL)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg

		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Empty(t, cmp.Diff(want, *cfg))
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		err := parseJson(&Config{}, []string{"-c", bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}
