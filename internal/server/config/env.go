package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "TRAINLOG_"

// parseEnv overlays values from TRAINLOG_* environment variables. When
// loadDotEnv is set, a .env file in the working directory is read first; a
// missing file is not an error. Variables already present in the process
// environment take precedence over .env entries.
func parseEnv(c *Config, loadDotEnv bool) error {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	setString(&c.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&c.EndpointAddrGRPC, "GRPC_ADDR")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	setString(&c.SecretKey, "JWT_SECRET")
	setString(&c.S3RootUser, "S3_USER")
	setString(&c.S3RootPassword, "S3_PASSWORD")
	setString(&c.S3Bucket, "S3_BUCKET")
	setString(&c.S3Region, "S3_REGION")
	setString(&c.S3BaseEndpoint, "S3_ENDPOINT")
	setString(&c.ResendAPIKey, "RESEND_API_KEY")
	setString(&c.MailFrom, "MAIL_FROM")
	setString(&c.AppURL, "APP_URL")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSAllowedOrigins = splitList(v)
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL"},
		{&c.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL"},
		{&c.ResetTokenValidityDuration, "RESET_TOKEN_TTL"},
		{&c.UploadURLValidityDuration, "UPLOAD_URL_TTL"},
	}
	for _, d := range durations {
		if v, ok := lookup(d.key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, d.key, err)
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&c.PasswordMinLength, "PASSWORD_MIN_LENGTH"},
		{&c.PasswordMaxLength, "PASSWORD_MAX_LENGTH"},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, i.key, err)
			}
			*i.dst = parsed
		}
	}

	bools := []struct {
		dst *bool
		key string
	}{
		{&c.PasswordRequireUppercase, "PASSWORD_REQUIRE_UPPERCASE"},
		{&c.PasswordRequireLowercase, "PASSWORD_REQUIRE_LOWERCASE"},
		{&c.PasswordRequireNumber, "PASSWORD_REQUIRE_NUMBER"},
		{&c.PasswordRequireSpecial, "PASSWORD_REQUIRE_SPECIAL"},
		{&c.RateLimitEnabled, "RATE_LIMIT_ENABLED"},
	}
	for _, b := range bools {
		if v, ok := lookup(b.key); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, b.key, err)
			}
			*b.dst = parsed
		}
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
