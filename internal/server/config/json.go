package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/trainlog/internal/flagx"
	"github.com/dmitrijs2005/trainlog/internal/timex"
)

// JsonConfig is the on-disk shape of the server config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from an explicit false or zero.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	UploadURLValidityDuration    timex.Duration `json:"upload_url_validity_duration"`

	PasswordMinLength        int   `json:"password_min_length"`
	PasswordMaxLength        int   `json:"password_max_length"`
	PasswordRequireUppercase *bool `json:"password_require_uppercase"`
	PasswordRequireLowercase *bool `json:"password_require_lowercase"`
	PasswordRequireNumber    *bool `json:"password_require_number"`
	PasswordRequireSpecial   *bool `json:"password_require_special"`

	RateLimitEnabled   *bool    `json:"rate_limit_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	ResendAPIKey string `json:"resend_api_key"`
	MailFrom     string `json:"mail_from"`
	AppURL       string `json:"app_url"`
	LogLevel     string `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c / -config.
// Fields missing from the file keep their current value. No flag means
// nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	overlay(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	overlay(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration.Duration)
	overlay(&config.UploadURLValidityDuration, c.UploadURLValidityDuration.Duration)
	overlay(&config.PasswordMinLength, c.PasswordMinLength)
	overlay(&config.PasswordMaxLength, c.PasswordMaxLength)
	overlayBool(&config.PasswordRequireUppercase, c.PasswordRequireUppercase)
	overlayBool(&config.PasswordRequireLowercase, c.PasswordRequireLowercase)
	overlayBool(&config.PasswordRequireNumber, c.PasswordRequireNumber)
	overlayBool(&config.PasswordRequireSpecial, c.PasswordRequireSpecial)
	overlayBool(&config.RateLimitEnabled, c.RateLimitEnabled)
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.ResendAPIKey, c.ResendAPIKey)
	overlay(&config.MailFrom, c.MailFrom)
	overlay(&config.AppURL, c.AppURL)
	overlay(&config.LogLevel, c.LogLevel)

	return nil
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func overlayBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
