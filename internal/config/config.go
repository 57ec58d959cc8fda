package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gather/internal/domain/promotion"
)

// EnvPrefix namespaces every environment variable, e.g. GATHER_ADDR.
const EnvPrefix = "GATHER"

// Config errors
var (
	ErrCSRFKeyRequired   = errors.New("GATHER_CSRF_KEY is required in production")
	ErrInvalidCSRFKey    = errors.New("GATHER_CSRF_KEY must be 64 hex characters (32 bytes)")
	ErrAdminHashRequired = errors.New("GATHER_ADMIN_PASSWORD_HASH is required in production")
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	Env                string
	Addr               string
	DBPath             string
	LogLevel           string
	PromotionThreshold int
	AdminPasswordHash  string
	CSRFKey            []byte // nil outside production means "generate per start"
	TrustedOrigins     []string
	TrustProxy         bool
	RateLimitPerSecond float64
	RateLimitBurst     int
	SlowRequest        time.Duration
	SlowQuery          time.Duration
	ResendKey          string
	EmailFrom          string
	ReplyTo            string
	RollbarToken       string
	OTLPEndpoint       string
	Version            string
}

// IsProduction reports whether the process runs with production safeguards.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file, then GATHER_* environment variables.
// PRE: dotEnvPath may be empty or point at a missing file
// POST: Returns a validated Config; production requires a CSRF key and admin hash
func Load(dotEnvPath string) (Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return Config{}, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config.stat(%s): %w", dotEnvPath, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env:                strings.ToLower(v.GetString("env")),
		Addr:               v.GetString("addr"),
		DBPath:             v.GetString("db_path"),
		LogLevel:           v.GetString("log_level"),
		PromotionThreshold: v.GetInt("promotion_threshold"),
		AdminPasswordHash:  v.GetString("admin_password_hash"),
		TrustedOrigins:     splitList(v.GetString("trusted_origins")),
		TrustProxy:         v.GetBool("trust_proxy"),
		RateLimitPerSecond: v.GetFloat64("rate_limit_per_second"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
		SlowRequest:        time.Duration(v.GetInt("slow_request_ms")) * time.Millisecond,
		SlowQuery:          time.Duration(v.GetInt("slow_query_ms")) * time.Millisecond,
		ResendKey:          v.GetString("resend_key"),
		EmailFrom:          v.GetString("email_from"),
		ReplyTo:            v.GetString("reply_to"),
		RollbarToken:       v.GetString("rollbar_token"),
		OTLPEndpoint:       v.GetString("otlp_endpoint"),
		Version:            v.GetString("version"),
	}
	if cfg.PromotionThreshold <= 0 {
		cfg.PromotionThreshold = promotion.DefaultThreshold
	}

	if keyHex := v.GetString("csrf_key"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return Config{}, ErrInvalidCSRFKey
		}
		cfg.CSRFKey = key
	}
	if cfg.IsProduction() {
		if cfg.CSRFKey == nil {
			return Config{}, ErrCSRFKeyRequired
		}
		if cfg.AdminPasswordHash == "" {
			return Config{}, ErrAdminHashRequired
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "gather.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("promotion_threshold", promotion.DefaultThreshold)
	v.SetDefault("trusted_origins", "localhost:8080,127.0.0.1:8080")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit_per_second", 10)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("slow_request_ms", 200)
	v.SetDefault("slow_query_ms", 50)
	v.SetDefault("email_from", "Gather <noreply@localhost>")
	v.SetDefault("version", "dev")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
