package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	API         APIConfig
	Enhance     EnhanceConfig
	RecordStore RecordStoreConfig
	RateLimit   RateLimitConfig
	Archive     ArchiveConfig
	Trace       TraceConfig
}

type APIConfig struct {
	Addr string
}

type EnhanceConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// RecordStoreConfig covers both remote collections: the accounts base and the
// logs base share one table name and one credential.
type RecordStoreConfig struct {
	BaseURL        string
	Token          string
	AccountsBaseID string
	LogsBaseID     string
	Table          string
	Timeout        time.Duration
}

// RateLimitConfig is optional; rate limiting is disabled when RedisAddr is
// empty.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PerMinute     int
}

// ArchiveConfig is optional; archiving is disabled when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr: env("ENHANCEGATE_API_ADDR", ":8080"),
		},
		Enhance: EnhanceConfig{
			Endpoint: env("ENHANCE_API_URL", ""),
			Timeout:  time.Duration(envInt("ENHANCE_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		RecordStore: RecordStoreConfig{
			BaseURL:        env("RECORDSTORE_BASE_URL", "https://api.airtable.com/v0"),
			Token:          env("RECORDSTORE_TOKEN", ""),
			AccountsBaseID: env("ACCOUNTS_BASE_ID", ""),
			LogsBaseID:     env("LOGS_BASE_ID", ""),
			Table:          env("TABLE_NAME", ""),
			Timeout:        time.Duration(envInt("RECORDSTORE_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			PerMinute:     envInt("RATE_LIMIT_PER_MINUTE", 10),
		},
		Archive: ArchiveConfig{
			Endpoint:  env("MINIO_ENDPOINT", ""),
			AccessKey: env("MINIO_ACCESS_KEY", ""),
			SecretKey: env("MINIO_SECRET_KEY", ""),
			Bucket:    env("MINIO_BUCKET", "enhancegate-outputs"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
			URLTTL:    time.Duration(envInt("MINIO_URL_TTL_HOURS", 24)) * time.Hour,
		},
		Trace: TraceConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTLP_INSECURE", false),
		},
	}
}

// Validate checks the inputs the gateway cannot run without.
func (c Config) Validate() error {
	if c.Enhance.Endpoint == "" {
		return errors.New("ENHANCE_API_URL is required")
	}
	if c.RecordStore.Token == "" {
		return errors.New("RECORDSTORE_TOKEN is required")
	}
	if c.RecordStore.AccountsBaseID == "" {
		return errors.New("ACCOUNTS_BASE_ID is required")
	}
	if c.RecordStore.LogsBaseID == "" {
		return errors.New("LOGS_BASE_ID is required")
	}
	if c.RecordStore.Table == "" {
		return errors.New("TABLE_NAME is required")
	}
	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
