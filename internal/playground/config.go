package playground

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of every environment override. The rest of the
// variable name, lowercased, is the koanf key of the Config field.
const EnvPrefix = "RELAY_PLAYGROUND_"

// Environment variables read by LoadConfig.
const (
	EnvAddr         = EnvPrefix + "ADDR"
	EnvLogLevel     = EnvPrefix + "LOG_LEVEL"
	EnvRetryCount   = EnvPrefix + "RETRY_COUNT"
	EnvRetryDelay   = EnvPrefix + "RETRY_DELAY"
	EnvTimeout      = EnvPrefix + "TIMEOUT"
	EnvFailTimes    = EnvPrefix + "FAIL_TIMES"
	EnvSlowDelay    = EnvPrefix + "SLOW_DELAY"
	EnvBlobSize     = EnvPrefix + "BLOB_SIZE"
	EnvRedisAddr    = EnvPrefix + "REDIS_ADDR"
	EnvServe        = EnvPrefix + "SERVE"
	EnvCustomHeader = EnvPrefix + "CUSTOM_HEADER"
)

// Config holds the playground settings.
type Config struct {
	// Addr is the listen address of the demo API. Default: "127.0.0.1:8080"
	Addr string `koanf:"addr"`

	// APIPrefix is where the demo API is mounted and the client base path.
	APIPrefix string `koanf:"api_prefix"`

	LogLevel zerolog.Level `koanf:"log_level"`

	// RetryCount is the retry policy count for /user/throw-error.
	RetryCount int           `koanf:"retry_count"`
	RetryDelay time.Duration `koanf:"retry_delay"`

	// Timeout is the default per-request timeout applied by the timeout policy.
	Timeout time.Duration `koanf:"timeout"`

	// FailTimes is how many calls /user/throw-error fails before one succeeds.
	FailTimes int `koanf:"fail_times"`

	// SlowDelay is how long /user/slow takes to answer.
	SlowDelay time.Duration `koanf:"slow_delay"`

	// BlobSize is the size in bytes of the /file payload.
	BlobSize int `koanf:"blob_size"`

	// RedisAddr shares circuit breaker state through Redis when set.
	RedisAddr string `koanf:"redis_addr"`

	// CustomHeader is the value of the header the headers policy injects.
	CustomHeader string `koanf:"custom_header"`

	// Serve keeps the demo API running after the demo calls finish.
	Serve bool `koanf:"serve"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns the settings used when no environment overrides are set.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		APIPrefix:       "/api",
		LogLevel:        zerolog.InfoLevel,
		RetryCount:      3,
		RetryDelay:      100 * time.Millisecond,
		Timeout:         2 * time.Second,
		FailTimes:       2,
		SlowDelay:       5 * time.Second,
		BlobSize:        256 * 1024,
		CustomHeader:    "Relay-Custom-Header",
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig returns DefaultConfig with environment overrides applied.
// Priority, highest first: RELAY_PLAYGROUND_* variables, then defaults.
func LoadConfig() (Config, error) {
	return loadConfig(os.Environ)
}

func loadConfig(environ func() []string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("playground: load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("playground: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("playground: load config: %w", err)
	}
	return cfg, nil
}

// envKey maps RELAY_PLAYGROUND_RETRY_COUNT to retry_count. Empty values are
// dropped so they keep the default.
func envKey(k, v string) (string, any) {
	if v == "" {
		return "", nil
	}
	return strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), v
}

func defaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"addr":             d.Addr,
		"api_prefix":       d.APIPrefix,
		"log_level":        d.LogLevel.String(),
		"retry_count":      d.RetryCount,
		"retry_delay":      d.RetryDelay,
		"timeout":          d.Timeout,
		"fail_times":       d.FailTimes,
		"slow_delay":       d.SlowDelay,
		"blob_size":        d.BlobSize,
		"redis_addr":       d.RedisAddr,
		"custom_header":    d.CustomHeader,
		"serve":            d.Serve,
		"shutdown_timeout": d.ShutdownTimeout,
	}
}
