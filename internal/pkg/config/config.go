package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SeedDemoSessions registers the well-known demo and admin tokens.
	// Local use only.
	SeedDemoSessions bool `mapstructure:"SEED_DEMO_SESSIONS"`

	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// BackendAddr is where cmd/mock-backend listens.
	BackendAddr string `mapstructure:"BACKEND_ADDR"`

	RedisAddr  string        `mapstructure:"REDIS_ADDR"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	JournalPath string `mapstructure:"JOURNAL_PATH"`

	CartResyncDelay  time.Duration `mapstructure:"CART_RESYNC_DELAY"`
	CartPollInterval time.Duration `mapstructure:"CART_POLL_INTERVAL"`
	PerProductGate   bool          `mapstructure:"CART_PER_PRODUCT_GATE"`
	ConfirmationTTL  time.Duration `mapstructure:"CONFIRMATION_TTL"`

	OtelServiceName string  `mapstructure:"OTEL_SERVICE_NAME"`
	OtelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

var defaults = map[string]any{
	"APP_ENV":                     "prod",
	"LOG_LEVEL":                   "info",
	"SEED_DEMO_SESSIONS":          false,
	"HTTP_ADDR":                   ":8080",
	"BACKEND_URL":                 "http://localhost:9090",
	"REQUEST_TIMEOUT":             "10s",
	"BACKEND_ADDR":                ":9090",
	"REDIS_ADDR":                  "",
	"SESSION_TTL":                 "24h",
	"JOURNAL_PATH":                "",
	"CART_RESYNC_DELAY":           "1s",
	"CART_POLL_INTERVAL":          "120s",
	"CART_PER_PRODUCT_GATE":       false,
	"CONFIRMATION_TTL":            "5m",
	"OTEL_SERVICE_NAME":           "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_SAMPLE_RATIO":           1.0,
}

// Load reads defaults, then an optional config file, then the environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServiceName returns OTEL_SERVICE_NAME when set, fallback otherwise.
func (c *Config) ServiceName(fallback string) string {
	if c.OtelServiceName != "" {
		return c.OtelServiceName
	}
	return fallback
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("config: BACKEND_URL is required")
	}
	if c.CartResyncDelay <= 0 || c.CartPollInterval <= 0 {
		return errors.New("config: cart timings must be positive")
	}
	if c.CartResyncDelay >= c.CartPollInterval {
		return fmt.Errorf("config: CART_RESYNC_DELAY (%s) must be shorter than CART_POLL_INTERVAL (%s)",
			c.CartResyncDelay, c.CartPollInterval)
	}
	return nil
}
