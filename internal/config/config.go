package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Provider ProviderConfig `mapstructure:"provider"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Universe UniverseConfig `mapstructure:"universe"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type ProviderConfig struct {
	Kind           string        `mapstructure:"kind"`
	BridgeURL      string        `mapstructure:"bridge_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
}

type RefreshConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	SymbolFile  string `mapstructure:"symbol_file"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UniverseConfig struct {
	File string `mapstructure:"file"`
}

const (
	ProviderBridge    = "bridge"
	ProviderSimulated = "simulated"
)

// Load reads configuration from an optional .env file, environment variables and defaults.
func Load() (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// an empty LOG_SYMBOL_FILE or GRPC_ADDR switches that feature off
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("provider.kind", ProviderBridge)
	v.SetDefault("provider.bridge_url", "ws://127.0.0.1:8765/ws")
	v.SetDefault("provider.request_timeout", 5*time.Second)
	v.SetDefault("provider.rate_limit", 1000.0)

	v.SetDefault("refresh.interval", time.Second)
	v.SetDefault("refresh.retry_delay", 5*time.Second)
	v.SetDefault("refresh.backoff", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.symbol_file", "logs/mt5_errors.log")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Second)

	v.SetDefault("universe.file", "")
}

func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderBridge, ProviderSimulated:
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}

	if c.Refresh.Interval <= 0 || c.Refresh.RetryDelay <= 0 || c.Refresh.Backoff <= 0 {
		return fmt.Errorf("refresh durations must be positive")
	}

	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("provider request timeout must be positive")
	}

	return nil
}
