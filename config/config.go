package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	AES       AESConfig       `mapstructure:"aes"`
	Log       LogConfig       `mapstructure:"log"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Callback  CallbackConfig  `mapstructure:"callback"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Provider failure policies applied when the upstream create call fails.
const (
	FailurePolicyStrict  = "strict"
	FailurePolicyLenient = "lenient"
)

// ProviderConfig selects the upstream payment provider. An empty name or
// "none" runs the gateway in sandbox mode.
type ProviderConfig struct {
	Name                    string        `mapstructure:"name"` // none, tripay, midtrans
	BaseURL                 string        `mapstructure:"base_url"`
	APIKey                  string        `mapstructure:"api_key"`
	PrivateKey              string        `mapstructure:"private_key"`
	MerchantCode            string        `mapstructure:"merchant_code"`
	ServerKey               string        `mapstructure:"server_key"`
	Production              bool          `mapstructure:"production"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	FailurePolicy           string        `mapstructure:"failure_policy"`
	RequireWebhookSignature bool          `mapstructure:"require_webhook_signature"`
}

// Enabled reports whether a live provider is configured.
func (p ProviderConfig) Enabled() bool {
	return p.Name != "" && p.Name != "none"
}

type PaymentConfig struct {
	DefaultExpiry       time.Duration `mapstructure:"default_expiry"`
	ListMaxLimit        int           `mapstructure:"list_max_limit"`
	ExpirySweepInterval time.Duration `mapstructure:"expiry_sweep_interval"`
	ExpirySweepBatch    int           `mapstructure:"expiry_sweep_batch"`
	MerchantName        string        `mapstructure:"merchant_name"` // printed into sandbox QR payloads
	MerchantCity        string        `mapstructure:"merchant_city"`
}

// Rate limit backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBudget   time.Duration `mapstructure:"sweep_budget"`
}

type KafkaConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"` // per broker round trip
}

type CallbackConfig struct {
	Timeout    time.Duration   `mapstructure:"timeout"`
	RetryDelay []time.Duration `mapstructure:"retry_delays"`
}

// Load reads configuration from file and environment variables.
// A local .env file is loaded first when present. Environment variables
// override file values. Prefix: QGW_, nested keys use underscore:
// QGW_DATABASE_HOST, QGW_PROVIDER_NAME, etc.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: QGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("QGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "qris_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "qris-gateway")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("provider.name", "none")
	v.SetDefault("provider.base_url", "https://tripay.co.id/api-sandbox")
	v.SetDefault("provider.production", false)
	v.SetDefault("provider.timeout", "20s")
	v.SetDefault("provider.failure_policy", FailurePolicyStrict)
	v.SetDefault("provider.require_webhook_signature", false)

	v.SetDefault("payment.default_expiry", "30m")
	v.SetDefault("payment.list_max_limit", 100)
	v.SetDefault("payment.expiry_sweep_interval", "1m")
	v.SetDefault("payment.expiry_sweep_batch", 200)
	v.SetDefault("payment.merchant_name", "QRIS GATEWAY SANDBOX")
	v.SetDefault("payment.merchant_city", "JAKARTA")

	v.SetDefault("ratelimit.backend", RateLimitMemory)
	v.SetDefault("ratelimit.sweep_interval", "1m")
	v.SetDefault("ratelimit.sweep_budget", "50ms")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "payment.events")
	v.SetDefault("kafka.client_id", "qris-gateway")
	v.SetDefault("kafka.timeout", "3s")

	v.SetDefault("callback.timeout", "10s")
	v.SetDefault("callback.retry_delays", []string{"1s", "5s", "30s"})
}

// Validate rejects combinations that would fail later at wiring time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if !c.Redis.Enabled {
			return errors.New("ratelimit.backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend %q", c.RateLimit.Backend)
	}

	switch c.Provider.FailurePolicy {
	case FailurePolicyStrict, FailurePolicyLenient:
	default:
		return fmt.Errorf("unsupported provider failure policy %q", c.Provider.FailurePolicy)
	}

	switch c.Provider.Name {
	case "", "none", "tripay", "midtrans":
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider.Name)
	}

	if c.Payment.ListMaxLimit <= 0 {
		return errors.New("payment.list_max_limit must be positive")
	}
	return nil
}
