package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	WorkerPool WorkerPoolConfig `mapstructure:"worker_pool"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Membership MembershipConfig `mapstructure:"membership"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
}

type ServerConfig struct {
	Port                   int    `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// RateLimitConfig holds per-minute limits for the rate-limited endpoint groups.
type RateLimitConfig struct {
	PurchasePerMinute int `mapstructure:"purchase_per_minute"`
	BoostPerMinute    int `mapstructure:"boost_per_minute"`
	APIPerMinute      int `mapstructure:"api_per_minute"`
}

type WorkerPoolConfig struct {
	Size      int `mapstructure:"size"`
	QueueSize int `mapstructure:"queue_size"`
}

type KafkaConfig struct {
	Brokers       []string       `mapstructure:"brokers"`
	ConsumerGroup string         `mapstructure:"consumer_group"`
	Topics        TopicsConfig   `mapstructure:"topics"`
	Producer      ProducerConfig `mapstructure:"producer"`
	Consumer      ConsumerConfig `mapstructure:"consumer"`
}

type TopicsConfig struct {
	Membership string `mapstructure:"membership"`
	DLQ        string `mapstructure:"dlq"`
}

type ProducerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

type ConsumerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// MembershipConfig describes the default tier that is upserted when an admin
// grants a membership without naming a tier, plus ledger policy knobs.
type MembershipConfig struct {
	DefaultTierName        string   `mapstructure:"default_tier_name"`
	DefaultTierPriceINR    int64    `mapstructure:"default_tier_price_inr_paise"`
	DefaultTierPriceUSD    int64    `mapstructure:"default_tier_price_usd_cents"`
	DefaultTierDescription string   `mapstructure:"default_tier_description"`
	DefaultTierFeatures    []string `mapstructure:"default_tier_features"`
	InitialBoostCount      int      `mapstructure:"initial_boost_count"`
	PurchaseDays           int      `mapstructure:"purchase_days"`
	DefaultGrantMonths     int      `mapstructure:"default_grant_months"`
	StatusCacheTTLSeconds  int      `mapstructure:"status_cache_ttl_seconds"`
	TierCacheTTLSeconds    int      `mapstructure:"tier_cache_ttl_seconds"`
}

type SnowflakeConfig struct {
	Node int64 `mapstructure:"node"`
}

// ApplyDefaults registers a default for every key so an empty file still
// produces a runnable development configuration.
func ApplyDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "bytehub")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 2)

	v.SetDefault("ratelimit.purchase_per_minute", 5)
	v.SetDefault("ratelimit.boost_per_minute", 30)
	v.SetDefault("ratelimit.api_per_minute", 300)

	v.SetDefault("worker_pool.size", 8)
	v.SetDefault("worker_pool.queue_size", 256)

	v.SetDefault("kafka.consumer_group", "bytehub-membership")
	v.SetDefault("kafka.topics.membership", "bytehub.membership.granted")
	v.SetDefault("kafka.topics.dlq", "bytehub.membership.granted.dlq")
	v.SetDefault("kafka.producer.max_retries", 3)
	v.SetDefault("kafka.producer.retry_backoff_ms", 100)
	v.SetDefault("kafka.consumer.max_retries", 3)
	v.SetDefault("kafka.consumer.retry_backoff_ms", 200)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("membership.default_tier_name", "Byte")
	v.SetDefault("membership.default_tier_price_inr_paise", 10000)
	v.SetDefault("membership.default_tier_price_usd_cents", 118)
	v.SetDefault("membership.default_tier_description", "Byte membership with server boosts and the control panel")
	v.SetDefault("membership.default_tier_features", []string{"2 server boosts", "Control panel", "Animated avatar", "Custom profile theme"})
	v.SetDefault("membership.initial_boost_count", 2)
	v.SetDefault("membership.purchase_days", 30)
	v.SetDefault("membership.default_grant_months", 1)
	v.SetDefault("membership.status_cache_ttl_seconds", 60)
	v.SetDefault("membership.tier_cache_ttl_seconds", 30)

	v.SetDefault("snowflake.node", 1)
}

// NewViper returns a viper instance with defaults and BYTEHUB_* env overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	v.SetEnvPrefix("BYTEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the config file at path (optional when empty) on top of
// the defaults. A .env file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}
	return Load(v)
}

// Load unmarshals an already populated viper instance.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Membership.InitialBoostCount < 0 {
		return errors.New("membership.initial_boost_count must not be negative")
	}
	if c.Membership.PurchaseDays <= 0 {
		return errors.New("membership.purchase_days must be positive")
	}
	if c.Membership.DefaultGrantMonths <= 0 {
		return errors.New("membership.default_grant_months must be positive")
	}
	return nil
}
