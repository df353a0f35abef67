// Package config loads terminal settings from a YAML file overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Device   DeviceConfig   `yaml:"device"`
	HTTP     HTTPConfig     `yaml:"http"`
	Channel  ChannelConfig  `yaml:"channel"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Display  DisplayConfig  `yaml:"display"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DeviceConfig locates the device-local store shared by the terminal's tabs.
type DeviceConfig struct {
	DBPath        string `yaml:"db_path"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SessionToken    string        `yaml:"session_token"`
}

type ChannelConfig struct {
	Backend       string        `yaml:"backend"`
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

type PostgresConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DBName        string `yaml:"dbname"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// KafkaConfig with no brokers disables transaction events.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type DisplayConfig struct {
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Device: DeviceConfig{
			DBPath:        "possync.db",
			MigrationsDir: "internal/localstore/migrations",
		},
		HTTP: HTTPConfig{
			Port:            "8080",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Channel: ChannelConfig{
			Backend:       BackendPostgres,
			DebounceDelay: 200 * time.Millisecond,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			User:          "postgres",
			Password:      "postgres",
			DBName:        "cafe",
			MigrationsDir: "internal/repository/migrations",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Mongo: MongoConfig{URI: "mongodb://localhost:27017/?replicaSet=rs0", Database: "cafe"},
		Kafka: KafkaConfig{Topic: "cafe.transactions"},
		Display: DisplayConfig{
			ConfirmationWindow: 3 * time.Second,
		},
	}
}

// Load reads path (optional) over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Device.DBPath = getEnv("DEVICE_DB_PATH", c.Device.DBPath)
	c.Device.MigrationsDir = getEnv("DEVICE_MIGRATIONS_DIR", c.Device.MigrationsDir)
	c.Postgres.MigrationsDir = getEnv("DB_MIGRATIONS_DIR", c.Postgres.MigrationsDir)
	c.HTTP.Port = getEnv("HTTP_PORT", c.HTTP.Port)
	c.HTTP.SessionToken = getEnv("SESSION_TOKEN", c.HTTP.SessionToken)
	c.Channel.Backend = getEnv("CHANNEL_BACKEND", c.Channel.Backend)
	c.Postgres.Host = getEnv("DB_HOST", c.Postgres.Host)
	c.Postgres.User = getEnv("DB_USER", c.Postgres.User)
	c.Postgres.Password = getEnv("DB_PASSWORD", c.Postgres.Password)
	c.Postgres.DBName = getEnv("DB_NAME", c.Postgres.DBName)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	if raw := getEnv("DB_PORT", ""); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", raw, err)
		}
		c.Postgres.Port = port
	}
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		c.Kafka.Brokers = strings.Split(raw, ",")
	}
	if raw := getEnv("DEBOUNCE_DELAY", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid DEBOUNCE_DELAY %q: %w", raw, err)
		}
		c.Channel.DebounceDelay = d
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Channel.Backend {
	case BackendPostgres, BackendRedis, BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("unknown channel backend %q", c.Channel.Backend)
	}
	if c.Channel.DebounceDelay <= 0 {
		return errors.New("channel.debounce_delay must be positive")
	}
	if c.Device.DBPath == "" {
		return errors.New("device.db_path is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
