package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
	StoreDynamoDB = "dynamodb"

	LockLocal = "local"
	LockRedis = "redis"

	minSecretLength = 32
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	Store  StoreConfig
	Lock   LockConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Auth   AuthConfig
	SMTP   SMTPConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPAddr string
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	AutoMigrate bool
	DynamoTable string
	AWSRegion   string
}

type LockConfig struct {
	Driver string
	TTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminUsername  string
	AdminPassword  string
}

type SMTPConfig struct {
	Host       string
	Port       string
	From       string
	Recipients []string
}

// Enabled reports whether alert mail can be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && len(c.Recipients) > 0
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "production"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", StoreMemory),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			AutoMigrate: getEnvBool("DATABASE_AUTO_MIGRATE", true),
			DynamoTable: getEnv("DYNAMO_TABLE", "inventory-items"),
			AWSRegion:   getEnv("AWS_REGION", "ap-northeast-1"),
		},
		Lock: LockConfig{
			Driver: getEnv("LOCK_DRIVER", LockLocal),
			TTL:    time.Duration(getEnvInt("LOCK_TTL_SECONDS", 5)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "inventory-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "inventory-alerter"),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 30)) * time.Minute,
			AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnv("SMTP_PORT", "25"),
			From:       getEnv("SMTP_FROM", "inventory@localhost"),
			Recipients: getEnvSlice("ALERT_EMAIL_TO", nil),
		},
	}
}

// Validate checks the settings every binary depends on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory, StoreDynamoDB:
	case StorePostgres, StoreMySQL:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for store driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Lock.Driver {
	case LockLocal, LockRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL_SECONDS must be positive"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}

	return errors.Join(errs...)
}

// ValidateAPI adds the checks only the HTTP server needs.
func (c *Config) ValidateAPI() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecretLength))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.AppEnv == "dev"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
