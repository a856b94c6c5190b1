// Package config provides configuration management for the pickup server.
// Settings come from defaults, an optional config file, a .env file and
// PICKUP_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"
)

// Config holds all configuration for the pickup server.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Pickup    PickupConfig
	Webhook   WebhookConfig
	Transport TransportConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string // gin mode: debug, release, test
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Backend string // memory, sql, redis
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table prefix (default: "pickup_")
}

// RedisConfig holds the Redis connection used by the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
	File        string // Rotated log file; empty logs to stdout only
	MaxSize     int    // Megabytes
	MaxBackups  int
	MaxAge      int // Days
	Compress    bool
}

// PickupConfig holds protocol settings.
type PickupConfig struct {
	Protocol         string // legacy or didcomm
	IncludeDelivered bool   // Batch pickup also returns already sent records
}

// WebhookConfig holds stored-message webhook settings.
// Webhooks are disabled when URL is empty.
type WebhookConfig struct {
	URL         string
	Secret      string
	QueueSize   int
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// TransportConfig holds the known connections and their endpoints.
type TransportConfig struct {
	Endpoints map[string]string // connection id -> agent endpoint URL
	Timeout   time.Duration
}

// Load loads configuration. configFile is optional.
func Load(configFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("pickup")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	endpoints, err := ParseEndpoints(v.GetString("transport.endpoints"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Mode:            v.GetString("server.mode"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("storage.backend")),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("database.driver"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Database: v.GetString("database.name"),
			Prefix:   v.GetString("database.prefix"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
			MaxSize:     v.GetInt("log.max_size"),
			MaxBackups:  v.GetInt("log.max_backups"),
			MaxAge:      v.GetInt("log.max_age"),
			Compress:    v.GetBool("log.compress"),
		},
		Pickup: PickupConfig{
			Protocol:         strings.ToLower(v.GetString("pickup.protocol")),
			IncludeDelivered: v.GetBool("pickup.include_delivered"),
		},
		Webhook: WebhookConfig{
			URL:         v.GetString("webhook.url"),
			Secret:      v.GetString("webhook.secret"),
			QueueSize:   v.GetInt("webhook.queue_size"),
			Workers:     v.GetInt("webhook.workers"),
			MaxAttempts: v.GetInt("webhook.max_attempts"),
			BaseDelay:   v.GetDuration("webhook.base_delay"),
			MaxDelay:    v.GetDuration("webhook.max_delay"),
		},
		Transport: TransportConfig{
			Endpoints: endpoints,
			Timeout:   v.GetDuration("transport.timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "pickup")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pickup")
	v.SetDefault("database.prefix", "pickup_")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pickup:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("pickup.protocol", "legacy")
	v.SetDefault("pickup.include_delivered", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.workers", 2)
	v.SetDefault("webhook.max_attempts", 5)
	v.SetDefault("webhook.base_delay", "1s")
	v.SetDefault("webhook.max_delay", "30s")
	v.SetDefault("transport.endpoints", "")
	v.SetDefault("transport.timeout", "10s")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendSQL:
		if c.Database.GetDSN() == "" {
			return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
		}
		if c.Database.Driver != "sqlite3" && c.Database.Password == "" {
			return fmt.Errorf("PICKUP_DATABASE_PASSWORD is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Pickup.Protocol {
	case "legacy", "didcomm":
	default:
		return fmt.Errorf("unknown pickup protocol %q", c.Pickup.Protocol)
	}

	if c.Webhook.URL != "" && (c.Webhook.QueueSize <= 0 || c.Webhook.Workers <= 0 || c.Webhook.MaxAttempts <= 0) {
		return fmt.Errorf("webhook queue_size, workers and max_attempts must be > 0")
	}

	return nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// ParseEndpoints parses "conn-1=https://a/in,conn-2=https://b/in".
func ParseEndpoints(value string) (map[string]string, error) {
	endpoints := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, url, ok := strings.Cut(part, "=")
		id, url = strings.TrimSpace(id), strings.TrimSpace(url)
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("invalid transport endpoint %q, want <connection_id>=<url>", part)
		}
		endpoints[id] = url
	}
	return endpoints, nil
}

// loadEnvFile loads .env from the working directory or its parent.
// Existing environment variables win; a missing file is not an error.
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
