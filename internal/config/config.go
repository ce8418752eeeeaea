package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"tradestream/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADESTREAM_"

// Config represents the application configuration
type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	Security      SecurityConfig      `yaml:"security"`
	Stream        StreamConfig        `yaml:"stream"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	CORS          CORSConfig          `yaml:"cors"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	LoginThrottle LoginThrottleConfig `yaml:"login_throttle"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// IsDevelopment reports whether the app runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	UsersTable      string        `yaml:"users_table"`
	TradesTable     string        `yaml:"trades_table"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	MaxOpen         int           `yaml:"max_open"`
	MaxIdle         int           `yaml:"max_idle"`
	Timeout         time.Duration `yaml:"timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// JWTConfig represents access token configuration
type JWTConfig struct {
	Secret           string `yaml:"secret"`
	Algorithm        string `yaml:"algorithm"`
	ExpiresInMinutes int    `yaml:"expires_in_minutes"`
}

// TTL returns the configured token lifetime.
func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpiresInMinutes) * time.Minute
}

// SecurityConfig represents password hashing configuration
type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// StreamConfig represents push stream configuration
type StreamConfig struct {
	QueueSize int           `yaml:"queue_size"`
	Interval  time.Duration `yaml:"interval"`
	// AuthMessageTimeout > 0 lets clients without an Authorization header
	// send the credential as their first frame.
	AuthMessageTimeout time.Duration `yaml:"auth_message_timeout"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	PrometheusEnabled   bool   `yaml:"prometheus_enabled"`
	PrometheusPath      string `yaml:"prometheus_path"`
	HealthProbeSchedule string `yaml:"health_probe_schedule"`
	PoolStatsSchedule   string `yaml:"pool_stats_schedule"`
	CleanupSchedule     string `yaml:"cleanup_schedule"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// RateLimitConfig represents per-client HTTP rate limiting
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// LoginThrottleConfig limits login attempts per username and client
type LoginThrottleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "tradestream", Version: "1.0.0", Env: "development"},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxHeaderBytes:  1 << 20,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			UsersTable:      "users",
			TradesTable:     "trades",
			MaxOpen:         25,
			MaxIdle:         5,
			Timeout:         5 * time.Second,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 10, KeyPrefix: "tradestream:"},
		JWT:   JWTConfig{Algorithm: "HS256", ExpiresInMinutes: 30},
		Security: SecurityConfig{BcryptCost: 12},
		Stream: StreamConfig{
			QueueSize: 10,
			Interval:  500 * time.Millisecond,
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled:   true,
			PrometheusPath:      "/metrics",
			HealthProbeSchedule: "@every 30s",
			PoolStatsSchedule:   "@every 30s",
			CleanupSchedule:     "@every 5m",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		},
		RateLimit:     RateLimitConfig{Enabled: true, RequestsPerMinute: 600, Burst: 50},
		LoginThrottle: LoginThrottleConfig{Enabled: true, MaxAttempts: 10, Window: time.Minute},
		Logging:       LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load builds the configuration from defaults, the YAML file at filename
// (optional), a .env file in the working directory (optional) and
// TRADESTREAM_* environment variables, in that order of precedence, and
// validates the result.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	NewEnvManager(EnvPrefix).Apply(config)

	if err := NewValidator(config).Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoggerConfig converts the logging section for logger.NewLogger.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      logger.LogLevel(l.Level),
		Format:     logger.LogFormat(l.Format),
		Output:     l.Output,
		Filename:   l.Filename,
		MaxSize:    l.MaxSize,
		MaxAge:     l.MaxAge,
		MaxBackups: l.MaxBackups,
		Compress:   l.Compress,
	}
}
