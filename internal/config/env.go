package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvManager manages environment variable configuration
type EnvManager struct {
	prefix string
}

// NewEnvManager creates a new environment variable manager
func NewEnvManager(prefix string) *EnvManager {
	if prefix == "" {
		prefix = EnvPrefix
	}
	return &EnvManager{prefix: prefix}
}

// GetString gets a string environment variable
func (em *EnvManager) GetString(key string, defaultValue string) string {
	value, ok := os.LookupEnv(em.prefix + strings.ToUpper(key))
	if !ok || value == "" {
		return defaultValue
	}
	return value
}

// GetInt gets an integer environment variable
func (em *EnvManager) GetInt(key string, defaultValue int) int {
	value := em.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// GetBool gets a boolean environment variable
func (em *EnvManager) GetBool(key string, defaultValue bool) bool {
	value := em.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}
	return defaultValue
}

// GetDuration gets a duration environment variable
func (em *EnvManager) GetDuration(key string, defaultValue time.Duration) time.Duration {
	value := em.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

// GetStrings gets a comma-separated list
func (em *EnvManager) GetStrings(key string, defaultValue []string) []string {
	value := em.GetString(key, "")
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Apply overrides c with any prefixed variables that are set.
func (em *EnvManager) Apply(c *Config) {
	c.App.Env = em.GetString("APP_ENV", c.App.Env)

	c.Server.Host = em.GetString("SERVER_HOST", c.Server.Host)
	c.Server.Port = em.GetInt("SERVER_PORT", c.Server.Port)

	c.Database.Driver = em.GetString("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = em.GetString("DATABASE_URL", c.Database.URL)
	c.Database.UsersTable = em.GetString("USERS_TABLE", c.Database.UsersTable)
	c.Database.TradesTable = em.GetString("TRADES_TABLE", c.Database.TradesTable)
	c.Database.AutoMigrate = em.GetBool("DATABASE_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Redis.Enabled = em.GetBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = em.GetString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = em.GetString("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = em.GetInt("REDIS_DB", c.Redis.DB)

	c.JWT.Secret = em.GetString("ACCESS_TOKEN_SECRET", c.JWT.Secret)
	c.JWT.Algorithm = em.GetString("ACCESS_TOKEN_ALGORITHM", c.JWT.Algorithm)
	c.JWT.ExpiresInMinutes = em.GetInt("ACCESS_TOKEN_EXPIRES_IN_MINUTES", c.JWT.ExpiresInMinutes)

	c.Stream.QueueSize = em.GetInt("STREAM_QUEUE_SIZE", c.Stream.QueueSize)
	c.Stream.Interval = em.GetDuration("STREAM_INTERVAL", c.Stream.Interval)
	c.Stream.AuthMessageTimeout = em.GetDuration("STREAM_AUTH_MESSAGE_TIMEOUT", c.Stream.AuthMessageTimeout)

	c.CORS.AllowedOrigins = em.GetStrings("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)

	c.Logging.Level = em.GetString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = em.GetString("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = em.GetString("LOG_OUTPUT", c.Logging.Output)
}

// ValidateRequired checks if all required environment variables are set
func (em *EnvManager) ValidateRequired(required []string) error {
	var missing []string

	for _, key := range required {
		envKey := em.prefix + strings.ToUpper(key)
		if os.Getenv(envKey) == "" {
			missing = append(missing, envKey)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	return nil
}
