package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator 配置验证器
type Validator struct {
	config *Config
}

// NewValidator 创建配置验证器
func NewValidator(config *Config) *Validator {
	return &Validator{
		config: config,
	}
}

// Validate 验证配置
func (v *Validator) Validate() error {
	var errors []string

	checks := []struct {
		section string
		fn      func() error
	}{
		{"app", v.validateApp},
		{"server", v.validateServer},
		{"database", v.validateDatabase},
		{"redis", v.validateRedis},
		{"jwt", v.validateJWT},
		{"security", v.validateSecurity},
		{"stream", v.validateStream},
		{"monitoring", v.validateMonitoring},
		{"login_throttle", v.validateLoginThrottle},
		{"logging", v.validateLogging},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", c.section, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

// validateApp 验证应用配置
func (v *Validator) validateApp() error {
	switch v.config.App.Env {
	case "development", "staging", "production":
		return nil
	default:
		return fmt.Errorf("invalid env %q, expected development, staging or production", v.config.App.Env)
	}
}

// validateServer 验证服务器配置
func (v *Validator) validateServer() error {
	server := v.config.Server

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", server.Port)
	}
	if server.ReadTimeout <= 0 || server.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}
	return nil
}

// validateDatabase 验证数据库配置
func (v *Validator) validateDatabase() error {
	db := v.config.Database

	switch db.Driver {
	case "memory":
		return nil
	case "postgres":
	default:
		return fmt.Errorf("unknown driver %q", db.Driver)
	}

	if db.URL == "" {
		return fmt.Errorf("url is required for the postgres driver")
	}
	u, err := url.Parse(db.URL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return fmt.Errorf("url must be a postgres:// URL")
	}
	if db.UsersTable == "" || db.TradesTable == "" {
		return fmt.Errorf("users_table and trades_table must be set")
	}
	// embedded migrations create the default table names only
	if db.AutoMigrate && (db.UsersTable != "users" || db.TradesTable != "trades") {
		return fmt.Errorf("auto_migrate requires the default table names")
	}
	return nil
}

// validateRedis 验证Redis配置
func (v *Validator) validateRedis() error {
	r := v.config.Redis
	if !r.Enabled {
		return nil
	}
	if r.Addr == "" {
		return fmt.Errorf("addr is required when redis is enabled")
	}
	if r.DB < 0 {
		return fmt.Errorf("invalid db index: %d", r.DB)
	}
	return nil
}

// validateJWT 验证JWT配置
func (v *Validator) validateJWT() error {
	jwt := v.config.JWT

	if jwt.Secret == "" {
		return fmt.Errorf("secret is required")
	}
	if len(jwt.Secret) < 32 {
		return fmt.Errorf("secret must be at least 32 characters")
	}
	switch jwt.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported algorithm %q", jwt.Algorithm)
	}
	if jwt.ExpiresInMinutes <= 0 {
		return fmt.Errorf("expires_in_minutes must be positive")
	}
	return nil
}

// validateSecurity 验证安全配置
func (v *Validator) validateSecurity() error {
	cost := v.config.Security.BcryptCost
	if cost < 4 || cost > 31 {
		return fmt.Errorf("bcrypt_cost must be between 4 and 31, got %d", cost)
	}
	return nil
}

func (v *Validator) validateStream() error {
	s := v.config.Stream
	if s.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if s.AuthMessageTimeout < 0 {
		return fmt.Errorf("auth_message_timeout must not be negative")
	}
	return nil
}

func (v *Validator) validateMonitoring() error {
	m := v.config.Monitoring
	if m.PrometheusEnabled && !strings.HasPrefix(m.PrometheusPath, "/") {
		return fmt.Errorf("prometheus_path must start with /")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"health_probe_schedule": m.HealthProbeSchedule,
		"pool_stats_schedule":   m.PoolStatsSchedule,
		"cleanup_schedule":      m.CleanupSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (v *Validator) validateLoginThrottle() error {
	lt := v.config.LoginThrottle
	if !lt.Enabled {
		return nil
	}
	if lt.MaxAttempts <= 0 || lt.Window <= 0 {
		return fmt.Errorf("max_attempts and window must be positive")
	}
	return nil
}

func (v *Validator) validateLogging() error {
	switch v.config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", v.config.Logging.Level)
	}
	switch v.config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid format %q", v.config.Logging.Format)
	}
	return nil
}
