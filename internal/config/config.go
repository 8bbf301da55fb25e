package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "CLINIC"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Email     EmailConfig     `mapstructure:"email"`
	Push      PushConfig      `mapstructure:"push"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Reminders ReminderConfig  `mapstructure:"reminders"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	EmbeddedWorkers bool          `mapstructure:"embedded_workers" split_words:"true"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" split_words:"true"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	RefreshSecret string        `mapstructure:"refresh_secret" split_words:"true"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry" split_words:"true"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry" split_words:"true"`
	Issuer        string        `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
	Retention     time.Duration `mapstructure:"retention"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type EmailConfig struct {
	Provider       string `mapstructure:"provider"`
	FromName       string `mapstructure:"from_name" split_words:"true"`
	FromAddress    string `mapstructure:"from_address" split_words:"true"`
	SMTPHost       string `mapstructure:"smtp_host" split_words:"true"`
	SMTPPort       int    `mapstructure:"smtp_port" split_words:"true"`
	SMTPUser       string `mapstructure:"smtp_user" split_words:"true"`
	SMTPPassword   string `mapstructure:"smtp_password" split_words:"true"`
	SendGridAPIKey string `mapstructure:"sendgrid_api_key" envconfig:"SENDGRID_API_KEY"`
	FrontendURL    string `mapstructure:"frontend_url" split_words:"true"`
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file" split_words:"true"`
}

type ReferralConfig struct {
	CodeLength  int `mapstructure:"code_length" split_words:"true"`
	MaxAttempts int `mapstructure:"max_attempts" split_words:"true"`
}

type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl" envconfig:"DEFAULT_TTL"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type ReminderConfig struct {
	LeadTime       time.Duration `mapstructure:"lead_time" split_words:"true"`
	Interval       time.Duration `mapstructure:"interval"`
	ExpiryInterval time.Duration `mapstructure:"expiry_interval" split_words:"true"`
	AuditRetention time.Duration `mapstructure:"audit_retention" split_words:"true"`
}

type SecurityConfig struct {
	EncryptionKey    string        `mapstructure:"encryption_key" split_words:"true"`
	BcryptCost       int           `mapstructure:"bcrypt_cost" split_words:"true"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts" split_words:"true"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration" split_words:"true"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("jwt.access_expiry", 24*time.Hour)
	v.SetDefault("jwt.refresh_expiry", 30*24*time.Hour)
	v.SetDefault("jwt.issuer", "clinic-platform")

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 30*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.from_name", "Clinic Platform")
	v.SetDefault("email.from_address", "no-reply@clinic.local")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	v.SetDefault("referral.code_length", 8)
	v.SetDefault("referral.max_attempts", 10)

	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("reminders.lead_time", 24*time.Hour)
	v.SetDefault("reminders.interval", 15*time.Minute)
	v.SetDefault("reminders.expiry_interval", time.Hour)
	v.SetDefault("reminders.audit_retention", 365*24*time.Hour)

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.max_login_attempts", 5)
	v.SetDefault("security.lockout_duration", 15*time.Minute)

	v.SetDefault("log.level", "info")
}

// Load reads .env, then config.yaml, then CLINIC_* environment overrides.
func Load(paths ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Port <= 0 {
			problems = append(problems, "database.port must be positive")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Email.Provider {
	case "smtp":
		if c.Email.SMTPHost == "" {
			problems = append(problems, "email.smtp_host is required for the smtp provider")
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			problems = append(problems, "email.sendgrid_api_key is required for the sendgrid provider")
		}
	case "log":
	default:
		problems = append(problems, fmt.Sprintf("unknown email.provider %q", c.Email.Provider))
	}
	if c.Push.Enabled && c.Push.CredentialsFile == "" {
		problems = append(problems, "push.credentials_file is required when push is enabled")
	}
	if c.Referral.CodeLength < 4 || c.Referral.CodeLength > 16 {
		problems = append(problems, "referral.code_length must be between 4 and 16")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
