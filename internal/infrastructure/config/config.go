package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LogConfig          `yaml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	CORS         CORSConfig         `yaml:"cors"`
	Identity     IdentityConfig     `yaml:"identity"`
	Database     DatabaseConfig     `yaml:"database"`
	Notification NotificationConfig `yaml:"notification"`
	Audit        AuditConfig        `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `yaml:"port" envconfig:"PORT" default:"8000"`
	Host            string        `yaml:"host" envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers
	// name the client. Empty means the peer address is the client.
	TrustedProxies []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `yaml:"development" envconfig:"LOG_DEV" default:"false"`
}

// Policy is a fixed-window limit for one class of routes.
type Policy struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	ReadWindow    time.Duration `yaml:"read_window" envconfig:"RATE_LIMIT_READ_WINDOW" default:"15m"`
	ReadMax       int           `yaml:"read_max" envconfig:"RATE_LIMIT_READ_MAX" default:"100"`
	WriteWindow   time.Duration `yaml:"write_window" envconfig:"RATE_LIMIT_WRITE_WINDOW" default:"15m"`
	WriteMax      int           `yaml:"write_max" envconfig:"RATE_LIMIT_WRITE_MAX" default:"30"`
	AdminWindow   time.Duration `yaml:"admin_window" envconfig:"RATE_LIMIT_ADMIN_WINDOW" default:"1m"`
	AdminMax      int           `yaml:"admin_max" envconfig:"RATE_LIMIT_ADMIN_MAX" default:"10"`
	GlobalRPS     int           `yaml:"global_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	GlobalBurst   int           `yaml:"global_burst" envconfig:"RATE_LIMIT_BURST" default:"200"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"RATE_LIMIT_SWEEP_INTERVAL" default:"1m"`
}

// Read returns the read policy.
func (r RateLimitConfig) Read() Policy { return Policy{Window: r.ReadWindow, Max: r.ReadMax} }

// Write returns the write policy.
func (r RateLimitConfig) Write() Policy { return Policy{Window: r.WriteWindow, Max: r.WriteMax} }

// Admin returns the admin policy.
func (r RateLimitConfig) Admin() Policy { return Policy{Window: r.AdminWindow, Max: r.AdminMax} }

// CORSConfig holds the browser origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Identity verification modes.
const (
	IdentityJWT    = "jwt"
	IdentityRemote = "remote"
)

// IdentityConfig selects and configures the token verifier.
type IdentityConfig struct {
	Mode      string        `yaml:"mode" envconfig:"IDENTITY_MODE" default:"jwt"`
	JWTSecret string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" envconfig:"JWT_ISSUER"`
	Audience  string        `yaml:"audience" envconfig:"JWT_AUDIENCE" default:"authenticated"`
	AuthURL   string        `yaml:"auth_url" envconfig:"AUTH_URL"`
	APIKey    string        `yaml:"api_key" envconfig:"AUTH_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"AUTH_TIMEOUT" default:"5s"`
	Retries   int           `yaml:"retries" envconfig:"AUTH_RETRIES" default:"2"`
}

// DatabaseConfig holds data store configuration.
type DatabaseConfig struct {
	Driver      string `yaml:"driver" envconfig:"DATABASE_DRIVER" default:"sqlite"`
	URL         string `yaml:"url" envconfig:"DATABASE_URL" default:"file:quakealert.db?_pragma=busy_timeout(5000)"`
	MaxConns    int    `yaml:"max_conns" envconfig:"DATABASE_MAX_CONNS" default:"10"`
	AutoMigrate bool   `yaml:"auto_migrate" envconfig:"DATABASE_AUTO_MIGRATE" default:"true"`
}

// MaxBatchSize is the largest multi-row insert the data store accepts.
const MaxBatchSize = 1000

// NotificationConfig holds fan-out configuration.
type NotificationConfig struct {
	BatchSize int `yaml:"batch_size" envconfig:"NOTIFICATION_BATCH_SIZE" default:"1000"`
}

// AuditConfig holds request audit configuration.
type AuditConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"AUDIT_ENABLED" default:"true"`
	MaxBodyBytes int           `yaml:"max_body_bytes" envconfig:"AUDIT_MAX_BODY_BYTES" default:"4096"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"AUDIT_WRITE_TIMEOUT" default:"5s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			ReadWindow:    15 * time.Minute,
			ReadMax:       100,
			WriteWindow:   15 * time.Minute,
			WriteMax:      30,
			AdminWindow:   time.Minute,
			AdminMax:      10,
			GlobalRPS:     100,
			GlobalBurst:   200,
			SweepInterval: time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Identity: IdentityConfig{
			Mode:     IdentityJWT,
			Audience: "authenticated",
			Timeout:  5 * time.Second,
			Retries:  2,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			URL:         "file:quakealert.db?_pragma=busy_timeout(5000)",
			MaxConns:    10,
			AutoMigrate: true,
		},
		Notification: NotificationConfig{
			BatchSize: MaxBatchSize,
		},
		Audit: AuditConfig{
			Enabled:      true,
			MaxBodyBytes: 4096,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error

	switch c.Identity.Mode {
	case IdentityJWT:
		if c.Identity.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when IDENTITY_MODE=jwt"))
		}
	case IdentityRemote:
		if c.Identity.AuthURL == "" || c.Identity.APIKey == "" {
			errs = append(errs, errors.New("AUTH_URL and AUTH_API_KEY are required when IDENTITY_MODE=remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_MODE %q", c.Identity.Mode))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver))
	}

	if c.Notification.BatchSize < 1 || c.Notification.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Errorf("NOTIFICATION_BATCH_SIZE must be between 1 and %d", MaxBatchSize))
	}

	if c.RateLimit.Enabled {
		for name, p := range map[string]Policy{"read": c.RateLimit.Read(), "write": c.RateLimit.Write(), "admin": c.RateLimit.Admin()} {
			if p.Window <= 0 || p.Max <= 0 {
				errs = append(errs, fmt.Errorf("rate limit policy %s needs a positive window and max", name))
			}
		}
	}

	return errors.Join(errs...)
}
