package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"attendance-sync-api/pkg/validation"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration with validation
type Config struct {
	// Application settings
	Port        int    `yaml:"port" validate:"required,min=1,max=65535"`
	LogLevel    string `yaml:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat   string `yaml:"log_format" validate:"required,oneof=json console"`
	Environment string `yaml:"environment" validate:"required,oneof=development production test"`

	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// Device gateway and sync pipeline
	Gateway        GatewayConfig    `yaml:"gateway"`
	Queue          QueueConfig      `yaml:"queue"`
	EmployeeSync   SyncConfig       `yaml:"employee_sync"`
	AttendanceSync SyncConfig       `yaml:"attendance_sync"`
	Attendance     AttendanceConfig `yaml:"attendance"`

	// Read side and surfaces
	Cache   CacheConfig  `yaml:"cache"`
	Auth    AuthConfig   `yaml:"auth"`
	Uploads UploadConfig `yaml:"uploads"`
	Alerts  AlertConfig  `yaml:"alerts"`

	// Security settings
	Security SecurityConfig `yaml:"security"`

	// Performance settings
	Server ServerConfig `yaml:"server"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"required,oneof=postgres pgx"`
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"required,min=1,max=65535"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" validate:"required,oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// GatewayConfig holds the device gateway client configuration
type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"required"`
	RetryAttempts int           `yaml:"retry_attempts" validate:"min=0,max=5"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	BreakerMaxRequests      uint32        `yaml:"breaker_max_requests" validate:"min=1"`
	BreakerInterval         time.Duration `yaml:"breaker_interval"`
	BreakerTimeout          time.Duration `yaml:"breaker_timeout" validate:"required"`
	BreakerFailureThreshold uint32        `yaml:"breaker_failure_threshold" validate:"min=1"`
}

// QueueConfig controls the shared outbound request queue
type QueueConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`
}

// SyncConfig configures one sync engine and its schedule
type SyncConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Times      []string      `yaml:"times"`
	Interval   time.Duration `yaml:"interval" validate:"required"`
	RunAtStart bool          `yaml:"run_at_start"`
	Delay      time.Duration `yaml:"delay"`
	BulkSize   int           `yaml:"bulk_size" validate:"min=1,max=10000"`
	Debug      bool          `yaml:"debug"`
}

// AttendanceConfig holds attendance storage policy
type AttendanceConfig struct {
	// TimeOffset is subtracted from device event times before dedup and storage.
	TimeOffset time.Duration `yaml:"time_offset"`
}

// CacheConfig holds employee list cache settings
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int64         `yaml:"max_entries" validate:"min=1"`
}

// AuthConfig holds token authentication settings
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" validate:"required"`
	Issuer    string        `yaml:"issuer"`
}

// UploadConfig holds profile image storage settings
type UploadConfig struct {
	Dir           string `yaml:"dir" validate:"required"`
	MaxBytes      int64  `yaml:"max_bytes" validate:"min=1024"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// AlertConfig holds the sync alert webhook configuration. Alerts are off when URL is empty.
type AlertConfig struct {
	URL            string        `yaml:"url" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" validate:"required"`
	RetryAttempts  int           `yaml:"retry_attempts" validate:"min=0,max=10"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	MaxPayloadSize int64         `yaml:"max_payload_size" validate:"min=1024"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimitRPS    int           `yaml:"rate_limit_rps" validate:"min=1"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" validate:"min=1"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"required"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// ServerConfig holds server performance configuration
type ServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" validate:"required"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" validate:"min=1024"`
	EnableMetrics  bool          `yaml:"enable_metrics"`
}

var timeOfDayPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:        8080,
		LogLevel:    "info",
		LogFormat:   "json",
		Environment: "development",

		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			AutoMigrate:     true,
		},

		Gateway: GatewayConfig{
			BaseURL:                 "http://localhost:4000/api",
			Timeout:                 60 * time.Second,
			RetryAttempts:           0,
			RetryDelay:              time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         0,
			BreakerTimeout:          2 * time.Minute,
			BreakerFailureThreshold: 5,
		},

		Queue: QueueConfig{
			Enabled: true,
			Delay:   60 * time.Second,
		},

		EmployeeSync: SyncConfig{
			Enabled:    true,
			Interval:   90 * time.Minute,
			RunAtStart: true,
			Delay:      60 * time.Second,
			BulkSize:   500,
		},

		AttendanceSync: SyncConfig{
			Enabled:    true,
			Interval:   120 * time.Minute,
			RunAtStart: true,
			Delay:      60 * time.Second,
			BulkSize:   500,
		},

		Attendance: AttendanceConfig{
			TimeOffset: 360 * time.Minute,
		},

		Cache: CacheConfig{
			Enabled:    true,
			TTL:        30 * time.Second,
			MaxEntries: 1000,
		},

		Auth: AuthConfig{
			Enabled:  true,
			TokenTTL: time.Hour,
			Issuer:   "attendance-sync-api",
		},

		Uploads: UploadConfig{
			Dir:      "uploads",
			MaxBytes: 5 << 20,
		},

		Alerts: AlertConfig{
			Timeout:        10 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     time.Second,
			MaxPayloadSize: 1024 * 1024,
		},

		Security: SecurityConfig{
			RateLimitRPS:    100,
			RateLimitBurst:  200,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			EnableCORS:      true,
			AllowedOrigins:  []string{"*"},
			TrustedProxies:  []string{},
		},

		Server: ServerConfig{
			ReadTimeout: 10 * time.Second,
			// manual sync requests hold the connection for the whole run
			WriteTimeout:   15 * time.Minute,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
			EnableMetrics:  true,
		},
	}
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides config with any environment variables that are set.
func applyEnv(c *Config) {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Environment = getEnv("APP_ENV", c.Environment)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)
	c.Database.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Gateway.BaseURL = getEnv("EXTERNAL_EMP_API_URL", c.Gateway.BaseURL)
	c.Gateway.Timeout = getEnvAsMillis("EXTERNAL_EMP_API_TIMEOUT_MS", c.Gateway.Timeout)
	c.Gateway.RetryAttempts = getEnvAsInt("GATEWAY_RETRY_ATTEMPTS", c.Gateway.RetryAttempts)
	c.Gateway.RetryDelay = getEnvAsDuration("GATEWAY_RETRY_DELAY", c.Gateway.RetryDelay)
	c.Gateway.BreakerMaxRequests = uint32(getEnvAsInt("GATEWAY_BREAKER_MAX_REQUESTS", int(c.Gateway.BreakerMaxRequests)))
	c.Gateway.BreakerInterval = getEnvAsDuration("GATEWAY_BREAKER_INTERVAL", c.Gateway.BreakerInterval)
	c.Gateway.BreakerTimeout = getEnvAsDuration("GATEWAY_BREAKER_TIMEOUT", c.Gateway.BreakerTimeout)
	c.Gateway.BreakerFailureThreshold = uint32(getEnvAsInt("GATEWAY_BREAKER_FAILURES", int(c.Gateway.BreakerFailureThreshold)))

	c.Queue.Enabled = getEnvAsBool("REQUEST_QUEUE_ENABLED", c.Queue.Enabled)
	c.Queue.Delay = getEnvAsMillis("REQUEST_QUEUE_DELAY_MS", c.Queue.Delay)

	applySyncEnv("API_SYNC", "EXTERNAL_SYNC_DEBUG", &c.EmployeeSync)
	applySyncEnv("ATT_SYNC", "ATT_SYNC_DEBUG", &c.AttendanceSync)

	c.Attendance.TimeOffset = getEnvAsMinutes("ATTENDANCE_TIME_OFFSET_MINUTES", c.Attendance.TimeOffset)

	c.Cache.Enabled = getEnvAsBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.TTL = getEnvAsMillis("CACHE_TTL_MS", c.Cache.TTL)
	c.Cache.MaxEntries = getEnvAsInt64("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Auth.Enabled = getEnvAsBool("AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getEnvAsDuration("AUTH_TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.Issuer = getEnv("AUTH_ISSUER", c.Auth.Issuer)

	c.Uploads.Dir = getEnv("UPLOAD_DIR", c.Uploads.Dir)
	c.Uploads.MaxBytes = getEnvAsInt64("UPLOAD_MAX_BYTES", c.Uploads.MaxBytes)
	c.Uploads.PublicBaseURL = getEnv("UPLOAD_PUBLIC_BASE_URL", c.Uploads.PublicBaseURL)

	c.Alerts.URL = getEnv("SYNC_ALERT_URL", c.Alerts.URL)
	c.Alerts.Timeout = getEnvAsDuration("SYNC_ALERT_TIMEOUT", c.Alerts.Timeout)
	c.Alerts.RetryAttempts = getEnvAsInt("SYNC_ALERT_RETRY_ATTEMPTS", c.Alerts.RetryAttempts)
	c.Alerts.RetryDelay = getEnvAsDuration("SYNC_ALERT_RETRY_DELAY", c.Alerts.RetryDelay)
	c.Alerts.MaxPayloadSize = getEnvAsInt64("SYNC_ALERT_MAX_PAYLOAD_SIZE", c.Alerts.MaxPayloadSize)

	c.Security.RateLimitRPS = getEnvAsInt("RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", c.Security.RequestTimeout)
	c.Security.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Security.ShutdownTimeout)
	c.Security.EnableCORS = getEnvAsBool("ENABLE_CORS", c.Security.EnableCORS)
	c.Security.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.TrustedProxies = getEnvAsSlice("TRUSTED_PROXIES", c.Security.TrustedProxies)

	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.MaxHeaderBytes = getEnvAsInt("SERVER_MAX_HEADER_BYTES", c.Server.MaxHeaderBytes)
	c.Server.EnableMetrics = getEnvAsBool("ENABLE_METRICS", c.Server.EnableMetrics)
}

func applySyncEnv(prefix, debugKey string, s *SyncConfig) {
	s.Enabled = getEnvAsBool(prefix+"_ENABLED", s.Enabled)
	s.Times = getEnvAsSlice(prefix+"_TIMES", s.Times)
	s.Interval = getEnvAsMinutes(prefix+"_INTERVAL_MINUTES", s.Interval)
	s.RunAtStart = getEnvAsBool(prefix+"_RUN_AT_START", s.RunAtStart)
	s.Delay = getEnvAsMillis(prefix+"_DELAY_MS", s.Delay)
	s.BulkSize = getEnvAsInt(prefix+"_BULK_SIZE", s.BulkSize)
	s.Debug = getEnvAsBool(debugKey, s.Debug)
}

// validateConfig runs struct tag validation plus the cross-field rules
func validateConfig(config *Config) error {
	var errors []string

	for field, msg := range validation.Struct(config) {
		errors = append(errors, fmt.Sprintf("%s %s", field, msg))
	}

	if config.Environment == "production" && config.Database.Password == "" {
		errors = append(errors, "database password is required in production")
	}
	if config.Auth.Enabled && len(config.Auth.JWTSecret) < 16 {
		errors = append(errors, "JWT secret of at least 16 characters is required when auth is enabled")
	}

	for _, sc := range []struct {
		name string
		cfg  SyncConfig
	}{{"API_SYNC_TIMES", config.EmployeeSync}, {"ATT_SYNC_TIMES", config.AttendanceSync}} {
		for _, t := range sc.cfg.Times {
			if !timeOfDayPattern.MatchString(strings.TrimSpace(t)) {
				errors = append(errors, fmt.Sprintf("%s entry %q is not HH:MM", sc.name, t))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// TestMode reports whether pacing delays should be skipped.
func (c *Config) TestMode() bool {
	return c.Environment == "test"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsMillis reads an integer number of milliseconds.
func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvAsMinutes reads an integer number of minutes.
func getEnvAsMinutes(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if m, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(m) * time.Minute
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
