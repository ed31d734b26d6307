package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Chrome    ChromeConfig
	Mail      MailConfig
	Messaging MessagingConfig
	Dispatch  DispatchConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Swagger   SwaggerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int    // in minutes
	ConnMaxIdleTime int    // in minutes
	LogLevel        string // silent, error, warn, info
}

// RedisConfig holds Redis connection settings.
// When disabled, idempotency keys are kept in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Driver            string // s3, memory
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	PublicBaseURL     string // when set, artifact URLs are built from it instead of presigned
	KeyPrefix         string
}

// ChromeConfig holds the headless Chrome settings used for PDF conversion
type ChromeConfig struct {
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
}

// MailConfig holds SMTP settings
type MailConfig struct {
	Driver   string // smtp, log
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// MessagingConfig holds the instant-message gateway settings
type MessagingConfig struct {
	Driver           string // api, log
	BaseURL          string
	Token            string
	SenderID         string
	Timeout          time.Duration
	CreateTemplate   string
	ResendTemplate   string
	TemplateLanguage string
	// DefaultRegion is the ISO region used for numbers without a + prefix
	DefaultRegion string
}

// DispatchConfig holds inquiry dispatch behaviour
type DispatchConfig struct {
	// LiveSendingEnabled allows caller-supplied external recipients to be contacted.
	// When false only internal staff receive notifications.
	LiveSendingEnabled bool

	// Status display names matched against the inquiry status table at startup
	StatusOpenName      string
	StatusSubmittedName string
	StatusCancelledName string
	StatusClosedName    string

	IdempotencyTTL        time.Duration
	AttachmentGracePeriod time.Duration
	SweepInterval         time.Duration
	SweepBatchSize        int

	CompanyName  string
	ContactName  string
	ContactEmail string
	ContactPhone string

	ResendMessageMode string // document, template
	MaxSendAttempts   int
	SendRetryInterval time.Duration
	ImageMaxWidth     int
	ImageMaxHeight    int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to export traces
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool

	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool

	DBTraceEnabled       bool
	DBLogFullSQL         bool // include query variables in span statements
	DBSlowQueryThreshold time.Duration
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string // cpu, alloc_objects, alloc_space, inuse_objects, inuse_space, goroutines, mutex, block
	SpanProfiles      bool     // link CPU profiles to trace spans
}

// SwaggerConfig holds the API documentation endpoint configuration
type SwaggerConfig struct {
	Enabled    bool
	AllowedIPs []string // IP or CIDR whitelist (empty = allow all)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			PublicBaseURL:     v.GetString("storage.public_base_url"),
			KeyPrefix:         v.GetString("storage.key_prefix"),
		},
		Chrome: ChromeConfig{
			RemoteURL: v.GetString("chrome.remote_url"),
			NoSandbox: v.GetBool("chrome.no_sandbox"),
			Timeout:   v.GetDuration("chrome.timeout"),
		},
		Mail: MailConfig{
			Driver:   v.GetString("mail.driver"),
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
			FromName: v.GetString("mail.from_name"),
			Timeout:  v.GetDuration("mail.timeout"),
		},
		Messaging: MessagingConfig{
			Driver:           v.GetString("messaging.driver"),
			BaseURL:          v.GetString("messaging.base_url"),
			Token:            v.GetString("messaging.token"),
			SenderID:         v.GetString("messaging.sender_id"),
			Timeout:          v.GetDuration("messaging.timeout"),
			CreateTemplate:   v.GetString("messaging.create_template"),
			ResendTemplate:   v.GetString("messaging.resend_template"),
			TemplateLanguage: v.GetString("messaging.template_language"),
			DefaultRegion:    v.GetString("messaging.default_region"),
		},
		Dispatch: DispatchConfig{
			LiveSendingEnabled:    v.GetBool("dispatch.live_sending_enabled"),
			StatusOpenName:        v.GetString("dispatch.status_open_name"),
			StatusSubmittedName:   v.GetString("dispatch.status_submitted_name"),
			StatusCancelledName:   v.GetString("dispatch.status_cancelled_name"),
			StatusClosedName:      v.GetString("dispatch.status_closed_name"),
			IdempotencyTTL:        v.GetDuration("dispatch.idempotency_ttl"),
			AttachmentGracePeriod: v.GetDuration("dispatch.attachment_grace_period"),
			SweepInterval:         v.GetDuration("dispatch.sweep_interval"),
			SweepBatchSize:        v.GetInt("dispatch.sweep_batch_size"),
			CompanyName:           v.GetString("dispatch.company_name"),
			ContactName:           v.GetString("dispatch.contact_name"),
			ContactEmail:          v.GetString("dispatch.contact_email"),
			ContactPhone:          v.GetString("dispatch.contact_phone"),
			ResendMessageMode:     v.GetString("dispatch.resend_message_mode"),
			MaxSendAttempts:       v.GetInt("dispatch.max_send_attempts"),
			SendRetryInterval:     v.GetDuration("dispatch.send_retry_interval"),
			ImageMaxWidth:         v.GetInt("dispatch.image_max_width"),
			ImageMaxHeight:        v.GetInt("dispatch.image_max_height"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sourcing-dispatch"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "sourcing"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// document rendering and SMTP delivery happen inside the request
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "s3"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "sourcing-artifacts"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 7 * 24 * time.Hour
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "dispatch"
	}
	if cfg.Chrome.Timeout == 0 {
		cfg.Chrome.Timeout = 30 * time.Second
	}
	if cfg.Mail.Driver == "" {
		cfg.Mail.Driver = "log"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.Timeout == 0 {
		cfg.Mail.Timeout = 30 * time.Second
	}
	if cfg.Messaging.Driver == "" {
		cfg.Messaging.Driver = "log"
	}
	if cfg.Messaging.Timeout == 0 {
		cfg.Messaging.Timeout = 15 * time.Second
	}
	if cfg.Messaging.CreateTemplate == "" {
		cfg.Messaging.CreateTemplate = "inquiry_dispatch"
	}
	if cfg.Messaging.ResendTemplate == "" {
		cfg.Messaging.ResendTemplate = "inquiry_resend"
	}
	if cfg.Messaging.TemplateLanguage == "" {
		cfg.Messaging.TemplateLanguage = "en"
	}
	if cfg.Messaging.DefaultRegion == "" {
		cfg.Messaging.DefaultRegion = "SG"
	}
	if cfg.Dispatch.StatusOpenName == "" {
		cfg.Dispatch.StatusOpenName = "Open"
	}
	if cfg.Dispatch.StatusSubmittedName == "" {
		cfg.Dispatch.StatusSubmittedName = "Submitted"
	}
	if cfg.Dispatch.StatusCancelledName == "" {
		cfg.Dispatch.StatusCancelledName = "Cancelled"
	}
	if cfg.Dispatch.StatusClosedName == "" {
		cfg.Dispatch.StatusClosedName = "Closed"
	}
	if cfg.Dispatch.IdempotencyTTL == 0 {
		cfg.Dispatch.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Dispatch.AttachmentGracePeriod == 0 {
		cfg.Dispatch.AttachmentGracePeriod = 24 * time.Hour
	}
	if cfg.Dispatch.SweepInterval == 0 {
		cfg.Dispatch.SweepInterval = time.Hour
	}
	if cfg.Dispatch.SweepBatchSize == 0 {
		cfg.Dispatch.SweepBatchSize = 100
	}
	if cfg.Dispatch.ResendMessageMode == "" {
		cfg.Dispatch.ResendMessageMode = "document"
	}
	if cfg.Dispatch.MaxSendAttempts == 0 {
		cfg.Dispatch.MaxSendAttempts = 1
	}
	if cfg.Dispatch.SendRetryInterval == 0 {
		cfg.Dispatch.SendRetryInterval = 2 * time.Second
	}
	if cfg.Dispatch.ImageMaxWidth == 0 {
		cfg.Dispatch.ImageMaxWidth = 120
	}
	if cfg.Dispatch.ImageMaxHeight == 0 {
		cfg.Dispatch.ImageMaxHeight = 90
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThreshold == 0 {
		cfg.Telemetry.DBSlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Driver {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be 's3' or 'memory', got %q", c.Storage.Driver)
	}

	switch c.Mail.Driver {
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			return fmt.Errorf("mail.host and mail.from are required for the smtp driver")
		}
	case "log":
	default:
		return fmt.Errorf("mail.driver must be 'smtp' or 'log', got %q", c.Mail.Driver)
	}

	switch c.Messaging.Driver {
	case "api":
		if c.Messaging.BaseURL == "" {
			return fmt.Errorf("messaging.base_url is required for the api driver")
		}
	case "log":
	default:
		return fmt.Errorf("messaging.driver must be 'api' or 'log', got %q", c.Messaging.Driver)
	}

	if c.Dispatch.ResendMessageMode != "document" && c.Dispatch.ResendMessageMode != "template" {
		return fmt.Errorf("dispatch.resend_message_mode must be 'document' or 'template', got %q",
			c.Dispatch.ResendMessageMode)
	}
	if c.Dispatch.MaxSendAttempts < 1 {
		return fmt.Errorf("dispatch.max_send_attempts must be at least 1")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.IsProduction() {
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql cannot be enabled in production (query variables carry recipient data)")
		}
		if c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled or IP restricted in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.Driver == "memory" {
			return fmt.Errorf("storage.driver cannot be 'memory' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// IsProduction reports whether the app runs with env "production"
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
