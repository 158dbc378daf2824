package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Sync      SyncConfig
	Remote    RemoteConfig
	Inventory InventoryConfig
	Duty      DutyConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level              string // debug, info, warn, error
	Format             string // json, console
	Output             string // stdout, stderr, or file path
	SlowQueryThreshold time.Duration
}

// DatabaseConfig holds local store settings. The sqlite driver keeps the
// store in a single file; postgres serves shared installations.
type DatabaseConfig struct {
	Driver          string // sqlite, postgres
	Path            string // sqlite file
	BusyTimeout     time.Duration
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// SyncConfig controls the background sync engine
type SyncConfig struct {
	Enabled        bool
	Interval       time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
	CycleTimeout   time.Duration
}

// RemoteConfig selects and configures the remote ledger
type RemoteConfig struct {
	Driver string // memory, http, s3, redis
	HTTP   RemoteHTTPConfig
	S3     RemoteS3Config
	Redis  RemoteRedisConfig
}

// RemoteHTTPConfig configures the REST ledger gateway
type RemoteHTTPConfig struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// RemoteS3Config configures the object-store ledger
type RemoteS3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// RemoteRedisConfig configures the Redis ledger
type RemoteRedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port
func (r RemoteRedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// InventoryConfig selects the batch allocation strategy. Empty means the
// registry default (fifo).
type InventoryConfig struct {
	Strategy string
}

// DutyConfig holds per-litre-of-pure-alcohol rates, the small producer
// relief bands and the producer's annual output used to pick a band.
// Values are decimal strings.
type DutyConfig struct {
	EffectiveFrom       string
	RateDraughtLow      string
	RateDraughtStandard string
	RateNonDraught      string
	RateHighABV         string
	AnnualProductionHL  string
	ReliefBands         []ReliefBandConfig
}

// ReliefBandConfig is one [[duty.relief_bands]] table. UpToHL is the
// inclusive upper bound of annual output in hectolitres.
type ReliefBandConfig struct {
	UpToHL          string `mapstructure:"up_to_hl"`
	DraughtLow      string `mapstructure:"draught_low"`
	DraughtStandard string `mapstructure:"draught_standard"`
	NonDraught      string `mapstructure:"non_draught"`
}

// HTTPConfig holds admin HTTP server configuration
type HTTPConfig struct {
	Enabled      bool
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
	RateLimit    int // requests per client per minute, 0 disables
}

// TelemetryConfig holds OpenTelemetry tracing settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BREW_ prefix (e.g., BREW_DATABASE_PATH)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/brewery")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			BusyTimeout:     v.GetDuration("database.busy_timeout"),
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
		},
		Log: LogConfig{
			Level:              v.GetString("log.level"),
			Format:             v.GetString("log.format"),
			Output:             v.GetString("log.output"),
			SlowQueryThreshold: v.GetDuration("log.slow_query_threshold"),
		},
		Sync: SyncConfig{
			Enabled:        v.GetBool("sync.enabled"),
			Interval:       v.GetDuration("sync.interval"),
			MaxAttempts:    v.GetInt("sync.max_attempts"),
			InitialBackoff: v.GetDuration("sync.initial_backoff"),
			MaxBackoff:     v.GetDuration("sync.max_backoff"),
			MaxElapsed:     v.GetDuration("sync.max_elapsed"),
			CycleTimeout:   v.GetDuration("sync.cycle_timeout"),
		},
		Remote: RemoteConfig{
			Driver: v.GetString("remote.driver"),
			HTTP: RemoteHTTPConfig{
				BaseURL:           v.GetString("remote.http.base_url"),
				Token:             v.GetString("remote.http.token"),
				Timeout:           v.GetDuration("remote.http.timeout"),
				RequestsPerSecond: v.GetFloat64("remote.http.requests_per_second"),
				Burst:             v.GetInt("remote.http.burst"),
			},
			S3: RemoteS3Config{
				Bucket:          v.GetString("remote.s3.bucket"),
				Prefix:          v.GetString("remote.s3.prefix"),
				Region:          v.GetString("remote.s3.region"),
				Endpoint:        v.GetString("remote.s3.endpoint"),
				AccessKeyID:     v.GetString("remote.s3.access_key_id"),
				SecretAccessKey: v.GetString("remote.s3.secret_access_key"),
				UsePathStyle:    v.GetBool("remote.s3.use_path_style"),
			},
			Redis: RemoteRedisConfig{
				Host:      v.GetString("remote.redis.host"),
				Port:      v.GetInt("remote.redis.port"),
				Password:  v.GetString("remote.redis.password"),
				DB:        v.GetInt("remote.redis.db"),
				KeyPrefix: v.GetString("remote.redis.key_prefix"),
			},
		},
		Inventory: InventoryConfig{
			Strategy: v.GetString("inventory.strategy"),
		},
		Duty: DutyConfig{
			EffectiveFrom:       v.GetString("duty.effective_from"),
			RateDraughtLow:      v.GetString("duty.rate_draught_low"),
			RateDraughtStandard: v.GetString("duty.rate_draught_standard"),
			RateNonDraught:      v.GetString("duty.rate_non_draught"),
			RateHighABV:         v.GetString("duty.rate_high_abv"),
			AnnualProductionHL:  v.GetString("duty.annual_production_hl"),
		},
		HTTP: HTTPConfig{
			Enabled:      !v.IsSet("http.enabled") || v.GetBool("http.enabled"),
			Address:      v.GetString("http.address"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodyBytes: v.GetInt64("http.max_body_bytes"),
			RateLimit:    v.GetInt("http.rate_limit"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	// Sync runs unless explicitly disabled
	cfg.Sync.Enabled = !v.IsSet("sync.enabled") || cfg.Sync.Enabled

	if err := v.UnmarshalKey("duty.relief_bands", &cfg.Duty.ReliefBands); err != nil {
		return nil, fmt.Errorf("invalid duty.relief_bands: %w", err)
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
		cfg.App.Name = "brewd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "brewery.db"
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
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
		cfg.Database.DBName = "brewery"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
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
	if cfg.Log.SlowQueryThreshold == 0 {
		cfg.Log.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 5 * time.Minute
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 5
	}
	if cfg.Sync.InitialBackoff == 0 {
		cfg.Sync.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Sync.MaxBackoff == 0 {
		cfg.Sync.MaxBackoff = 30 * time.Second
	}
	if cfg.Sync.MaxElapsed == 0 {
		cfg.Sync.MaxElapsed = 2 * time.Minute
	}
	if cfg.Sync.CycleTimeout == 0 {
		cfg.Sync.CycleTimeout = 10 * time.Minute
	}
	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = "memory"
	}
	if cfg.Remote.HTTP.Timeout == 0 {
		cfg.Remote.HTTP.Timeout = 30 * time.Second
	}
	if cfg.Remote.HTTP.RequestsPerSecond == 0 {
		// Spreadsheet-style services allow roughly one write per second per user
		cfg.Remote.HTTP.RequestsPerSecond = 1
	}
	if cfg.Remote.HTTP.Burst == 0 {
		cfg.Remote.HTTP.Burst = 5
	}
	if cfg.Remote.S3.Region == "" {
		cfg.Remote.S3.Region = "eu-west-2"
	}
	if cfg.Remote.S3.Prefix == "" {
		cfg.Remote.S3.Prefix = "ledger/"
	}
	if cfg.Remote.Redis.Host == "" {
		cfg.Remote.Redis.Host = "localhost"
	}
	if cfg.Remote.Redis.Port == 0 {
		cfg.Remote.Redis.Port = 6379
	}
	if cfg.Remote.Redis.KeyPrefix == "" {
		cfg.Remote.Redis.KeyPrefix = "ledger"
	}
	if cfg.Duty.EffectiveFrom == "" {
		cfg.Duty.EffectiveFrom = "2025-02-01"
	}
	if cfg.Duty.RateDraughtLow == "" {
		cfg.Duty.RateDraughtLow = "8.42"
	}
	if cfg.Duty.RateDraughtStandard == "" {
		cfg.Duty.RateDraughtStandard = "19.27"
	}
	if cfg.Duty.RateNonDraught == "" {
		cfg.Duty.RateNonDraught = "22.01"
	}
	if cfg.Duty.RateHighABV == "" {
		cfg.Duty.RateHighABV = "29.54"
	}
	if cfg.Duty.AnnualProductionHL == "" {
		cfg.Duty.AnnualProductionHL = "0"
	}
	for i := range cfg.Duty.ReliefBands {
		b := &cfg.Duty.ReliefBands[i]
		for _, rel := range []*string{&b.DraughtLow, &b.DraughtStandard, &b.NonDraught} {
			if *rel == "" {
				*rel = "0"
			}
		}
	}
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = "127.0.0.1:8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
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

	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be at least 1")
	}
	if c.Sync.InitialBackoff > c.Sync.MaxBackoff {
		return fmt.Errorf("sync.initial_backoff (%s) cannot exceed sync.max_backoff (%s)",
			c.Sync.InitialBackoff, c.Sync.MaxBackoff)
	}

	switch c.Remote.Driver {
	case "memory":
	case "http":
		if c.Remote.HTTP.BaseURL == "" {
			return fmt.Errorf("remote.http.base_url is required for the http driver")
		}
		if _, err := url.ParseRequestURI(c.Remote.HTTP.BaseURL); err != nil {
			return fmt.Errorf("remote.http.base_url is invalid: %w", err)
		}
	case "s3":
		if c.Remote.S3.Bucket == "" {
			return fmt.Errorf("remote.s3.bucket is required for the s3 driver")
		}
	case "redis":
	default:
		return fmt.Errorf("remote.driver must be memory, http, s3 or redis, got %q", c.Remote.Driver)
	}

	if _, err := time.Parse("2006-01-02", c.Duty.EffectiveFrom); err != nil {
		return fmt.Errorf("duty.effective_from must be a YYYY-MM-DD date: %w", err)
	}
	dutyValues := map[string]string{
		"duty.rate_draught_low":      c.Duty.RateDraughtLow,
		"duty.rate_draught_standard": c.Duty.RateDraughtStandard,
		"duty.rate_non_draught":      c.Duty.RateNonDraught,
		"duty.rate_high_abv":         c.Duty.RateHighABV,
		"duty.annual_production_hl":  c.Duty.AnnualProductionHL,
	}
	for i, b := range c.Duty.ReliefBands {
		prefix := fmt.Sprintf("duty.relief_bands[%d].", i)
		dutyValues[prefix+"up_to_hl"] = b.UpToHL
		dutyValues[prefix+"draught_low"] = b.DraughtLow
		dutyValues[prefix+"draught_standard"] = b.DraughtStandard
		dutyValues[prefix+"non_draught"] = b.NonDraught
	}
	for key, value := range dutyValues {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%s must be a decimal: %w", key, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s cannot be negative", key)
		}
	}

	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	if c.App.Env == "production" && c.Remote.Driver == "memory" {
		return fmt.Errorf("remote.driver cannot be memory in production")
	}

	return nil
}

// DSN returns the driver-specific connection string
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		q := url.Values{}
		q.Set("_journal_mode", "WAL")
		q.Set("_busy_timeout", fmt.Sprintf("%d", d.BusyTimeout.Milliseconds()))
		q.Set("_foreign_keys", "on")
		return "file:" + d.Path + "?" + q.Encode()
	}
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
