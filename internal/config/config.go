package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	SLA       SLAConfig       `mapstructure:"sla"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// SLAConfig values are integer minutes.
type SLAConfig struct {
	DefaultDurationMinutes        int    `mapstructure:"default_duration_minutes"`
	SchedulerIntervalMinutes      int    `mapstructure:"scheduler_interval_minutes"`
	ReminderBeforeDeadlineMinutes int    `mapstructure:"reminder_before_deadline_minutes"`
	AtRiskWindowMinutes           int    `mapstructure:"at_risk_window_minutes"`
	SystemUserID                  string `mapstructure:"system_user_id"`
}

func (c SLAConfig) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

func (c SLAConfig) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalMinutes) * time.Minute
}

func (c SLAConfig) ReminderWindow() time.Duration {
	return time.Duration(c.ReminderBeforeDeadlineMinutes) * time.Minute
}

func (c SLAConfig) AtRiskWindow() time.Duration {
	return time.Duration(c.AtRiskWindowMinutes) * time.Minute
}

// SystemActor is the actor recorded on scheduler-driven transitions.
// An empty or malformed id yields uuid.Nil.
func (c SLAConfig) SystemActor() uuid.UUID {
	id, err := uuid.Parse(c.SystemUserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

type DispatchConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffUnit  time.Duration `mapstructure:"backoff_unit"`
	UserCacheTTL time.Duration `mapstructure:"user_cache_ttl"`
}

type SMTPConfig struct {
	Host          string  `mapstructure:"host" envconfig:"HOST"`
	Port          int     `mapstructure:"port" envconfig:"PORT"`
	Username      string  `mapstructure:"username" envconfig:"USERNAME"`
	Password      string  `mapstructure:"password" envconfig:"PASSWORD"`
	FromEmail     string  `mapstructure:"from_email" envconfig:"FROM_EMAIL"`
	FromName      string  `mapstructure:"from_name" envconfig:"FROM_NAME"`
	RatePerSecond float64 `mapstructure:"rate_per_second" envconfig:"RATE_PER_SECOND"`
	Burst         int     `mapstructure:"burst" envconfig:"BURST"`
}

type AppConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	// ConnectTimeout bounds both the dial and the startup ping.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
}

type SchedulerConfig struct {
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	PageSize int           `mapstructure:"page_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sla.default_duration_minutes", 120)
	v.SetDefault("sla.scheduler_interval_minutes", 5)
	v.SetDefault("sla.reminder_before_deadline_minutes", 30)
	v.SetDefault("sla.at_risk_window_minutes", 60)
	v.SetDefault("sla.system_user_id", "")

	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.backoff_unit", time.Second)
	v.SetDefault("dispatch.user_cache_ttl", 5*time.Minute)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from_email", "")
	v.SetDefault("smtp.from_name", "Lead Management")
	v.SetDefault("smtp.rate_per_second", 5.0)
	v.SetDefault("smtp.burst", 5)

	v.SetDefault("app.url", "http://localhost:5173")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "leads")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("store.driver", StoreDriverPostgres)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("scheduler.lock_ttl", time.Minute)
	v.SetDefault("scheduler.page_size", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// LoadConfig reads config.yml from the usual locations. A missing file is
// not an error: defaults and environment variables still apply.
// LoadConfig reads an optional .env into the process environment, then
// the config file from the usual locations.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(".", "./config", "/app", "/app/config")
}

func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

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

	// SMTP_* overrides whatever the file says
	if err := envconfig.Process("smtp", &cfg.SMTP); err != nil {
		return nil, fmt.Errorf("failed to read smtp environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SLA.SchedulerIntervalMinutes <= 0 {
		errs = append(errs, errors.New("sla.scheduler_interval_minutes must be positive"))
	}
	if c.SLA.ReminderBeforeDeadlineMinutes <= 0 {
		errs = append(errs, errors.New("sla.reminder_before_deadline_minutes must be positive"))
	}
	if c.SLA.DefaultDurationMinutes <= 0 {
		errs = append(errs, errors.New("sla.default_duration_minutes must be positive"))
	}
	if c.SLA.AtRiskWindowMinutes <= 0 {
		errs = append(errs, errors.New("sla.at_risk_window_minutes must be positive"))
	}
	if c.SLA.SystemUserID != "" {
		if _, err := uuid.Parse(c.SLA.SystemUserID); err != nil {
			errs = append(errs, fmt.Errorf("sla.system_user_id: %w", err))
		}
	}
	if c.Dispatch.MaxRetries < 1 {
		errs = append(errs, errors.New("dispatch.max_retries must be at least 1"))
	}
	if c.Dispatch.BackoffUnit < 0 {
		errs = append(errs, errors.New("dispatch.backoff_unit must not be negative"))
	}
	if c.Scheduler.PageSize <= 0 {
		errs = append(errs, errors.New("scheduler.page_size must be positive"))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.ConnectTimeout <= 0 {
			errs = append(errs, errors.New("database.connect_timeout must be positive"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.Store.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
