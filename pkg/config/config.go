package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Events   EventsConfig
	Notifier NotifierConfig
	Reminder ReminderConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EventsConfig tunes materialization and registration defaults.
type EventsConfig struct {
	// RegOpensOffsetDays / RegClosesOffsetDays are the default offsets,
	// in days before event start, used to derive the registration window
	// when the admin payload does not carry one.
	RegOpensOffsetDays  int
	RegClosesOffsetDays int
	// MaxOccurrences caps how many occurrences one recurrence request may
	// materialize.
	MaxOccurrences int
	// ListCacheTTL bounds staleness of the cached public events listing.
	ListCacheTTL time.Duration
}

// NotifierConfig points at the outbound mail function and sizes its workers.
type NotifierConfig struct {
	Enabled    bool
	SinkURL    string
	Timeout    time.Duration
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// ReminderConfig controls the scheduled reminder sweep.
type ReminderConfig struct {
	Enabled  bool
	CronSpec string
	Lead     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Events = EventsConfig{
		RegOpensOffsetDays:  v.GetInt("EVENTS_REG_OPENS_OFFSET_DAYS"),
		RegClosesOffsetDays: v.GetInt("EVENTS_REG_CLOSES_OFFSET_DAYS"),
		MaxOccurrences:      v.GetInt("EVENTS_MAX_OCCURRENCES"),
		ListCacheTTL:        parseDuration(v.GetString("EVENTS_LIST_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Notifier = NotifierConfig{
		Enabled:    v.GetBool("NOTIFIER_ENABLED"),
		SinkURL:    v.GetString("NOTIFIER_SINK_URL"),
		Timeout:    parseDuration(v.GetString("NOTIFIER_TIMEOUT"), 10*time.Second),
		Workers:    v.GetInt("NOTIFIER_WORKERS"),
		BufferSize: v.GetInt("NOTIFIER_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFIER_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFIER_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Reminder = ReminderConfig{
		Enabled:  v.GetBool("REMINDER_ENABLED"),
		CronSpec: v.GetString("REMINDER_CRON"),
		Lead:     parseDuration(v.GetString("REMINDER_LEAD"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "portal_events")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EVENTS_REG_OPENS_OFFSET_DAYS", 14)
	v.SetDefault("EVENTS_REG_CLOSES_OFFSET_DAYS", 1)
	v.SetDefault("EVENTS_MAX_OCCURRENCES", 366)
	v.SetDefault("EVENTS_LIST_CACHE_TTL", "2m")

	v.SetDefault("NOTIFIER_ENABLED", false)
	v.SetDefault("NOTIFIER_SINK_URL", "http://localhost:9000/.netlify/functions/send-mail")
	v.SetDefault("NOTIFIER_TIMEOUT", "10s")
	v.SetDefault("NOTIFIER_WORKERS", 2)
	v.SetDefault("NOTIFIER_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFIER_MAX_RETRIES", 3)
	v.SetDefault("NOTIFIER_RETRY_DELAY", "5s")

	v.SetDefault("REMINDER_ENABLED", false)
	v.SetDefault("REMINDER_CRON", "@every 15m")
	v.SetDefault("REMINDER_LEAD", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
