package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Waitlist WaitlistConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// WaitlistConfig holds the seating parameters. All three are fixed at
// process start; changing them requires a restart.
type WaitlistConfig struct {
	Capacity               int
	ServiceSecondsPerGuest int
	CheckinTimeoutSeconds  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "waitlist-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "4000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "waitlist:events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Waitlist: WaitlistConfig{
			Capacity:               getEnvAsInt("WAITLIST_CAPACITY", 10),
			ServiceSecondsPerGuest: getEnvAsInt("WAITLIST_SERVICE_SECONDS_PER_GUEST", 3),
			CheckinTimeoutSeconds:  getEnvAsInt("WAITLIST_CHECKIN_TIMEOUT_SECONDS", 60),
		},
	}

	if cfg.Waitlist.Capacity <= 0 {
		return nil, fmt.Errorf("WAITLIST_CAPACITY must be positive, got %d", cfg.Waitlist.Capacity)
	}
	if cfg.Waitlist.ServiceSecondsPerGuest <= 0 {
		return nil, fmt.Errorf("WAITLIST_SERVICE_SECONDS_PER_GUEST must be positive, got %d", cfg.Waitlist.ServiceSecondsPerGuest)
	}
	if cfg.Waitlist.CheckinTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("WAITLIST_CHECKIN_TIMEOUT_SECONDS must be positive, got %d", cfg.Waitlist.CheckinTimeoutSeconds)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ServiceTimePerGuest is the seating duration added per guest in a party.
func (w WaitlistConfig) ServiceTimePerGuest() time.Duration {
	return time.Duration(w.ServiceSecondsPerGuest) * time.Second
}

// CheckinTimeout is the window a ready party has to check in before it is
// forfeited as a no-show.
func (w WaitlistConfig) CheckinTimeout() time.Duration {
	return time.Duration(w.CheckinTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
