package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	TargetURL         string
	DatabaseURL       string
	ServerPort        string
	Headless          bool
	StatusFilter      string
	TimeZone          string
	RetentionDays     int
	DetailMinInterval time.Duration
	PreflightEnabled  bool
	ExportDir         string
	LogLevel          string
	LogFormat         string
	LogFile           string

	Database  DatabaseConfig
	Selectors Selectors
	Timing    Timing
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// DefaultDatabaseConfig returns default pool settings; sqlite connections are capped to one by the database package
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// RetentionWindow returns how long a collected record is kept regardless of its deadline
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Location resolves TimeZone, falling back to the local zone
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		logrus.Warnf("Invalid TIMEZONE value: %s, using local time", c.TimeZone)
		return time.Local
	}
	return loc
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	timing := DefaultTiming()
	timing.NavigationTimeout = getEnvSeconds("NAVIGATION_TIMEOUT_SECONDS", timing.NavigationTimeout)

	return &Config{
		TargetURL:         getEnv("TARGET_URL", "https://nuri.g2b.go.kr/"),
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite://data/bids.db"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		Headless:          getEnvBool("HEADLESS", true),
		StatusFilter:      getEnv("STATUS_FILTER", "입찰개시"),
		TimeZone:          getEnv("TIMEZONE", "Asia/Seoul"),
		RetentionDays:     getEnvInt("RETENTION_DAYS", 31),
		DetailMinInterval: time.Duration(getEnvInt("DETAIL_MIN_INTERVAL_MS", 1000)) * time.Millisecond,
		PreflightEnabled:  getEnvBool("PREFLIGHT_ENABLED", true),
		ExportDir:         getEnv("EXPORT_DIR", "data/exports"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		LogFile:           getEnv("LOG_FILE", ""),
		Database:          DefaultDatabaseConfig(),
		Selectors:         DefaultSelectors(),
		Timing:            timing,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %t", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	seconds := getEnvInt(key, int(fallback/time.Second))
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
