package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	LogLevel   string
	HTTPAddr   string
	DBType     string
	DBDSN      string
	SQLitePath string
	DataFile   string

	AuthMode       string
	JWTSecret      string
	AuthServiceURL string
	SeedUserID     string

	RewardTimezone        string
	EnforceAccrualCeiling bool
	AccrualPerMinute      float64

	RateLimitRPS   float64
	RateLimitBurst int
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		c, err := FromEnv()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// FromEnv reads the configuration from the process environment without
// touching the package singleton.
func FromEnv() (*Config, error) {
	c := &Config{
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8088"),
		DBType:         getEnv("STORAGE_BACKEND", "file"),
		DBDSN:          getEnv("POSTGRES_DSN", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "data/sleepcash.db"),
		DataFile:       getEnv("DATA_FILE", "data/sleepcash.json"),
		AuthMode:       getEnv("AUTH_MODE", "jwt"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AuthServiceURL: getEnv("AUTH_SERVICE_URL", ""),
		SeedUserID:     getEnv("SEED_USER_ID", ""),
		RewardTimezone: getEnv("REWARD_TIMEZONE", "UTC"),
	}
	var err error
	if c.EnforceAccrualCeiling, err = getBool("REWARD_ENFORCE_ACCRUAL_CEILING", false); err != nil {
		return nil, err
	}
	if c.AccrualPerMinute, err = getFloat("REWARD_ACCRUAL_PER_MINUTE", 1); err != nil {
		return nil, err
	}
	if c.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if c.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "file":
	default:
		return errors.New("STORAGE_BACKEND must be one of: file, sqlite, postgres")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.AuthMode {
	case "jwt":
		if c.JWTSecret == "" && c.Env != "development" {
			return errors.New("JWT_SECRET is required outside development when AUTH_MODE=jwt")
		}
	case "remote":
		if c.AuthServiceURL == "" {
			return errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
	default:
		return errors.New("AUTH_MODE must be one of: jwt, remote")
	}
	if _, err := time.LoadLocation(c.RewardTimezone); err != nil {
		return fmt.Errorf("REWARD_TIMEZONE: %w", err)
	}
	if c.AccrualPerMinute <= 0 {
		return errors.New("REWARD_ACCRUAL_PER_MINUTE must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Location returns the time zone used for day-key resolution.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RewardTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Secret returns the JWT signing secret, falling back to a fixed development
// value so a local run works without any setup.
func (c *Config) Secret() string {
	if c.JWTSecret == "" && c.Env == "development" {
		return "dev-secret-change-me"
	}
	return c.JWTSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
