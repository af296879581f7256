package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sjsage522/pricemonitor/internal/models"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Store configuration; DatabaseURL selects Postgres over the SQLite file
	DatabaseFile string
	DatabaseURL  string

	// Monitored items file
	ItemsFile string
	Items     []models.MonitoredItem

	// Fetch configuration
	UserAgent      string
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitBlock time.Duration
	ProxyURLs      string

	// Check configuration
	CheckInterval  time.Duration
	MaxConcurrency int
	RunOnce        bool

	// Redis alert stream configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Admin API
	HTTPAddr string

	ErrorLogFile string

	// Environment
	Environment string
}

// itemsFile is the YAML layout of ITEMS_FILE
type itemsFile struct {
	UserAgent string `mapstructure:"user_agent"`
	Database  struct {
		File string `mapstructure:"file"`
	} `mapstructure:"database"`
	Items []models.MonitoredItem `mapstructure:"items"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		DatabaseFile:         getEnv("DATABASE_FILE", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ItemsFile:            getEnv("ITEMS_FILE", "config.yaml"),
		UserAgent:            getEnv("USER_AGENT", ""),
		MaxRetries:           getEnvInt("MAX_RETRIES", 5),
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		RateLimitBlock:       time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		ProxyURLs:            getEnv("PROXY_URLS", ""),
		CheckInterval:        time.Duration(getEnvInt("CHECK_INTERVAL_SECONDS", 3600)) * time.Second,
		MaxConcurrency:       getEnvInt("MAX_CONCURRENCY", 8),
		RunOnce:              getEnvBool("RUN_ONCE", false),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "price_alerts"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", "price_monitor_errors.log"),
		Environment:          getEnv("PRICE_MONITOR_ENVIRONMENT", "development"),
	}
}

// LoadItems reads the monitored items from ItemsFile. A missing file leaves
// the item list empty. user_agent and database.file in the file only apply
// when the environment does not set them.
func (c *Config) LoadItems() error {
	if _, err := os.Stat(c.ItemsFile); errors.Is(err, fs.ErrNotExist) {
		c.applyDefaults()
		return nil
	}

	v := viper.New()
	v.SetConfigFile(c.ItemsFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("failed to read %s", c.ItemsFile), err)
	}

	var file itemsFile
	if err := v.Unmarshal(&file); err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("failed to parse %s", c.ItemsFile), err)
	}

	if c.UserAgent == "" {
		c.UserAgent = file.UserAgent
	}
	if c.DatabaseFile == "" {
		c.DatabaseFile = file.Database.File
	}
	c.applyDefaults()

	items := make([]models.MonitoredItem, 0, len(file.Items))
	for i, item := range file.Items {
		item.URL = strings.TrimSpace(item.URL)
		item.Platform = models.ParsePlatform(item.Platform.String())
		if err := item.Validate(); err != nil {
			return apperrors.NewConfiguration(fmt.Sprintf("invalid item %d in %s", i, c.ItemsFile), err)
		}
		items = append(items, item)
	}
	c.Items = items
	return nil
}

func (c *Config) applyDefaults() {
	if c.DatabaseFile == "" {
		c.DatabaseFile = "price_monitor.db"
	}
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch {
	case c.MaxRetries <= 0:
		return apperrors.NewConfiguration("MAX_RETRIES must be positive", nil)
	case c.MaxConcurrency <= 0:
		return apperrors.NewConfiguration("MAX_CONCURRENCY must be positive", nil)
	case c.CheckInterval <= 0:
		return apperrors.NewConfiguration("CHECK_INTERVAL_SECONDS must be positive", nil)
	case c.RequestTimeout <= 0:
		return apperrors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	case c.RedisAddr != "" && c.RedisStreamCount <= 0:
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	return nil
}

// IsProduction reports whether the production environment is selected
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
