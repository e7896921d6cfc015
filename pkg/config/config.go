package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Change-log modes for the change detector.
const (
	ChangeLogAppend = "append" // audit log, repeated runs append duplicates
	ChangeLogDedup  = "dedup"  // skip records already present for the same key
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Polygon PolygonConfig

	// Index engine
	Index IndexConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool

	// API
	CORSAllowedOrigins []string

	// Export
	ExportDir string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PolygonConfig holds Polygon.io market data API configuration
type PolygonConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int // free tier: 5
	Timeout           time.Duration
}

// IndexConfig holds defaults for the equal-weighted index.
// An index definition file (INDEX_CONFIG_PATH) overrides these values.
type IndexConfig struct {
	TopN           int
	LookbackDays   int
	ChangeLogMode  string
	DefinitionPath string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Polygon: PolygonConfig{
			APIKey:            getEnv("POLYGON_API_KEY", ""),
			BaseURL:           getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
			RequestsPerMinute: getEnvAsInt("POLYGON_REQUESTS_PER_MINUTE", 5),
			Timeout:           getEnvAsDuration("POLYGON_TIMEOUT", "30s"),
		},

		// Index engine
		Index: IndexConfig{
			TopN:           getEnvAsInt("INDEX_TOP_N", 100),
			LookbackDays:   getEnvAsInt("INDEX_LOOKBACK_DAYS", 30),
			ChangeLogMode:  strings.ToLower(getEnv("INDEX_CHANGE_LOG_MODE", ChangeLogAppend)),
			DefinitionPath: getEnv("INDEX_CONFIG_PATH", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		ExportDir:          getEnv("EXPORT_DIR", "data/csv"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Index.TopN <= 0 {
		return fmt.Errorf("INDEX_TOP_N must be positive, got %d", c.Index.TopN)
	}

	if c.Index.LookbackDays <= 0 {
		return fmt.Errorf("INDEX_LOOKBACK_DAYS must be positive, got %d", c.Index.LookbackDays)
	}

	if !ValidChangeLogMode(c.Index.ChangeLogMode) {
		return fmt.Errorf("INDEX_CHANGE_LOG_MODE must be one of: %s, %s", ChangeLogAppend, ChangeLogDedup)
	}

	if c.Polygon.RequestsPerMinute <= 0 {
		return fmt.Errorf("POLYGON_REQUESTS_PER_MINUTE must be positive")
	}

	return nil
}

// ValidChangeLogMode reports whether mode is a known change-log mode
func ValidChangeLogMode(mode string) bool {
	return mode == ChangeLogAppend || mode == ChangeLogDedup
}

// Addr returns host:port of the Redis server
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
