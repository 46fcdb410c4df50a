package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"swagclan/database"
	"swagclan/models"
)

// Store backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// DefaultStorageQuotaBytes is the per-guild storage cap when none is configured
const DefaultStorageQuotaBytes int64 = 1 << 20

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string
	GuildID      string // Registers commands in this guild only when set

	// Store configuration
	StoreBackend string // "file" or "postgres"
	SettingsDir  string
	StorageDir   string

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Bot configuration
	DefaultPrefix     string
	StorageQuotaBytes int64 // 0 disables the cap

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UsesPostgres reports whether guild documents live in the database
func (c *Config) UsesPostgres() bool {
	return c.StoreBackend == BackendPostgres
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Discord
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),

		// Stores
		StoreBackend: strings.ToLower(getEnvWithDefault("STORE_BACKEND", BackendFile)),
		SettingsDir:  getEnvWithDefault("SETTINGS_DIR", "data/settings"),
		StorageDir:   getEnvWithDefault("STORAGE_DIR", "data/storage"),

		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Bot settings with defaults
		DefaultPrefix:     getEnvWithDefault("DEFAULT_PREFIX", "."),
		StorageQuotaBytes: DefaultStorageQuotaBytes,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	// Override defaults if environment variables are set
	if quota := os.Getenv("STORAGE_QUOTA_BYTES"); quota != "" {
		parsed, err := strconv.ParseInt(quota, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("STORAGE_QUOTA_BYTES must be a non-negative integer, got %q", quota)
		}
		config.StorageQuotaBytes = parsed
	}

	if !models.ValidPrefix(config.DefaultPrefix) {
		return nil, fmt.Errorf("DEFAULT_PREFIX must be 1 to 5 non-space characters, got %q", config.DefaultPrefix)
	}

	switch config.StoreBackend {
	case BackendFile, BackendPostgres:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendFile, BackendPostgres, config.StoreBackend)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.UsesPostgres() && config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %s", BackendPostgres)
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:       "test",
		StoreBackend:      BackendFile,
		SettingsDir:       "data/settings",
		StorageDir:        "data/storage",
		DefaultPrefix:     ".",
		StorageQuotaBytes: DefaultStorageQuotaBytes,
		LogLevel:          "info",
	}
}
