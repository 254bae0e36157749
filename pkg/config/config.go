package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Licensing
	Flavor           string
	UnlockSwitch     bool
	LicencePublicKey string

	// Key-value store
	StoreDriver    string
	StoreFilePath  string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string
	WebDAVURL      string
	WebDAVUsername string
	WebDAVPassword string
	WebDAVPath     string
	ObfuscationKey string

	// Billing bridge
	RabbitMQURL     string
	BillingExchange string
	BillingQueue    string

	// Google Play
	PlayPackageName           string
	PlayAPIURL                string
	PlayAccessToken           string
	PlayServiceAccountEmail   string
	PlayServiceAccountKeyFile string
	PlayRegion                string

	// Amazon Appstore
	AmazonRVSURL       string
	AmazonSharedSecret string
	AmazonUserID       string

	// Vendor transport
	VendorRateLimit    float64
	VendorRateBurst    int
	VendorTimeout      time.Duration
	BreakerMaxFailures int
	BreakerTimeout     time.Duration

	// Worker
	ReconcileInterval time.Duration
	HealthAddr        string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		Flavor:           getEnv("TALLY_FLAVOR", "play"),
		UnlockSwitch:     getBoolEnv("TALLY_UNLOCK_SWITCH", false),
		LicencePublicKey: getEnv("TALLY_LICENCE_PUBLIC_KEY", ""),

		StoreDriver:    getEnv("STORE_DRIVER", "file"),
		StoreFilePath:  getEnv("STORE_FILE_PATH", defaultPath("licence.json")),
		SQLitePath:     getEnv("SQLITE_PATH", defaultPath("licence.db")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		WebDAVURL:      getEnv("WEBDAV_URL", ""),
		WebDAVUsername: getEnv("WEBDAV_USERNAME", ""),
		WebDAVPassword: getEnv("WEBDAV_PASSWORD", ""),
		WebDAVPath:     getEnv("WEBDAV_PATH", "/tally/licence.json"),
		ObfuscationKey: getEnv("LICENCE_OBFUSCATION_KEY", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		BillingExchange: getEnv("BILLING_EXCHANGE", "tally.billing"),
		BillingQueue:    getEnv("BILLING_QUEUE", "tally.licensing"),

		PlayPackageName:           getEnv("PLAY_PACKAGE_NAME", "org.totschnig.myexpenses"),
		PlayAPIURL:                getEnv("PLAY_API_URL", ""),
		PlayAccessToken:           getEnv("PLAY_ACCESS_TOKEN", ""),
		PlayServiceAccountEmail:   getEnv("PLAY_SERVICE_ACCOUNT_EMAIL", ""),
		PlayServiceAccountKeyFile: getEnv("PLAY_SERVICE_ACCOUNT_KEY_FILE", ""),
		PlayRegion:                getEnv("PLAY_REGION", ""),

		AmazonRVSURL:       getEnv("AMAZON_RVS_URL", ""),
		AmazonSharedSecret: getEnv("AMAZON_SHARED_SECRET", ""),
		AmazonUserID:       getEnv("AMAZON_USER_ID", ""),

		VendorRateLimit:    getFloatEnv("VENDOR_RATE_LIMIT", 5),
		VendorRateBurst:    getIntEnv("VENDOR_RATE_BURST", 5),
		VendorTimeout:      getDurationEnv("VENDOR_TIMEOUT", 15*time.Second),
		BreakerMaxFailures: getIntEnv("BREAKER_MAX_FAILURES", 5),
		BreakerTimeout:     getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),

		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", 6*time.Hour),
		HealthAddr:        getEnv("HEALTH_ADDR", "0.0.0.0:8081"),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesMessageBus reports whether a RabbitMQ URL is configured.
func (c *Config) UsesMessageBus() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// defaultPath places name under ~/.tally, or ./.tally without a home dir.
func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tally", name)
	}
	return filepath.Join(home, ".tally", name)
}
