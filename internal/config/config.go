package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Auth     AuthConfig
	Wallet   WalletConfig
	Cache    CacheConfig
	Security SecurityConfig
	Log      LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig holds the secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string
}

// WalletConfig holds wallet provider and background sync configuration.
type WalletConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	SyncDelay         time.Duration // minimum wait between requesting a refresh and fetching results
	SyncPollInterval  time.Duration
	SyncMaxWait       time.Duration
	TransactionLimit  int
	Workers           int
	QueueSize         int
	MaxAttempts       int
	ResyncSchedule    string
}

// CacheConfig holds the symbol resolution cache settings.
type CacheConfig struct {
	SymbolTTL       time.Duration
	CleanupInterval time.Duration
}

// SecurityConfig holds the key used to encrypt wallet addresses at rest.
type SecurityConfig struct {
	FernetKey string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	p := &parser{}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/coinfolio.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Wallet: WalletConfig{
			BaseURL:           getEnv("WALLET_API_URL", "https://openapiv1.coinstats.app"),
			APIKey:            os.Getenv("WALLET_API_KEY"),
			RequestsPerSecond: p.float("WALLET_REQUESTS_PER_SECOND", 5),
			Burst:             p.int("WALLET_BURST", 5),
			SyncDelay:         p.duration("WALLET_SYNC_DELAY", 10*time.Second),
			SyncPollInterval:  p.duration("WALLET_SYNC_POLL_INTERVAL", 5*time.Second),
			SyncMaxWait:       p.duration("WALLET_SYNC_MAX_WAIT", 2*time.Minute),
			TransactionLimit:  p.int("WALLET_TRANSACTION_LIMIT", 100),
			Workers:           p.int("WALLET_SYNC_WORKERS", 2),
			QueueSize:         p.int("WALLET_SYNC_QUEUE_SIZE", 64),
			MaxAttempts:       p.int("WALLET_SYNC_MAX_ATTEMPTS", 3),
			ResyncSchedule:    getEnv("WALLET_RESYNC_SCHEDULE", "@every 6h"),
		},
		Cache: CacheConfig{
			SymbolTTL:       p.duration("SYMBOL_CACHE_TTL", time.Hour),
			CleanupInterval: p.duration("SYMBOL_CACHE_CLEANUP", 10*time.Minute),
		},
		Security: SecurityConfig{
			FernetKey: os.Getenv("FERNET_KEY"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: p.bool("LOG_PRETTY", false),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if len(config.Auth.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}
