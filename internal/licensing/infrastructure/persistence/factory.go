package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/tally/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/tally/internal/shared/infrastructure/database/sqlite"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverWebDAV   = "webdav"
)

// Config selects and configures the key-value backend.
type Config struct {
	Driver      string
	FilePath    string
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
	WebDAV      WebDAVConfig

	// ObfuscationKey is a base64 AES-256 key. When set, values are sealed.
	ObfuscationKey string
}

// DefaultFilePath returns ~/.tally/licence.json.
func DefaultFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".tally", "licence.json")
}

// NewStore opens the configured backend, wrapped for obfuscation when a
// key is configured.
func NewStore(ctx context.Context, cfg Config, diagnostics domain.Diagnostics) (domain.KeyValueStore, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ObfuscationKey == "" {
		return store, nil
	}
	sealer, err := crypto.NewAESGCMFromBase64Key(cfg.ObfuscationKey)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("invalid obfuscation key: %w", err)
	}
	return NewObfuscatedStore(store, sealer, diagnostics), nil
}

func openStore(ctx context.Context, cfg Config) (domain.KeyValueStore, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		path := cfg.FilePath
		if path == "" {
			path = DefaultFilePath()
		}
		return NewFileStore(path)
	case DriverSQLite:
		return openSQLStore(ctx, database.Config{Driver: database.DriverSQLite, SQLitePath: cfg.SQLitePath})
	case DriverPostgres:
		return openSQLStore(ctx, database.Config{Driver: database.DriverPostgres, URL: cfg.DatabaseURL})
	case DriverRedis:
		return NewRedisStoreFromURL(ctx, cfg.RedisURL, DefaultRedisPrefix)
	case DriverWebDAV:
		return NewWebDAVStore(cfg.WebDAV)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDriver, cfg.Driver)
	}
}

func openSQLStore(ctx context.Context, cfg database.Config) (domain.KeyValueStore, error) {
	conn, err := database.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLStore(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return store, nil
}
