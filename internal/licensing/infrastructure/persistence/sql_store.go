package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/migrations"
)

const (
	getPrefQuery    = `SELECT pref_value FROM licence_prefs WHERE pref_key = ?`
	deletePrefQuery = `DELETE FROM licence_prefs WHERE pref_key = ?`
	listPrefsQuery  = `SELECT pref_key FROM licence_prefs ORDER BY pref_key`
	upsertPrefQuery = `
		INSERT INTO licence_prefs (pref_key, pref_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (pref_key) DO UPDATE SET
			pref_value = excluded.pref_value,
			updated_at = excluded.updated_at`
)

// SQLStore keeps values in the licence_prefs table of SQLite or PostgreSQL.
type SQLStore struct {
	conn database.Connection
}

var _ domain.KeyValueStore = (*SQLStore)(nil)

// NewSQLStore runs migrations and returns a store over conn.
// The store owns conn and closes it.
func NewSQLStore(ctx context.Context, conn database.Connection) (*SQLStore, error) {
	if err := migrations.Run(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to migrate %s store: %w", conn.Driver(), err)
	}
	return &SQLStore{conn: conn}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow(ctx, getPrefQuery, key).Scan(&value)
	if database.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Put(ctx context.Context, key, value string) error {
	if _, err := s.conn.Exec(ctx, upsertPrefQuery, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.Exec(ctx, deletePrefQuery, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, listPrefsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}
