package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/migrations"
)

func TestNewConnection_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "licence.db")

	conn, err := database.NewConnection(ctx, database.Config{SQLitePath: path})
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.Ping(ctx))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
	assert.FileExists(t, path)
}

func TestConnection_MigrateAndQuery(t *testing.T) {
	ctx := context.Background()

	conn, err := NewConnection(ctx, database.Config{SQLitePath: database.MemoryPath})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrations.Run(ctx, conn))
	// running twice is a no-op
	require.NoError(t, migrations.Run(ctx, conn))

	result, err := conn.Exec(ctx, `INSERT INTO licence_prefs (pref_key, pref_value) VALUES (?, ?)`, "licence_status", "3")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = conn.Exec(ctx, `INSERT INTO licence_prefs (pref_key, pref_value) VALUES (?, ?)`, "order_id", "GPA.1")
	require.NoError(t, err)

	var value string
	require.NoError(t, conn.QueryRow(ctx, `SELECT pref_value FROM licence_prefs WHERE pref_key = ?`, "licence_status").Scan(&value))
	assert.Equal(t, "3", value)

	err = conn.QueryRow(ctx, `SELECT pref_value FROM licence_prefs WHERE pref_key = ?`, "missing").Scan(&value)
	assert.True(t, database.IsNoRows(err))

	rows, err := conn.Query(ctx, `SELECT pref_key FROM licence_prefs ORDER BY pref_key`)
	require.NoError(t, err)
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		require.NoError(t, rows.Scan(&key))
		keys = append(keys, key)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"licence_status", "order_id"}, keys)
}
