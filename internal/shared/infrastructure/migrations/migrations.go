package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/database"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Run executes all migrations in order. The statements are plain SQL that
// both SQLite and PostgreSQL accept.
func Run(ctx context.Context, db database.Executor) error {
	entries, err := migrationsFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, file := range upFiles {
		migration, err := migrationsFS.ReadFile("sql/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		// CREATE TABLE IF NOT EXISTS is idempotent
		if _, err := db.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}
