package database

import (
	"embed"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies embedded SQL migrations in lexical order, tracking applied
// versions in schema_migrations.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return errors.Wrap(err, "creating schema_migrations")
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "reading migrations dir")
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		var count int
		if err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", filename).Scan(&count); err != nil {
			return errors.Wrap(err, "checking migration status")
		}
		if count > 0 {
			continue
		}

		script, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", filename)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "beginning migration tx")
		}
		if _, err = tx.Exec(string(script)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "applying migration %s", filename)
		}
		if _, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", filename); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "recording migration %s", filename)
		}
		if err = tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %s", filename)
		}
	}
	return nil
}
