package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// Migration is one embedded schema file. AppliedAt is nil while pending.
type Migration struct {
	Version   string
	File      string
	AppliedAt *time.Time
}

// embedded lists the migration files in version order. The version is the
// file name prefix before the first underscore; 000 creates schema_migrations.
func embedded() ([]Migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, _, _ := strings.Cut(entry.Name(), "_")
		out = append(out, Migration{Version: version, File: entry.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Status reports every embedded migration with its applied time, if any.
func Status(db *sql.DB) ([]Migration, error) {
	all, err := embedded()
	if err != nil {
		return nil, err
	}

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&tables)
	if err != nil {
		return nil, errors.Wrap(err, "check schema_migrations")
	}
	if tables == 0 {
		return all, nil
	}

	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at sql.NullTime
		if err := rows.Scan(&version, &at); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[version] = at.Time
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}

	for i := range all {
		if at, ok := applied[all[i].Version]; ok {
			all[i].AppliedAt = &at
		}
	}
	return all, nil
}

// Migrate applies every pending migration, each in its own transaction.
// A nil logger runs silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	all, err := Status(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range all {
		if m.AppliedAt != nil {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", m.File)
			}
			continue
		}
		if logger != nil {
			logger.Infow("Applying migration", "migration", m.File, "version", m.Version)
		}
		if err := apply(db, m); err != nil {
			return err
		}
		applied++
	}

	if logger != nil && applied > 0 {
		logger.Infow("Migrations complete",
			"total_migrations", len(all),
			"applied", applied)
	}
	return nil
}

func apply(db *sql.DB, m Migration) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.File))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.File)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.File)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.File)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
		return errors.Wrapf(err, "record %s", m.File)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.File)
}
