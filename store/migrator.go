package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// Fresh databases get LATEST.sql, the full current schema, and every
// incremental migration is recorded in migration_history as applied.
// Existing databases get each store/migration/{driver}/NN__description.sql
// file that migration_history does not list yet, in lexicographic order,
// inside a single transaction.
//
// Demo mode seeds a freshly initialized SQLite database from store/seed.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// MigrateFileNameSplit is the split character between the patch version and the description in the migration file name.
	// For example, "01__create_table.sql".
	MigrateFileNameSplit = "__"
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"

	modeDemo = "demo"
)

// Migrate brings the database schema up to date. Drivers without a SQL
// database are skipped.
func (s *Store) Migrate(ctx context.Context) error {
	if s.driver.GetDB() == nil {
		return nil
	}

	fresh, err := s.preMigrate(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}
	if fresh {
		if s.profile.Mode == modeDemo {
			if err := s.seed(ctx); err != nil {
				return errors.Wrap(err, "failed to seed")
			}
		}
		return nil
	}
	if err := s.applyMigrations(ctx); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

// preMigrate applies the latest schema to an uninitialized database. It
// reports whether it did so.
func (s *Store) preMigrate(ctx context.Context) (bool, error) {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return false, nil
	}

	filePath := s.getMigrationBasePath() + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return false, errors.Errorf("failed to read latest schema file: %s", err)
	}
	versions, err := s.migrationVersions()
	if err != nil {
		return false, err
	}

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if err := s.execute(ctx, tx, string(bytes)); err != nil {
		return false, errors.Errorf("failed to execute SQL file %s, err %s", filePath, err)
	}
	for _, version := range versions {
		if err := s.recordMigration(ctx, tx, version); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit transaction")
	}
	slog.Info("database initialized successfully", slog.Int("migrations", len(versions)))
	return true, nil
}

// applyMigrations applies incremental migration files missing from
// migration_history.
func (s *Store) applyMigrations(ctx context.Context) error {
	filePaths, err := s.migrationFiles()
	if err != nil {
		return err
	}

	applied := map[string]bool{}
	rows, err := s.driver.GetDB().QueryContext(ctx, "SELECT version FROM migration_history")
	if err != nil {
		return errors.Wrap(err, "failed to query migration history")
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return errors.Wrap(err, "failed to scan migration history")
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to read migration history")
	}

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	migrationsApplied := 0
	for _, filePath := range filePaths {
		version := migrationVersion(filePath)
		if applied[version] {
			continue
		}
		slog.Info("applying migration", slog.String("file", filePath))
		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file: %s", filePath)
		}
		if err := s.execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", filePath)
		}
		if err := s.recordMigration(ctx, tx, version); err != nil {
			return err
		}
		migrationsApplied++
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration transaction")
	}
	if migrationsApplied > 0 {
		slog.Info("migration completed", slog.Int("migrationsApplied", migrationsApplied))
	}
	return nil
}

func (s *Store) recordMigration(ctx context.Context, tx *sql.Tx, version string) error {
	stmt := "INSERT INTO migration_history (version) VALUES (?)"
	if s.profile.Driver == "postgres" {
		stmt = "INSERT INTO migration_history (version) VALUES ($1)"
	}
	if _, err := tx.ExecContext(ctx, stmt, version); err != nil {
		return errors.Wrapf(err, "failed to record migration %s", version)
	}
	return nil
}

// migrationFiles lists incremental migration files in apply order.
func (s *Store) migrationFiles() ([]string, error) {
	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("%s*%s*.sql", s.getMigrationBasePath(), MigrateFileNameSplit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read migration files")
	}
	sort.Strings(filePaths)
	return filePaths, nil
}

func (s *Store) migrationVersions() ([]string, error) {
	filePaths, err := s.migrationFiles()
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(filePaths))
	for _, filePath := range filePaths {
		versions = append(versions, migrationVersion(filePath))
	}
	return versions, nil
}

// migrationVersion returns the file name without its extension,
// e.g. "01__reminder_time_index".
func migrationVersion(filePath string) string {
	return strings.TrimSuffix(filepath.Base(filePath), ".sql")
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

func (s *Store) getSeedBasePath() string {
	return fmt.Sprintf("seed/%s/", s.profile.Driver)
}

// seed seeds the database with demo data.
// This is only supported for SQLite databases.
func (s *Store) seed(ctx context.Context) error {
	if s.profile.Driver != "sqlite" {
		slog.Warn("seed is only supported for SQLite, skipping for other databases")
		return nil
	}

	filenames, err := fs.Glob(seedFS, fmt.Sprintf("%s*.sql", s.getSeedBasePath()))
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}
	sort.Strings(filenames)

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	for _, filename := range filenames {
		bytes, err := seedFS.ReadFile(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file, filename=%s", filename)
		}
		if err := s.execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "seed error: %s", filename)
		}
	}
	return tx.Commit()
}

// execute executes a SQL script within a transaction.
// PostgreSQL does not accept several statements in one ExecContext call, so
// its scripts are split first.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, stmt string) error {
	if s.profile.Driver == "postgres" {
		for i, part := range splitSQL(stmt) {
			if _, err := tx.ExecContext(ctx, part); err != nil {
				return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, part)
			}
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}
	return nil
}

// splitSQL splits a script on semicolons outside single-quoted strings.
// Lines starting with "--" are dropped.
func splitSQL(script string) []string {
	var statements []string
	var current strings.Builder
	inSingleQuote := false

	for _, line := range strings.Split(script, "\n") {
		if !inSingleQuote && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'':
				inSingleQuote = !inSingleQuote
				current.WriteByte(ch)
			case ch == ';' && !inSingleQuote:
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
			default:
				current.WriteByte(ch)
			}
		}
		current.WriteByte('\n')
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
