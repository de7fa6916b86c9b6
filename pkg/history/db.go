package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Registers the pure-Go driver as "sqlite".
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// openDB opens (or creates) the database at path with WAL, foreign keys and a
// busy timeout. ":memory:" is allowed and pinned to a single connection so
// every query sees the same database.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", path, err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping %q: %w", path, err)
	}

	return db, nil
}

type migrationFile struct {
	name string
	sql  string
}

// migrate applies pending migrations in file name order, one transaction
// each, and records them in schema_migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER NOT NULL PRIMARY KEY,
			name       TEXT    NOT NULL,
			applied_at TEXT    NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("history: migrations table: %w", err)
	}

	files, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("history: load migrations: %w", err)
	}

	for _, f := range files {
		var version int
		if _, err := fmt.Sscanf(f.name, "%d_", &version); err != nil {
			return fmt.Errorf("history: migration %s: bad version prefix", f.name)
		}

		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("history: check migration %d: %w", version, err)
		}
		if count > 0 {
			continue
		}

		if err := applyMigration(ctx, db, version, f); err != nil {
			return fmt.Errorf("history: apply %s: %w", f.name, err)
		}
	}

	return nil
}

func loadMigrations() ([]migrationFile, error) {
	var files []migrationFile

	err := fs.WalkDir(migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return nil
		}

		data, err := migrations.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, migrationFile{name: d.Name(), sql: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, f migrationFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, f.sql); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, f.name); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	return tx.Commit()
}
