package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/stashkeeper/migrations"
)

// MigrationStatus is the state of one embedded migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// Pending returns the ids of migrations that are not applied, in order.
func Pending(statuses []MigrationStatus) []string {
	var ids []string
	for _, s := range statuses {
		if !s.Applied {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// migration is one embedded .sql file.
type migration struct {
	id       string
	checksum string
	sql      string
}

// appliedRow is one row of the migrations table. applied_at is TEXT on
// SQLite and TIMESTAMP on PostgreSQL.
type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// migrator runs the embedded migration set for one connection.
type migrator struct {
	db         *sqlx.DB
	sqlite     bool
	migrations []migration
}

func newMigrator(conn *sqlx.DB) (*migrator, error) {
	var (
		fsys embed.FS
		dir  string
	)
	switch conn.DriverName() {
	case "sqlite3":
		fsys, dir = embeddedmigrations.SqliteMigrations, "sqlite"
	case "postgres":
		fsys, dir = embeddedmigrations.PostgresMigrations, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", conn.DriverName())
	}

	migrations, err := readMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return &migrator{db: conn, sqlite: conn.DriverName() == "sqlite3", migrations: migrations}, nil
}

// readMigrations returns the .sql files of dir ordered by file name.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{
			id:       path.Base(name),
			checksum: hex.EncodeToString(sum[:]),
			sql:      string(content),
		})
	}
	return out, nil
}

// ensureTable creates the tracking table. Its definition must match the one
// in 001_initial_schema.sql.
func (m *migrator) ensureTable(ctx context.Context) error {
	appliedAt := "TIMESTAMP WITHOUT TIME ZONE NOT NULL"
	check := ""
	if m.sqlite {
		appliedAt = "TEXT NOT NULL"
		check = ",\n\t\t\tCHECK (applied_at LIKE '____-__-__T__:__:__Z')"
	}
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at `+appliedAt+`,
			execution_ms INTEGER NOT NULL`+check+`
		)`)
	return err
}

// applied returns the recorded migrations keyed by id. Every recorded
// migration must still be embedded with the same checksum.
func (m *migrator) applied(ctx context.Context) (map[string]appliedRow, error) {
	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	known := make(map[string]string, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.id] = mig.checksum
	}

	out := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		want, ok := known[r.ID]
		if !ok {
			return nil, fmt.Errorf("migration %s exists in database but not in embedded files", r.ID)
		}
		if r.Checksum != want {
			return nil, fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", r.ID, want, r.Checksum)
		}
		out[r.ID] = r
	}
	return out, nil
}

// apply runs one migration and records it in a single transaction.
func (m *migrator) apply(ctx context.Context, mig migration) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// lib/pq does not accept several statements in one Exec.
	for _, stmt := range strings.Split(stripComments(mig.sql), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}

	now := time.Now().UTC()
	var appliedAt any = now
	if m.sqlite {
		appliedAt = now.Format(time.RFC3339)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		mig.id, mig.checksum, appliedAt, time.Since(start).Milliseconds(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// MigrateUp applies every pending migration in file name order after
// verifying the checksums of those already applied.
func MigrateUp(ctx context.Context, conn *sqlx.DB) error {
	m, err := newMigrator(conn)
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.id]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.id, err)
		}
	}
	return nil
}

// MigrateStatus reports every embedded migration, applied or pending.
func MigrateStatus(ctx context.Context, conn *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(conn)
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := MigrationStatus{ID: mig.id, Checksum: mig.checksum}
		if r, ok := applied[mig.id]; ok {
			s.Applied = true
			s.AppliedAt = parseAppliedAt(r.AppliedAt)
			s.ExecutionMs = r.ExecutionMs
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func parseAppliedAt(v any) *time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &parsed
}

// stripComments drops whole-line "--" comments so a leading comment does
// not hide the statement that follows it.
func stripComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
