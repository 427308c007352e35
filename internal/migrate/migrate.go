// Package migrate applies the embedded SQL migrations to a libsql
// database, tracking the applied version and a dirty flag in
// schema_migrations.
package migrate

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/intura-ai/intura-go/migrations"
)

var ErrDirty = errors.New("database is in a dirty migration state")

var upPattern = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Status describes where a database stands relative to the known migrations.
type Status struct {
	Current int
	Latest  int
	Dirty   bool
	Pending []Migration
}

type Migrator struct {
	db     *sql.DB
	source fs.FS
	out    io.Writer
}

type Option func(*Migrator)

// WithSource reads migrations from src instead of the embedded set.
func WithSource(src fs.FS) Option {
	return func(m *Migrator) { m.source = src }
}

// WithOutput writes progress lines to w.
func WithOutput(w io.Writer) Option {
	return func(m *Migrator) { m.out = w }
}

func New(db *sql.DB, opts ...Option) *Migrator {
	m := &Migrator{db: db, source: migrations.FS, out: io.Discard}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunAll applies every pending migration without printing progress.
func RunAll(ctx context.Context, db *sql.DB) error {
	_, err := New(db).Up(ctx)
	return err
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) version(ctx context.Context) (int, bool, error) {
	var version, dirty int
	err := m.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty == 1, nil
}

func (m *Migrator) setVersion(ctx context.Context, version int, dirty bool) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version <= 0 {
		return nil
	}
	d := 0
	if dirty {
		d = 1
	}
	_, err := m.db.ExecContext(ctx, `INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, d)
	return err
}

// Load reads the migrations from the source, sorted by version.
func (m *Migrator) Load() ([]Migration, error) {
	var result []Migration
	err := fs.WalkDir(m.source, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		matches := upPattern.FindStringSubmatch(path.Base(p))
		if matches == nil {
			return nil
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid migration version in %s: %w", p, err)
		}

		up, err := fs.ReadFile(m.source, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		down, _ := fs.ReadFile(m.source, path.Join(path.Dir(p), matches[1]+"_"+matches[2]+".down.sql"))

		result = append(result, Migration{
			Version: version,
			Name:    matches[2],
			UpSQL:   string(up),
			DownSQL: string(down),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	for i := 1; i < len(result); i++ {
		if result[i].Version == result[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", result[i].Version)
		}
	}
	return result, nil
}

// Status reports the current version and the migrations still to apply.
func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	current, dirty, err := m.version(ctx)
	if err != nil {
		return nil, err
	}
	all, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	s := &Status{Current: current, Dirty: dirty}
	for _, mg := range all {
		s.Latest = mg.Version
		if mg.Version > current {
			s.Pending = append(s.Pending, mg)
		}
	}
	return s, nil
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.UpTo(ctx, 0)
}

// UpTo applies pending migrations up to and including target. A target of 0
// means the latest.
func (m *Migrator) UpTo(ctx context.Context, target int) (int, error) {
	s, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if s.Dirty {
		return 0, fmt.Errorf("%w at version %d", ErrDirty, s.Current)
	}

	count := 0
	for _, mg := range s.Pending {
		if target > 0 && mg.Version > target {
			break
		}
		if err := m.run(ctx, mg, true); err != nil {
			return count, err
		}
		count++
	}
	if count == 0 {
		fmt.Fprintln(m.out, "No migrations to run")
	} else {
		v, _, _ := m.version(ctx)
		fmt.Fprintf(m.out, "Migrated to version %d (%d migrations applied)\n", v, count)
	}
	return count, nil
}

// DownTo reverts applied migrations until the version equals target.
func (m *Migrator) DownTo(ctx context.Context, target int) (int, error) {
	s, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if s.Dirty {
		return 0, fmt.Errorf("%w at version %d", ErrDirty, s.Current)
	}
	all, err := m.Load()
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(all) - 1; i >= 0; i-- {
		mg := all[i]
		if mg.Version > s.Current {
			continue
		}
		if mg.Version <= target {
			break
		}
		if strings.TrimSpace(mg.DownSQL) == "" {
			return count, fmt.Errorf("no down migration for version %d", mg.Version)
		}
		if err := m.run(ctx, mg, false); err != nil {
			return count, err
		}
		count++
	}
	fmt.Fprintf(m.out, "Migrated to version %d\n", target)
	return count, nil
}

// Force sets the version and clears the dirty flag without running SQL.
func (m *Migrator) Force(ctx context.Context, version int) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	return m.setVersion(ctx, version, false)
}

func (m *Migrator) run(ctx context.Context, mg Migration, up bool) error {
	direction, content, target := "up", mg.UpSQL, mg.Version
	if !up {
		direction, content, target = "down", mg.DownSQL, mg.Version-1
	}
	fmt.Fprintf(m.out, "  %s %03d_%s...\n", direction, mg.Version, mg.Name)

	if err := m.setVersion(ctx, mg.Version, true); err != nil {
		return fmt.Errorf("failed to set dirty flag: %w", err)
	}
	for _, stmt := range SplitSQL(content) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration %d %s: %w\nSQL: %s", mg.Version, direction, err, stmt)
		}
	}
	if err := m.setVersion(ctx, target, false); err != nil {
		return fmt.Errorf("failed to clear dirty flag: %w", err)
	}
	return nil
}

// SplitSQL splits a script into statements on semicolons, dropping line
// comments and empty statements.
func SplitSQL(script string) []string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(script))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
