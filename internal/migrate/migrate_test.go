package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/tursodatabase/go-libsql"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("libsql", "file:"+t.TempDir()+"/migrate.db")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSplitSQL(t *testing.T) {
	script := `-- leading comment
CREATE TABLE a (id INTEGER);

-- another
CREATE INDEX idx ON a(id);
`
	want := []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx ON a(id)"}
	if got := SplitSQL(script); !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSQL() = %q, want %q", got, want)
	}
}

func TestLoad_Embedded(t *testing.T) {
	all, err := New(nil).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("got %d migrations, want at least 2", len(all))
	}
	for i, m := range all {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if m.DownSQL == "" {
			t.Errorf("migration %d_%s has no down script", m.Version, m.Name)
		}
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	src := fstest.MapFS{
		"001_a.up.sql": {Data: []byte("SELECT 1")},
		"1_b.up.sql":   {Data: []byte("SELECT 1")},
	}
	if _, err := New(nil, WithSource(src)).Load(); err == nil {
		t.Error("Load() accepted duplicate versions")
	}
}

func TestMigrator_UpAndDown(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	var out bytes.Buffer
	m := New(db, WithOutput(&out))

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	s, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != s.Latest || s.Current != s.Latest || len(s.Pending) != 0 {
		t.Errorf("after Up: applied %d, status %+v", n, s)
	}
	if !strings.Contains(out.String(), "Migrated to version") {
		t.Errorf("output = %q", out.String())
	}

	if n, err := m.Up(ctx); err != nil || n != 0 {
		t.Errorf("second Up() = %d, %v", n, err)
	}

	if _, err := m.DownTo(ctx, 0); err != nil {
		t.Fatalf("DownTo(0) error = %v", err)
	}
	s, _ = m.Status(ctx)
	if s.Current != 0 || len(s.Pending) != s.Latest {
		t.Errorf("after DownTo(0): %+v", s)
	}
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM releases`); err == nil {
		t.Error("releases table still exists after DownTo(0)")
	}
}

func TestMigrator_DirtyBlocksUp(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	src := fstest.MapFS{
		"001_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER)")},
		"002_bad.up.sql": {Data: []byte("CREATE TABLE broken (")},
	}
	m := New(db, WithSource(src))

	if _, err := m.Up(ctx); err == nil {
		t.Fatal("Up() succeeded with a broken migration")
	}
	if _, err := m.Up(ctx); !errors.Is(err, ErrDirty) {
		t.Errorf("Up() on dirty database error = %v, want ErrDirty", err)
	}
	if err := m.Force(ctx, 1); err != nil {
		t.Fatal(err)
	}
	s, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Dirty || s.Current != 1 {
		t.Errorf("after Force: %+v", s)
	}
}
