package probe

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteProber {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readygate_test.db")
	p, err := NewSQLite(path, "readygate_smoke")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p
}

func TestSQLitePing(t *testing.T) {
	p := newTestSQLite(t)
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping against a fresh database should succeed: %v", err)
	}
}

// Repeated smoke tests must leave the scratch table empty: every insert
// is paired with a delete on the success path.
func TestSQLiteSmokeIdempotence(t *testing.T) {
	p := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.Smoke(ctx); err != nil {
			t.Fatalf("Smoke run %d failed: %v", i+1, err)
		}
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.smokeTable)
	if err := p.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		t.Fatalf("Counting scratch rows: %v", err)
	}
	if count != 0 {
		t.Errorf("Scratch table should be empty after smoke runs, found %d rows", count)
	}
}

func TestSQLiteRejectsEmptyPath(t *testing.T) {
	if _, err := NewSQLite("", "readygate_smoke"); err == nil {
		t.Error("NewSQLite should reject an empty path")
	}
}

func TestSQLiteTargetIsPath(t *testing.T) {
	p := newTestSQLite(t)
	if filepath.Base(p.Target()) != "readygate_test.db" {
		t.Errorf("Target should be the database path, got %q", p.Target())
	}
}
