package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Queries {
	t.Helper()
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	q, err := LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v, want nil", err)
	}
	return q
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{name: "sqlite relative", url: "sqlite://registry.db", wantDriver: "sqlite3", wantSource: "registry.db?" + sqliteDefaults},
		{name: "sqlite absolute", url: "sqlite:///var/lib/pa.db", wantDriver: "sqlite3", wantSource: "/var/lib/pa.db?" + sqliteDefaults},
		{name: "sqlite explicit options", url: "sqlite:///tmp/pa.db?mode=ro", wantDriver: "sqlite3", wantSource: "/tmp/pa.db?mode=ro"},
		{name: "postgres", url: "postgres://u:p@db:5432/pa?sslmode=disable", wantDriver: "postgres", wantSource: "postgres://u:p@db:5432/pa?sslmode=disable"},
		{name: "empty sqlite path", url: "sqlite://", wantErr: true},
		{name: "unsupported scheme", url: "mysql://db/pa", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, source, err := ParseURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseURL() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL() error = %v, want nil", err)
			}
			if driver != tt.wantDriver || source != tt.wantSource {
				t.Errorf("ParseURL() = (%q, %q), want (%q, %q)", driver, source, tt.wantDriver, tt.wantSource)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header comment\nCREATE TABLE a (x TEXT);\n\n-- second\nCREATE INDEX i ON a (x)\n"
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("len(splitStatements()) = %d, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x TEXT)" {
		t.Errorf("statement[0] = %q", got[0])
	}
	if got[1] != "CREATE INDEX i ON a (x)" {
		t.Errorf("statement[1] = %q", got[1])
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer conn.Close()

	ran, err := MigrateUp(conn)
	if err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	if len(ran) == 0 {
		t.Fatal("MigrateUp() applied no migrations on an empty database")
	}

	again, err := MigrateUp(conn)
	if err != nil {
		t.Fatalf("second MigrateUp() error = %v, want nil", err)
	}
	if len(again) != 0 {
		t.Errorf("second MigrateUp() applied %v, want none", again)
	}

	statuses, err := MigrateStatus(conn)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v, want nil", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s not applied", s.ID)
		}
		if s.AppliedAt == nil {
			t.Errorf("migration %s has no applied_at", s.ID)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "tamper.db"))
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer conn.Close()

	if _, err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	if _, err := conn.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := MigrateUp(conn); err == nil {
		t.Fatal("MigrateUp() error = nil after checksum tamper, want error")
	}
}

func TestQueries_InTxRollsBack(t *testing.T) {
	q := openTestDB(t)
	ctx := context.Background()

	sentinel := context.Canceled
	err := q.InTx(ctx, func(tx *Queries) error {
		if _, err := tx.ExecContext(ctx, "insert-policy-if-absent", "P-1", "INGESTED", "2026-01-01T00:00:00Z"); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("InTx() error = %v, want %v", err, sentinel)
	}

	var count int
	if err := q.DB().Get(&count, "SELECT COUNT(*) FROM policies"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("policies after rollback = %d, want 0", count)
	}
}

func TestQueries_UnknownName(t *testing.T) {
	q := openTestDB(t)
	if _, err := q.Exec("no-such-query"); err == nil {
		t.Fatal("Exec() error = nil for unknown query, want error")
	}
}
