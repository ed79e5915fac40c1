package store

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := migrationFiles(migrationFS, "migrations", ".up.sql")
	if err != nil {
		t.Fatalf("list up migrations: %v", err)
	}
	downs, err := migrationFiles(migrationFS, "migrations", ".down.sql")
	if err != nil {
		t.Fatalf("list down migrations: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("expected at least one migration")
	}
	if len(ups) != len(downs) {
		t.Fatalf("expected paired migrations, got %d up and %d down", len(ups), len(downs))
	}
	for i := range ups {
		if strings.TrimSuffix(ups[i], ".up.sql") != strings.TrimSuffix(downs[i], ".down.sql") {
			t.Errorf("migration %s has no matching down file", ups[i])
		}
	}
}

func TestInitMigrationDefinesSubRecordTables(t *testing.T) {
	contents, err := fs.ReadFile(migrationFS, "migrations/001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sql := string(contents)

	for _, table := range subRecordTables {
		if !strings.Contains(sql, "CREATE TABLE "+table+" (") {
			t.Errorf("missing table %s", table)
		}
	}
	if got := strings.Count(sql, "REFERENCES bills(id) ON DELETE CASCADE"); got < len(subRecordTables) {
		t.Errorf("expected every sub-record table to cascade with its bill, found %d", got)
	}
	if !strings.Contains(sql, "UNIQUE (user_id, bill_id)") {
		t.Error("expected followed_bills to be unique per user and bill")
	}
	if !strings.Contains(sql, "('MN', 'Minnesota')") {
		t.Error("expected states to be seeded")
	}
}
