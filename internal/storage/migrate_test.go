package storage

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrateRejectsBadInput(t *testing.T) {
	if err := Migrate("", DirectionUp); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	for _, direction := range []string{"", "UP", "sideways"} {
		if err := Migrate("postgres://localhost/grimoire", direction); err == nil {
			t.Fatalf("expected error for direction %q", direction)
		}
	}
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
}

func TestUsersMigrationMatchesSchema(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/0001_create_users.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(raw)
	for _, column := range []string{"core__users", "username", "email", "hashed_password", "name", "is_active", "is_superuser"} {
		if !strings.Contains(sql, column) {
			t.Fatalf("migration does not mention %s", column)
		}
	}
}
