package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListMigrationsOrdersSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_add_index.sql", "001_create_portal_users.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- stub"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	want := []string{"001_create_portal_users.sql", "002_add_index.sql"}
	if len(files) != len(want) {
		t.Fatalf("listMigrations() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestListMigrationsMissingDir(t *testing.T) {
	if _, err := listMigrations(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("listMigrations(absent) error = nil, want error")
	}
}
