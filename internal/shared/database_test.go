package shared

import (
	"path/filepath"
	"testing"
)

func TestNewDatabase(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("NewDatabase() error = %v", err)
		}
		defer db.Close()

		if _, err := db.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("create table: %v", err)
		}
		// A second statement must see the same in-memory database.
		if _, err := db.Exec("INSERT INTO t (id) VALUES (1)"); err != nil {
			t.Errorf("insert should see table from first connection: %v", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("NewDatabase() error = %v", err)
		}
		defer db.Close()

		ConfigureDatabase(db, 4, 2)
		if got := db.Stats().MaxOpenConnections; got != 4 {
			t.Errorf("expected max open connections 4, got %d", got)
		}
	})
}

func TestOpenBrowserUnsupported(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()
	getRuntime = func() string { return "plan9" }

	if err := OpenBrowser("http://localhost"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}
