package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSongCache(t *testing.T) {
	ctx := context.Background()

	t.Run("GetMany Empty", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))

		got, err := cache.GetMany(ctx, []string{"a", "b"})
		if err != nil {
			t.Fatalf("GetMany() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no entries, got %v", got)
		}

		got, err = cache.GetMany(ctx, nil)
		if err != nil || len(got) != 0 {
			t.Errorf("GetMany(nil) = %v, %v", got, err)
		}
	})

	t.Run("PutMany Then GetMany", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))

		n, err := cache.PutMany(ctx, map[string]models.Facts{
			"t1": {Language: "English", Genre: "Pop"},
			"t2": {Language: "Korean"},
		})
		if err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 entries written, got %d", n)
		}

		got, err := cache.GetMany(ctx, []string{"t1", "t2", "t3"})
		if err != nil {
			t.Fatalf("GetMany() error = %v", err)
		}

		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got["t1"] != (models.Facts{Language: "English", Genre: "Pop"}) {
			t.Errorf("unexpected t1 entry %+v", got["t1"])
		}
		if got["t2"] != (models.Facts{Language: "Korean"}) {
			t.Errorf("unexpected t2 entry %+v", got["t2"])
		}
		if _, ok := got["t3"]; ok {
			t.Error("absent ids should be omitted")
		}
	})

	t.Run("PutMany Skips Empty Entries", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))

		n, err := cache.PutMany(ctx, map[string]models.Facts{
			"empty": {},
			"":      {Genre: "Rock"},
			"full":  {Genre: "Rock"},
		})
		if err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 entry written, got %d", n)
		}

		count, err := cache.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}

		if _, ok, _ := cache.Get(ctx, "empty"); ok {
			t.Error("entry with no fields should not be stored")
		}
	})

	t.Run("Upsert Keeps Known Fields", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))

		if _, err := cache.PutMany(ctx, map[string]models.Facts{"t1": {Language: "Japanese"}}); err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}
		if _, err := cache.PutMany(ctx, map[string]models.Facts{"t1": {Genre: "J-Pop / Anime"}}); err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}

		facts, ok, err := cache.Get(ctx, "t1")
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
		if facts.Language != "Japanese" || facts.Genre != "J-Pop / Anime" {
			t.Errorf("expected both fields after two writes, got %+v", facts)
		}

		if _, err := cache.PutMany(ctx, map[string]models.Facts{"t1": {Language: "English"}}); err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}
		facts, _, _ = cache.Get(ctx, "t1")
		if facts.Language != "English" {
			t.Errorf("expected language to be replaced, got %q", facts.Language)
		}
	})

	t.Run("GetMany Chunks Large Inputs", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))
		cache.chunkSize = 7

		entries := make(map[string]models.Facts)
		ids := make([]string, 0, 40)
		for i := range 40 {
			id := fmt.Sprintf("track-%02d", i)
			ids = append(ids, id)
			if i%2 == 0 {
				entries[id] = models.Facts{Language: "English"}
			}
		}

		if _, err := cache.PutMany(ctx, entries); err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}

		got, err := cache.GetMany(ctx, ids)
		if err != nil {
			t.Fatalf("GetMany() error = %v", err)
		}
		if len(got) != 20 {
			t.Errorf("expected 20 entries, got %d", len(got))
		}
	})

	t.Run("Stats And Clear", func(t *testing.T) {
		cache := NewSongCache(setupTestDB(t))

		if _, err := cache.PutMany(ctx, map[string]models.Facts{
			"t1": {Language: "English", Genre: "Pop"},
			"t2": {Language: "Hindi"},
			"t3": {Genre: "Rock"},
		}); err != nil {
			t.Fatalf("PutMany() error = %v", err)
		}

		stats, err := cache.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		want := CacheStats{Entries: 3, WithLanguage: 2, WithGenre: 2}
		if stats != want {
			t.Errorf("Stats() = %+v, want %+v", stats, want)
		}

		removed, err := cache.Clear(ctx)
		if err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if removed != 3 {
			t.Errorf("expected 3 rows removed, got %d", removed)
		}

		count, _ := cache.Count(ctx)
		if count != 0 {
			t.Errorf("expected empty cache after Clear, got %d", count)
		}
	})
}

func TestSongCacheErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Closed Database", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		cache := NewSongCache(db)
		db.Close()

		if _, err := cache.GetMany(ctx, []string{"a"}); err == nil {
			t.Error("expected GetMany error on closed database")
		}
		if _, err := cache.PutMany(ctx, map[string]models.Facts{"a": {Genre: "Pop"}}); err == nil {
			t.Error("expected PutMany error on closed database")
		}
		if _, err := cache.Count(ctx); err == nil {
			t.Error("expected Count error on closed database")
		}
	})

	t.Run("Missing Table", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		cache := NewSongCache(db)
		if _, err := cache.GetMany(ctx, []string{"a"}); err == nil {
			t.Error("expected error when song_cache table is missing")
		}
	})
}
