package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/autoplaylist/internal/models"
)

// defaultChunkSize keeps IN (...) lists well under SQLite's bind-variable limit.
const defaultChunkSize = 500

// SongCache persists inferred [models.Facts] keyed by provider track id.
//
// Entries are upserted and never expire; only [SongCache.Clear] removes them.
// Safe for concurrent use: database/sql pools connections and each write is one transaction.
type SongCache struct {
	db        *sql.DB
	chunkSize int
}

// CacheStats summarizes the contents of the cache.
type CacheStats struct {
	Entries      int `json:"entries"`
	WithLanguage int `json:"with_language"`
	WithGenre    int `json:"with_genre"`
}

// NewSongCache creates a new SongCache with the given database connection.
//
// The song_cache table must exist; see [shared.RunMigrations].
func NewSongCache(db *sql.DB) *SongCache {
	return &SongCache{db: db, chunkSize: defaultChunkSize}
}

// Get retrieves the cached facts for a single track.
func (c *SongCache) Get(ctx context.Context, id string) (models.Facts, bool, error) {
	row := c.db.QueryRowContext(ctx, "SELECT id, language, genre FROM song_cache WHERE id = ?", id)
	_, facts, err := scanFacts(row)
	if err == sql.ErrNoRows {
		return models.Facts{}, false, nil
	}
	if err != nil {
		return models.Facts{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return facts, true, nil
}

// GetMany returns the cached facts for ids. Ids without an entry are absent from the result.
func (c *SongCache) GetMany(ctx context.Context, ids []string) (map[string]models.Facts, error) {
	result := make(map[string]models.Facts, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	for start := 0; start < len(ids); start += c.chunkSize {
		end := min(start+c.chunkSize, len(ids))
		if err := c.getChunk(ctx, ids[start:end], result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (c *SongCache) getChunk(ctx context.Context, ids []string, into map[string]models.Facts) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT id, language, genre FROM song_cache WHERE id IN (" + placeholders + ")"

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		id, facts, err := scanFacts(rows)
		if err != nil {
			return fmt.Errorf("failed to scan cache entry: %w", err)
		}
		into[id] = facts
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	return nil
}

// PutMany upserts entries in one transaction and returns how many were written.
//
// Entries with no known field are skipped. An empty field never overwrites a stored value.
func (c *SongCache) PutMany(ctx context.Context, entries map[string]models.Facts) (int, error) {
	ids := make([]string, 0, len(entries))
	for id, facts := range entries {
		if id == "" || facts.IsEmpty() {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	sort.Strings(ids)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO song_cache (id, language, genre, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			language = COALESCE(excluded.language, song_cache.language),
			genre = COALESCE(excluded.genre, song_cache.genre),
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		facts := entries[id]
		if _, err := stmt.ExecContext(ctx, id, nullString(facts.Language), nullString(facts.Genre)); err != nil {
			return 0, fmt.Errorf("failed to upsert cache entry %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cache entries: %w", err)
	}

	return len(ids), nil
}

// Count returns the number of cached tracks.
func (c *SongCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM song_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Stats counts entries and how many carry each field.
func (c *SongCache) Stats(ctx context.Context) (CacheStats, error) {
	var s CacheStats
	err := c.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(NULLIF(language, '')),
			COUNT(NULLIF(genre, ''))
		FROM song_cache
	`).Scan(&s.Entries, &s.WithLanguage, &s.WithGenre)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return s, nil
}

// Clear deletes every entry and returns how many were removed.
func (c *SongCache) Clear(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM song_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanFacts scans an (id, language, genre) row from either [sql.Row] or [sql.Rows].
func scanFacts(s scanner) (string, models.Facts, error) {
	var (
		id       string
		language sql.NullString
		genre    sql.NullString
	)

	if err := s.Scan(&id, &language, &genre); err != nil {
		return "", models.Facts{}, err
	}

	return id, models.Facts{Language: language.String, Genre: genre.String}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
