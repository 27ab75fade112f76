package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats prints how many songs are cached and how many carry each fact.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	cache, db, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := cache.Stats(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, false)
	}

	r.writePlain("Database: %s\n", r.config.Database.Path)
	r.writePlain("Cached songs: %d\n", stats.Entries)
	r.writePlain("  with language: %d\n", stats.WithLanguage)
	r.writePlain("  with genre: %d\n", stats.WithGenre)
	return nil
}

// CacheGet prints the cached facts of each track id given as an argument.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id is required", shared.ErrMissingArgument)
	}

	cache, db, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	found := make(map[string]models.Facts, len(ids))
	for _, id := range ids {
		facts, ok, err := cache.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
		}
		if ok {
			found[id] = facts
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(found, false)
	}

	for _, id := range ids {
		facts, ok := found[id]
		if !ok {
			r.writePlain("%s: not cached\n", id)
			continue
		}
		r.writePlain("%s: language=%q genre=%q\n", id, facts.Language, facts.Genre)
	}
	return nil
}

// CacheClear deletes every cached song. With --dry-run it only reports how many would go.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	cache, db, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("dry-run") {
		n, err := cache.Count(ctx)
		if err != nil {
			return err
		}
		return r.writePlain("%d cached songs would be removed\n", n)
	}

	n, err := cache.Clear(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("cache cleared", "removed", n)
	return r.writePlain("✓ Removed %d cached songs\n", n)
}
