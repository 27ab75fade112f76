package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/autoplaylist/internal/formatter"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate enriches and groups the given collections, renders the result and optionally
// publishes every group as a playlist.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	provider, err := r.requireProvider()
	if err != nil {
		return err
	}

	cache, db, err := r.openCache(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := r.engine(provider, cache)
	opts := r.generateOptions(cmd)

	var result *tasks.Result
	err = r.withReauth(ctx, func() error {
		return r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
			var runErr error
			result, runErr = engine.Enrich(ctx, cmd.StringSlice("collection"), opts, progress)
			return runErr
		})
	})
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(result, format, path); err != nil {
			return err
		}
		if err := r.writePlain("✓ Groups written to %s\n", path); err != nil {
			return err
		}
	} else {
		data, err := formatter.Render(result, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if !cmd.Bool("publish") {
		return nil
	}

	var created []tasks.Published
	err = r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var pubErr error
		created, pubErr = engine.Publish(ctx, result.Groups(), progress)
		return pubErr
	})
	if len(created) > 0 {
		if werr := r.writePublished(created); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}

func (r *Runner) writePublished(created []tasks.Published) error {
	if err := r.writePlainln("Created %d playlists:", len(created)); err != nil {
		return err
	}
	return r.writePlain("%s", formatter.ToPublishedText(created))
}

// runWithProgress calls fn with a progress channel that is logged until fn returns.
func (r *Runner) runWithProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.logProgress(progress)
	}()

	err := fn(progress)
	close(progress)
	wg.Wait()
	return err
}

// generateOptions starts from the configured defaults and applies every flag that was set.
func (r *Runner) generateOptions(cmd *cli.Command) models.Options {
	opts := r.defaultOptions()
	if cmd.IsSet("genre") {
		opts.WantGenre = cmd.Bool("genre")
	}
	if cmd.IsSet("artist") {
		opts.WantArtist = cmd.Bool("artist")
	}
	if cmd.IsSet("language") {
		opts.WantLanguage = cmd.Bool("language")
	}
	if cmd.IsSet("allow-duplicates") {
		opts.AllowDuplicates = cmd.Bool("allow-duplicates")
	}
	if cmd.IsSet("artist-min") {
		opts.ArtistMinAppearances = int(cmd.Int("artist-min"))
	}
	if cmd.IsSet("max-genres") {
		opts.MaxGenres = int(cmd.Int("max-genres"))
	}
	if cmd.IsSet("max-artists") {
		opts.MaxArtists = int(cmd.Int("max-artists"))
	}
	if cmd.IsSet("max-languages") {
		opts.MaxLanguages = int(cmd.Int("max-languages"))
	}
	return opts
}
