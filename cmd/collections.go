package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Collections lists the saved-tracks pseudo-collection followed by the user's playlists.
func (r *Runner) Collections(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.requireProvider()
	if err != nil {
		return err
	}

	var collections []models.Collection
	err = r.withReauth(ctx, func() error {
		var listErr error
		collections, listErr = provider.ListCollections(ctx)
		return listErr
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(collections, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d collections:\n\n", len(collections))
	for i, c := range collections {
		r.writePlain("%d. %s\n", i+1, c.Name)
		r.writePlain("   ID: %s\n", c.ID)
		r.writePlain("   Tracks: %d\n", c.TrackCount)
		r.writePlain("\n")
	}
	return nil
}
