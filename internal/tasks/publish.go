package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
)

const (
	// PlaylistPrefix marks playlists created by autoplaylist.
	PlaylistPrefix = "AP: "
	// PlaylistDescription is set on every created playlist.
	PlaylistDescription = "Created by AutoPlaylist"
	// DefaultPlaylistName is used for groups without a name.
	DefaultPlaylistName = "AutoPlaylist"
)

// Published describes a playlist created from a group.
type Published struct {
	Name       string `json:"name"`
	PlaylistID string `json:"playlist_id"`
	TrackCount int    `json:"track_count"`
}

// Publish creates one playlist per non-empty group and fills it with the group's tracks,
// [services.MaxTracksPerAdd] at a time. Any provider error stops publishing and is returned
// together with the playlists created so far.
func (e *Engine) Publish(ctx context.Context, groups []models.Group, progress chan<- ProgressUpdate) ([]Published, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: provider not initialized", shared.ErrServiceUnavailable)
	}

	var todo []models.Group
	for _, g := range groups {
		if len(g.TrackIDs) > 0 {
			todo = append(todo, g)
		}
	}

	created := make([]Published, 0, len(todo))
	for i, g := range todo {
		if g.Name == "" {
			g.Name = DefaultPlaylistName
		}
		e.sendProgress(progress, createPlaylistUpdate(i+1, len(todo), g))

		id, err := e.provider.CreatePlaylist(ctx, PlaylistPrefix+g.Name, PlaylistDescription)
		if err != nil {
			return created, fmt.Errorf("%w: failed to create playlist %q: %w", shared.ErrUpstreamUnavailable, g.Name, err)
		}

		uris := make([]string, len(g.TrackIDs))
		for j, tid := range g.TrackIDs {
			uris[j] = services.TrackURI(tid)
		}
		for _, batch := range chunk(uris, services.MaxTracksPerAdd) {
			if err := e.provider.AddTracks(ctx, id, batch); err != nil {
				return created, fmt.Errorf("%w: failed to add tracks to %q: %w", shared.ErrUpstreamUnavailable, g.Name, err)
			}
		}

		p := Published{Name: g.Name, PlaylistID: id, TrackCount: len(g.TrackIDs)}
		created = append(created, p)
		e.sendProgress(progress, addTracksUpdate(i+1, len(todo), p))
		e.logger.Info("playlist created", "name", p.Name, "id", p.PlaylistID, "tracks", p.TrackCount)
	}
	return created, nil
}
