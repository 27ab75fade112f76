package tasks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	tu "github.com/desertthunder/autoplaylist/internal/testing"
)

func trackIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%03d", i)
	}
	return ids
}

func TestEngine_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Playlists In Batches", func(t *testing.T) {
		p := &tu.MockProvider{}
		e := NewEngine(p, nil, nil, EngineOpts{})

		groups := []models.Group{
			{Name: "K-Pop", TrackIDs: trackIDs(250)},
			{Name: "Empty"},
			{Name: "", TrackIDs: []string{"x"}},
		}

		created, err := e.Publish(ctx, groups, nil)
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		want := []Published{
			{Name: "K-Pop", PlaylistID: "created-1", TrackCount: 250},
			{Name: DefaultPlaylistName, PlaylistID: "created-2", TrackCount: 1},
		}
		if !reflect.DeepEqual(created, want) {
			t.Errorf("Publish() = %v, want %v", created, want)
		}

		if p.Created[0].Name != "AP: K-Pop" || p.Created[0].Description != PlaylistDescription {
			t.Errorf("unexpected playlist %+v", p.Created[0])
		}
		if p.Created[1].Name != "AP: AutoPlaylist" {
			t.Errorf("unnamed group should use the default name, got %q", p.Created[1].Name)
		}

		if !reflect.DeepEqual(p.AddCallSizes, []int{100, 100, 50, 1}) {
			t.Errorf("AddCallSizes = %v", p.AddCallSizes)
		}
		uris := p.AddedTracks["created-1"]
		if len(uris) != 250 || uris[0] != "spotify:track:id000" || uris[249] != "spotify:track:id249" {
			t.Errorf("tracks were not added in order: %d uris", len(uris))
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		p := &tu.MockProvider{PublishErr: errors.New("403 forbidden")}
		e := NewEngine(p, nil, nil, EngineOpts{})

		created, err := e.Publish(ctx, []models.Group{{Name: "Rock", TrackIDs: []string{"t1"}}}, nil)
		if !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if len(created) != 0 {
			t.Errorf("expected nothing created, got %v", created)
		}
	})

	t.Run("Progress", func(t *testing.T) {
		p := &tu.MockProvider{}
		e := NewEngine(p, nil, nil, EngineOpts{})
		progress := make(chan ProgressUpdate, 10)

		if _, err := e.Publish(ctx, []models.Group{{Name: "Jazz", TrackIDs: []string{"t1"}}}, progress); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if !reflect.DeepEqual(phases, []Phase{CreatePlaylist, AddTracks}) {
			t.Errorf("phases = %v", phases)
		}
	})

	t.Run("Nothing To Publish", func(t *testing.T) {
		p := &tu.MockProvider{}
		e := NewEngine(p, nil, nil, EngineOpts{})

		created, err := e.Publish(ctx, nil, nil)
		if err != nil || len(created) != 0 || len(p.Created) != 0 {
			t.Errorf("expected no playlists, got %v / %v", created, err)
		}
	})
}
