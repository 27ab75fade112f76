// package models defines the data model for autoplaylist
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/autoplaylist/internal/shared"
)

// LikedCollectionID identifies the user's saved tracks wherever a collection id is accepted.
const LikedCollectionID = "liked"

// CollectionKind distinguishes saved tracks from regular playlists.
type CollectionKind string

const (
	KindLiked    CollectionKind = "liked"
	KindPlaylist CollectionKind = "playlist"
)

// Collection is a source of tracks: a playlist or the saved-tracks pseudo-collection.
type Collection struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	TrackCount int            `json:"track_count"`
	Kind       CollectionKind `json:"type"`
}

// LikedCollection returns the saved-tracks pseudo-collection.
func LikedCollection(trackCount int) Collection {
	return Collection{ID: LikedCollectionID, Name: "Liked Songs", TrackCount: trackCount, Kind: KindLiked}
}

// ArtistRef is a reference from a track to one of its performing artists.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a song as returned by the provider. Artists keep provider order.
type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []ArtistRef `json:"artists"`
	Album       string      `json:"album,omitempty"`
	ReleaseDate string      `json:"release_date,omitempty"`
}

// ArtistNames returns the display names of the track's artists in order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// Detail returns the preview data for the track.
func (t Track) Detail() TrackDetail {
	return TrackDetail{Name: t.Name, Artists: strings.Join(t.ArtistNames(), ", ")}
}

// Artist is a distinct artist of a run with the genres the provider reports for it.
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// Facts holds inferred metadata for one track. Empty strings mean unknown.
type Facts struct {
	Language string `json:"language,omitempty"`
	Genre    string `json:"genre,omitempty"`
}

// IsEmpty reports whether neither field is known.
func (f Facts) IsEmpty() bool {
	return f.Language == "" && f.Genre == ""
}

// Merge returns f with any non-empty field of other laid over it.
func (f Facts) Merge(other Facts) Facts {
	if other.Language != "" {
		f.Language = other.Language
	}
	if other.Genre != "" {
		f.Genre = other.Genre
	}
	return f
}

// Group is a named set of track ids, in the order the tracks were discovered.
type Group struct {
	Name     string   `json:"name"`
	TrackIDs []string `json:"track_ids"`
}

// Groups marshals to a JSON object mapping each group name to its track ids, in slice order.
// When names repeat, the first group wins.
type Groups []Group

func (gs Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]bool, len(gs))
	for _, g := range gs {
		if seen[g.Name] {
			continue
		}
		if len(seen) > 0 {
			buf.WriteByte(',')
		}
		seen[g.Name] = true

		name, err := json.Marshal(g.Name)
		if err != nil {
			return nil, err
		}
		ids := g.TrackIDs
		if ids == nil {
			ids = []string{}
		}
		members, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(members)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TrackDetail is the display data used for group previews.
type TrackDetail struct {
	Name    string `json:"name"`
	Artists string `json:"artists"`
}

const (
	DefaultArtistMinAppearances = 5
	DefaultMaxGenres            = 10
	DefaultMaxArtists           = 5
	DefaultMaxLanguages         = 3

	// MinArtistAppearances is the floor applied to any configured artist threshold.
	MinArtistAppearances = 3
)

// Options selects the grouping dimensions of a run and caps each one.
// A cap of 0 yields no groups for that dimension.
type Options struct {
	WantGenre            bool `json:"genre"`
	WantArtist           bool `json:"artist"`
	WantLanguage         bool `json:"language"`
	AllowDuplicates      bool `json:"allow_duplicates"`
	ArtistMinAppearances int  `json:"artist_min_appearances"`
	MaxGenres            int  `json:"max_genres"`
	MaxArtists           int  `json:"max_artists"`
	MaxLanguages         int  `json:"max_languages"`
}

// DefaultOptions returns every dimension enabled with the default caps.
func DefaultOptions() Options {
	return Options{
		WantGenre:            true,
		WantArtist:           true,
		WantLanguage:         true,
		ArtistMinAppearances: DefaultArtistMinAppearances,
		MaxGenres:            DefaultMaxGenres,
		MaxArtists:           DefaultMaxArtists,
		MaxLanguages:         DefaultMaxLanguages,
	}
}

// Normalize clamps the artist threshold to at least [MinArtistAppearances] and replaces negative caps with defaults.
func (o Options) Normalize() Options {
	if o.ArtistMinAppearances < MinArtistAppearances {
		o.ArtistMinAppearances = MinArtistAppearances
	}
	if o.MaxGenres < 0 {
		o.MaxGenres = DefaultMaxGenres
	}
	if o.MaxArtists < 0 {
		o.MaxArtists = DefaultMaxArtists
	}
	if o.MaxLanguages < 0 {
		o.MaxLanguages = DefaultMaxLanguages
	}
	return o
}

// Validate requires at least one dimension.
func (o Options) Validate() error {
	if !o.WantGenre && !o.WantArtist && !o.WantLanguage {
		return fmt.Errorf("%w: at least one of genre, artist or language must be requested", shared.ErrInvalidInput)
	}
	return nil
}
