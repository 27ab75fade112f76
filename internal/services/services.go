// package services defines the clients autoplaylist uses to talk to HTTP APIs
//
// Spotify (library provider), Groq (inference)
package services

import (
	"context"

	"github.com/desertthunder/autoplaylist/internal/models"
	"golang.org/x/oauth2"
)

const (
	// MaxArtistsPerRequest is the provider's limit for one artist lookup.
	MaxArtistsPerRequest = 50
	// MaxTracksPerAdd is the provider's limit for one add-to-playlist call.
	MaxTracksPerAdd = 100
)

// Provider is a music library that can list its tracks, describe artists and receive new playlists.
type Provider interface {
	// ListCollections returns the saved-tracks pseudo-collection first, then every playlist of the user.
	ListCollections(ctx context.Context) ([]models.Collection, error)

	// ListTracks returns every track of a collection in provider order.
	// [models.LikedCollectionID] selects the saved tracks.
	ListTracks(ctx context.Context, collectionID string) ([]models.Track, error)

	// ArtistGenres returns provider genre tags for up to [MaxArtistsPerRequest] artists.
	// Artists the provider does not know are absent from the result.
	ArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error)

	// CreatePlaylist creates an empty playlist owned by the current user and returns its id.
	CreatePlaylist(ctx context.Context, name, description string) (string, error)

	// AddTracks appends up to [MaxTracksPerAdd] track URIs to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// CompletionParams are the model settings sent with a completion request.
type CompletionParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// InferenceClient sends a single-message prompt to a language model and returns the raw reply text.
type InferenceClient interface {
	Complete(ctx context.Context, prompt string, params CompletionParams) (string, error)
}

// OAuthService is implemented by providers that authenticate users with the authorization code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// TrackURI returns the provider URI of a track id.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}
