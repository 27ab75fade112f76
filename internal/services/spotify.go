// Spotify Web API implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	savedTracksPageSize    = 50
	playlistTracksPageSize = 100
	playlistsPageSize      = 50

	maxRateLimitRetries = 3
	defaultArtistTTL    = time.Hour
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	IsLocal bool            `json:"is_local"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist. Genres is only populated by the artists endpoint.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// SpotifySavedTrack represents a track saved in the user's library or an item of a playlist.
//
// Track is nil for items the provider can no longer resolve.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks or playlist items.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	URI         string              `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the service at a different API root.
func WithSpotifyBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithSpotifyRateLimit caps outgoing requests per second. Zero or less disables the limit.
func WithSpotifyRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithArtistGenreTTL sets how long artist genres are memoized. Zero or less keeps the default.
func WithArtistGenreTTL(ttl time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		if ttl > 0 {
			s.artistGenres = cache.New(ttl, ttl*2)
		}
	}
}

// SpotifyService implements [Provider] for the Spotify Web API.
//
// Uses [oauth2] for authentication, [rate.Limiter] to pace requests shared by every copy
// made with [SpotifyService.WithToken], and a [cache.Cache] memo of artist genres.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	artistGenres   *cache.Cache
	onTokenRefresh func(*oauth2.Token)

	userMu sync.Mutex
	userID string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// When credentials carry an access_token the service is ready for API calls.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:       config,
		httpClient:   http.DefaultClient,
		baseURL:      spotifyBaseURL,
		limiter:      rate.NewLimiter(rate.Limit(10), 10),
		artistGenres: cache.New(defaultArtistTTL, defaultArtistTTL*2),
	}
	for _, opt := range opts {
		opt(s)
	}

	if accessToken := credentials["access_token"]; accessToken != "" {
		tok := &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"]}
		if err := s.OAuthenticate(context.Background(), tok); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// OAuthenticate uses token for subsequent requests. Expired tokens with a refresh token are renewed
// transparently and reported to the callback set with [SpotifyService.SetTokenRefreshCallback].
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	var source oauth2.TokenSource
	if token.RefreshToken != "" {
		source = s.config.TokenSource(ctx, token)
	} else {
		source = oauth2.StaticTokenSource(token)
	}
	source = &refreshableTokenSource{source: source, callback: s.onTokenRefresh}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// WithToken returns a copy of the service that acts as the holder of accessToken.
//
// The copy shares the rate limiter and the artist genre memo. Used by the HTTP API,
// where each request carries its own bearer token.
func (s *SpotifyService) WithToken(accessToken string) *SpotifyService {
	tok := &oauth2.Token{AccessToken: accessToken}
	return &SpotifyService{
		config:       s.config,
		token:        tok,
		httpClient:   oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(tok)),
		baseURL:      s.baseURL,
		limiter:      s.limiter,
		artistGenres: s.artistGenres,
	}
}

// SetTokenRefreshCallback registers fn to receive refreshed tokens so they can be persisted.
//
// Takes effect on the next call to [SpotifyService.OAuthenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Refresh trades a refresh token for a new access token.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	token, err := s.config.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// endpoint is either a path relative to the API root or an absolute "next" URL from a page.
// 429 responses are retried after the advertised Retry-After delay.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		return decodeResponse(resp, result)
	}
}

func decodeResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// retryAfter parses a Retry-After header in seconds, defaulting to one second.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// currentUserID returns the profile id, fetching it once.
func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}
	s.userID = user.ID
	return s.userID, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	limit = clampLimit(limit, savedTracksPageSize)
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistTracks retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	limit = clampLimit(limit, playlistTracksPageSize)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit, playlistsPageSize)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// SeveralArtists retrieves up to 50 artists by id. Unknown ids come back as nil entries.
func (s *SpotifyService) SeveralArtists(ctx context.Context, artistIDs []string) ([]*SpotifyArtist, error) {
	if len(artistIDs) == 0 {
		return nil, nil
	}
	if len(artistIDs) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("%w: maximum %d artist IDs allowed", shared.ErrInvalidArgument, MaxArtistsPerRequest)
	}

	endpoint := "/artists?ids=" + url.QueryEscape(strings.Join(artistIDs, ","))

	var response struct {
		Artists []*SpotifyArtist `json:"artists"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Artists, nil
}

// ListCollections returns the saved-tracks pseudo-collection followed by all of the user's playlists.
func (s *SpotifyService) ListCollections(ctx context.Context) ([]models.Collection, error) {
	liked, err := s.SavedTracks(ctx, 1, 0)
	if err != nil {
		return nil, err
	}

	collections := []models.Collection{models.LikedCollection(liked.Total)}

	offset := 0
	for {
		response, err := s.UserPlaylists(ctx, playlistsPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			collections = append(collections, models.Collection{
				ID:         sp.ID,
				Name:       sp.Name,
				TrackCount: sp.Tracks.Total,
				Kind:       models.KindPlaylist,
			})
		}

		if response.Next == nil {
			break
		}
		offset += playlistsPageSize
	}

	return collections, nil
}

// ListTracks returns every track of a collection, skipping unavailable items and local files.
func (s *SpotifyService) ListTracks(ctx context.Context, collectionID string) ([]models.Track, error) {
	fetch := func(offset int) (*SpotifyPaginatedTracks, error) {
		return s.PlaylistTracks(ctx, collectionID, playlistTracksPageSize, offset)
	}
	pageSize := playlistTracksPageSize
	if collectionID == models.LikedCollectionID {
		pageSize = savedTracksPageSize
		fetch = func(offset int) (*SpotifyPaginatedTracks, error) {
			return s.SavedTracks(ctx, savedTracksPageSize, offset)
		}
	}

	var tracks []models.Track
	offset := 0
	for {
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, toTrack(item.Track))
		}

		if page.Next == nil {
			break
		}
		offset += pageSize
	}

	return tracks, nil
}

// ArtistGenres returns provider genre tags for up to 50 artists.
//
// Results are memoized; only ids missing from the memo are requested.
func (s *SpotifyService) ArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error) {
	if len(artistIDs) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("%w: maximum %d artist IDs allowed", shared.ErrInvalidArgument, MaxArtistsPerRequest)
	}

	result := make(map[string][]string, len(artistIDs))
	var missing []string
	for _, id := range artistIDs {
		if cached, found := s.artistGenres.Get(id); found {
			result[id] = cached.([]string)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	artists, err := s.SeveralArtists(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, a := range artists {
		if a == nil {
			continue
		}
		genres := a.Genres
		if genres == nil {
			genres = []string{}
		}
		result[a.ID] = genres
		s.artistGenres.Set(a.ID, genres, cache.DefaultExpiration)
	}

	return result, nil
}

// CreatePlaylist creates a public playlist for the current user and returns its id.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      true,
	}

	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: playlist created without id", shared.ErrAPIRequest)
	}

	return created.ID, nil
}

// AddTracks appends up to 100 track URIs to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxTracksPerAdd {
		return fmt.Errorf("%w: maximum %d tracks per request", shared.ErrInvalidArgument, MaxTracksPerAdd)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": uris}, nil)
}

func toTrack(st *SpotifyTrack) models.Track {
	t := models.Track{
		ID:          st.ID,
		Name:        st.Name,
		Album:       st.Album.Name,
		ReleaseDate: st.Album.ReleaseDate,
		Artists:     make([]models.ArtistRef, 0, len(st.Artists)),
	}
	for _, a := range st.Artists {
		t.Artists = append(t.Artists, models.ArtistRef{ID: a.ID, Name: a.Name})
	}
	return t
}

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

// refreshableTokenSource reports every token that differs from the previous one to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
