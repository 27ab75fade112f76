package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/autoplaylist/internal/formatter"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/desertthunder/autoplaylist/internal/tasks"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

const (
	maxBodyBytes = 1 << 20
	stateTTL     = 10 * time.Minute
)

// Authenticator drives the browser authorization code flow.
//
// Implemented by [services.SpotifyService].
type Authenticator interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ProviderFunc returns a provider session that acts with accessToken.
type ProviderFunc func(accessToken string) services.Provider

// APIOpts configures an [API].
type APIOpts struct {
	Auth        Authenticator
	Provider    ProviderFunc
	Cache       tasks.FactStore
	Inferrer    tasks.Inferrer
	Defaults    models.Options // applied before request options
	FrontendURL string         // receives the tokens after login
	Concurrency int
	Logger      *log.Logger
}

// API serves the JSON endpoints used by the web frontend.
//
// Data endpoints require an "Authorization: Bearer <access token>" header; the token is passed
// through to the provider and never stored.
type API struct {
	auth        Authenticator
	provider    ProviderFunc
	cache       tasks.FactStore
	inferrer    tasks.Inferrer
	defaults    models.Options
	frontendURL string
	concurrency int
	states      *cache.Cache
	logger      *log.Logger
}

// NewAPI creates an API.
func NewAPI(opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if !opts.Defaults.WantGenre && !opts.Defaults.WantArtist && !opts.Defaults.WantLanguage {
		opts.Defaults = models.DefaultOptions()
	}
	return &API{
		auth:        opts.Auth,
		provider:    opts.Provider,
		cache:       opts.Cache,
		inferrer:    opts.Inferrer,
		defaults:    opts.Defaults,
		frontendURL: strings.TrimSuffix(opts.FrontendURL, "/"),
		concurrency: opts.Concurrency,
		states:      cache.New(stateTTL, 2*stateTTL),
		logger:      opts.Logger,
	}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.home))
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(a.login))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.callback))
	r.Handle(http.MethodPost, "/refresh", http.HandlerFunc(a.refresh))
	r.Handle(http.MethodGet, "/playlists", a.authorized(a.playlists))
	r.Handle(http.MethodGet, "/tracks", a.authorized(a.tracks))
	r.Handle(http.MethodPost, "/generate", a.authorized(a.generate))
	r.Handle(http.MethodPost, "/create-playlists", a.authorized(a.createPlaylists))
}

func (a *API) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Spotify Backend is Live",
		"login_url": "/login",
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Login is not configured")
		return
	}
	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not start login")
		return
	}
	a.states.SetDefault(state, true)
	http.Redirect(w, r, a.auth.GetAuthURL(state), http.StatusTemporaryRedirect)
}

func (a *API) callback(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Login is not configured")
		return
	}
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing code from Spotify")
		return
	}

	state := q.Get("state")
	if _, ok := a.states.Get(state); !ok {
		writeError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}
	a.states.Delete(state)

	token, err := a.auth.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Warn("code exchange failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Could not exchange code")
		return
	}

	params := url.Values{}
	params.Set("token", token.AccessToken)
	params.Set("refresh", token.RefreshToken)
	http.Redirect(w, r, a.frontendURL+"/callback?"+params.Encode(), http.StatusTemporaryRedirect)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Login is not configured")
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Missing refresh_token")
		return
	}

	token, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("Could not refresh token: %v", err))
		return
	}

	resp := refreshResponse{AccessToken: token.AccessToken}
	if token.RefreshToken != req.RefreshToken {
		resp.RefreshToken = token.RefreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorized extracts the bearer token and hands its provider session to h.
func (a *API) authorized(h func(http.ResponseWriter, *http.Request, services.Provider)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		if a.provider == nil {
			writeError(w, http.StatusServiceUnavailable, "Provider is not configured")
			return
		}
		h(w, r, a.provider(token))
	})
}

func (a *API) playlists(w http.ResponseWriter, r *http.Request, p services.Provider) {
	collections, err := p.ListCollections(r.Context())
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

// trackResponse is a track tagged with the collection it was read from.
type trackResponse struct {
	TrackID        string             `json:"track_id"`
	Name           string             `json:"name"`
	Artists        []models.ArtistRef `json:"artists"`
	Album          string             `json:"album"`
	ReleaseDate    string             `json:"release_date"`
	PlaylistSource string             `json:"playlist_source"`
}

func (a *API) tracks(w http.ResponseWriter, r *http.Request, p services.Provider) {
	ids := splitIDs(r.URL.Query().Get("playlist_ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "Missing playlist_ids")
		return
	}

	out := make([]trackResponse, 0)
	for _, id := range ids {
		tracks, err := p.ListTracks(r.Context(), id)
		if err != nil {
			a.fail(w, r, fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, err))
			return
		}
		for _, t := range tracks {
			out = append(out, trackResponse{
				TrackID:        t.ID,
				Name:           t.Name,
				Artists:        t.Artists,
				Album:          t.Album,
				ReleaseDate:    t.ReleaseDate,
				PlaylistSource: id,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type generateRequest struct {
	PlaylistIDs []string        `json:"playlist_ids"`
	Options     json.RawMessage `json:"options"`
}

func (a *API) generate(w http.ResponseWriter, r *http.Request, p services.Provider) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := a.defaults
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid options: %v", err))
			return
		}
	}

	result, err := a.engine(p).Enrich(r.Context(), req.PlaylistIDs, opts, nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formatter.NewPayload(result))
}

type createRequest struct {
	Playlists []models.Group `json:"playlists"`
}

type createResponse struct {
	Status  string            `json:"status"`
	Created []tasks.Published `json:"created"`
}

func (a *API) createPlaylists(w http.ResponseWriter, r *http.Request, p services.Provider) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.engine(p).Publish(r.Context(), req.Playlists, nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{Status: "ok", Created: created})
}

func (a *API) engine(p services.Provider) *tasks.Engine {
	return tasks.NewEngine(p, a.cache, a.inferrer, tasks.EngineOpts{
		Concurrency: a.concurrency,
		Logger:      a.logger,
	})
}

// fail writes err with the status its kind maps to.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrCacheUnavailable),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrUpstreamUnavailable),
		errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("Invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
