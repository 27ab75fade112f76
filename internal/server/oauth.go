package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/desertthunder/autoplaylist/internal/shared"
	"golang.org/x/oauth2"
)

// TokenExchanger trades an authorization code for a token.
//
// Implemented by [services.SpotifyService].
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Callback is the outcome of the Spotify redirect: a token or an error wrapping one of the
// shared sentinels.
type Callback struct {
	Token *oauth2.Token
	Err   error
}

// CallbackHandler serves the redirect URI of the authorization code flow used by `auth`.
// Only the first request is honored; its outcome is delivered once on Done.
type CallbackHandler struct {
	exchanger TokenExchanger
	state     string
	done      chan Callback
	claimed   atomic.Bool
}

// NewCallbackHandler expects redirects carrying state, which should be random per attempt.
func NewCallbackHandler(exchanger TokenExchanger, state string) *CallbackHandler {
	return &CallbackHandler{
		exchanger: exchanger,
		state:     state,
		done:      make(chan Callback, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claimed.CompareAndSwap(false, true) {
		http.Error(w, "authorization already completed", http.StatusConflict)
		return
	}

	code, err := h.authorizationCode(r.URL.Query())
	if err != nil {
		h.finish(Callback{Err: err})
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		err = fmt.Errorf("%w: code exchange: %w", shared.ErrAuthFailed, err)
		h.finish(Callback{Err: err})
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.finish(Callback{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, connectedPage)
}

// authorizationCode validates the redirect query. Spotify reports a declined consent as
// error and error_description instead of a code.
func (h *CallbackHandler) authorizationCode(q url.Values) (string, error) {
	if q.Get("state") != h.state {
		return "", fmt.Errorf("%w: state does not match this authorization attempt", shared.ErrInvalidInput)
	}
	if reason := q.Get("error"); reason != "" {
		if desc := q.Get("error_description"); desc != "" {
			return "", fmt.Errorf("%w: spotify returned %s: %s", shared.ErrAuthFailed, reason, desc)
		}
		return "", fmt.Errorf("%w: spotify returned %s", shared.ErrAuthFailed, reason)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: code", shared.ErrMissingArgument)
	}
	return code, nil
}

func (h *CallbackHandler) finish(c Callback) {
	h.done <- c
	close(h.done)
}

// Done yields exactly one Callback and is then closed.
func (h *CallbackHandler) Done() <-chan Callback {
	return h.done
}

const connectedPage = `<!DOCTYPE html>
<html>
<head>
    <title>AutoPlaylist: Connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #181818; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.4); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Spotify connected</h1>
        <p>You can close this window and return to autoplaylist.</p>
    </div>
</body>
</html>
`
