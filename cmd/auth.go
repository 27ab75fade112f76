package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/autoplaylist/internal/server"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment",
			shared.ErrMissingCredentials, r.configPathOrDefault())
	}

	if err := r.authorize(ctx, r.spotify, "authorization"); err != nil {
		return err
	}
	r.provider = r.spotify

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPathOrDefault())
	r.writePlain("You can now use: autoplaylist collections\n")

	return nil
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// authorize runs the browser flow for svc, persists the resulting token and starts using it.
func (r *Runner) authorize(ctx context.Context, svc services.OAuthService, prefix string) error {
	token, err := r.doOAuth(ctx, svc, prefix)
	if err != nil {
		return err
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	callback := server.NewCallbackHandler(oauthSrv, state)
	router := server.NewBasicRouter()
	router.Handler(callback)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := server.NewHTTPServer(serverAddr, router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.Callback

	select {
	case result = <-callback.Done():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Err != nil {
		return nil, result.Err
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// withReauth runs fn and, when it fails because the saved token expired, reauthorizes once and retries.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) || r.spotify == nil {
		return err
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...\n")

	if err := r.authorize(ctx, r.spotify, "reauthorization"); err != nil {
		return fmt.Errorf("reauthorization failed: %w", err)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...\n")
	return fn()
}
