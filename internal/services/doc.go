// Package services implements the HTTP clients behind the [Provider] and [InferenceClient] interfaces.
//
// # Spotify
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// Refreshed tokens are reported through [SpotifyService.SetTokenRefreshCallback] so the CLI can persist them.
// [SpotifyService.WithToken] scopes a copy of the service to a single bearer token for the HTTP API.
//
// Saved tracks are paged 50 at a time and playlist items 100 at a time. Unavailable items and local
// files without an id are dropped. Artist genres are requested at most 50 ids per call and memoized
// with [cache.Cache]. Requests are paced by a [rate.Limiter] and 429 responses are retried after
// the Retry-After delay.
//
// # Groq
//
// [GroqClient] posts a single user message to an OpenAI-compatible chat completions endpoint and
// returns the raw reply text. Parsing is the caller's concern.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token loaded
//   - [shared.ErrTokenExpired] : provider returned 401
//   - [shared.ErrAPIRequest] : provider request failed
//   - [shared.ErrInferenceFailed] : completion request failed
package services
