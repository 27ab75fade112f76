// Package server provides HTTP routing, middleware, OAuth handling and the JSON API used by the web frontend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally. Several methods may share a path; any other
// method gets 405 with an Allow header.
//
// # OAuth Callback Handler
//
// [CallbackHandler] serves the redirect URI while `autoplaylist auth` waits for consent. It accepts a single
// request, checks its state, and exchanges the code. Declined consent arrives as error and error_description
// and is reported wrapped in the shared sentinels.
//
// # JSON API
//
// [API] serves the endpoints of the web frontend:
//
//	GET  /                   liveness message
//	GET  /login              redirect to the provider's consent page
//	GET  /callback           exchange the code and redirect to the frontend with both tokens
//	POST /refresh            trade a refresh token for a new access token
//	GET  /playlists          list collections
//	GET  /tracks             list tracks of ?playlist_ids=a,b
//	POST /generate           enrich and group collections
//	POST /create-playlists   publish reviewed groups
//
// Data endpoints take the provider access token as a bearer token. Errors are JSON objects with a "detail"
// key and a status derived from the error kind by [StatusFor].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
