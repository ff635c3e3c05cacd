// Package server exposes trackfx over HTTP.
//
// # Router
//
// [BasicRouter] registers "METHOD /path" patterns on an [http.ServeMux] and wraps each route in
// the [Middleware] stack, last added outermost. [Handler] implementations group related routes.
//
// # Routes
//
// [AuthHandler] publishes the public Spotify client config and runs the authorization code flow
// with PKCE. A successful callback stores the token set under a new session id and sets the
// spotify_session_id cookie.
//
// [SpotifyHandler] proxies the current user's profile, playlists, search and library through the
// session, refreshing tokens as needed.
//
// [FeaturesHandler] runs the cached track, ISRC and recording resolution chain.
//
// # Errors
//
// Failures are written as {"detail": "..."}. Validation errors are 422, authorization failures
// 401, configuration and store failures 500, and other Spotify failures keep their status.
package server
