// Package services implements the external lookup clients used to resolve track features.
//
// # Spotify
//
// [SpotifyClient] issues bearer-authenticated Web API requests and decodes responses into
// [payload.Document] values. Non-2xx responses become [*SpotifyError], with 401 and 403
// tagged as authorization failures.
//
// Requests are command objects implementing [Operation]. [Request] covers single calls and
// [CreatePlaylist] chains two. [SessionClient] runs an operation on behalf of a stored
// session: it loads the token set, refreshes it through a [TokenRefresher] after an
// authorization failure and retries exactly once.
//
// # MusicBrainz
//
// [MusicBrainzClient] searches recordings by ISRC and looks recordings up by MBID. Every
// request first passes the shared [Throttle] and carries the configured User-Agent.
// Failures become [*LookupError].
//
// # Error Handling
//
// Both typed errors unwrap to sentinels from the shared package:
//   - [shared.ErrNotAuthorized] : Spotify 401/403 or an unusable session
//   - [shared.ErrAPIRequest] : any other Spotify failure
//   - [shared.ErrServiceUnavailable] : any MusicBrainz failure
//   - [shared.ErrMissingConfig] : no MusicBrainz User-Agent configured
package services
