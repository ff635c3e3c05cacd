// Package tasks resolves Spotify tracks to MusicBrainz features through a chain of cached lookups.
//
// # Stages
//
// Resolution runs three independently cached stages:
//
//  1. [StageTrackISRC] : Spotify track id -> ISRC, from the track's external_ids
//  2. [StageISRCMBID] : ISRC -> recording MBID, from the best MusicBrainz ISRC candidate
//  3. [StageFeatures] : MBID -> tags, genres, artists and releases
//
// # Cache Policy
//
// Every stage follows the same policy, written once in the generic stage runner:
//   - a usable row (fresh, or stale inside its backoff window) is served without a lookup
//   - a successful lookup is stored with the positive TTL, an empty one with the negative TTL
//   - a failed lookup extends the existing row's backoff and serves its value, or reports absence
//
// Only configuration, input and store errors reach the caller. Not found is an explicit false.
//
// # Implementation
//
// [Resolver] depends on:
//   - [CacheStore] : repositories.FeatureCache
//   - [TrackSource] : services.SpotifyClient, for bare access tokens
//   - [SessionRunner] : services.SessionClient, for logged-in sessions
//   - [RecordingSource] : services.MusicBrainzClient
package tasks
