// Package models defines the domain types of the trackfx feature resolver.
//
// The package contains three categories of types:
//
// 1. Feature values resolved from MusicBrainz recordings
//   - [Tag] : a tag or genre with its vote count
//   - [RecordingMetadata] : canonical title, length, artists and releases
//   - [TrackFeatures] : the tag list plus metadata persisted per MBID
//   - [TrackResolution] : every hop of a Spotify track -> ISRC -> MBID -> features chain
//
// 2. Cache rows stored per resolution stage
//   - [CacheRow] : a value with its update, expiry and backoff timestamps
//
// 3. OAuth session state
//   - [TokenSet] : the opaque token mapping returned by the Spotify accounts service
package models
