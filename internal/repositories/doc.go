// Package repositories implements SQLite persistence for the resolver cache and OAuth sessions.
//
// Key Implementations:
//   - [FeatureCache] : per-stage cache tables with expiry and failure backoff
//   - [SessionRepository] : token sets keyed by session id, used as the session token store
//
// Every operation runs in its own short transaction on the pooled connection, so no
// connection is held while a caller performs network I/O. Schema comes from the
// migrations in [shared.RunMigrations].
package repositories
