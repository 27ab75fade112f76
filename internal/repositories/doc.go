// Package repositories implements SQLite persistence for autoplaylist.
//
// [SongCache] is the metadata cache: inferred language and genre per provider track id,
// kept across runs so a track is sent to the inference service at most once per field.
// Rows are written only when at least one field is known and are upserted in a single
// transaction per call. The schema is created by the embedded migrations in the shared package.
package repositories
