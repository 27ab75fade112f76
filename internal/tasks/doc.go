// Package tasks turns a user's collections into named groups of tracks with real-time progress reporting.
//
// # Core Operations
//
// [Engine] exposes two operations:
//
//  1. [Engine.Enrich] : Fetch, enrich and group
//     - Fetches every requested collection and deduplicates tracks by id, first occurrence wins
//     - Resolves provider genres for each distinct artist in batches of 50
//     - Reads cached facts, infers missing language and genre in batches of 25
//     - Writes fresh non-empty facts back to the cache
//     - Returns genre, artist and language groups plus track previews
//
//  2. [Engine.Publish] : Create playlists from groups
//     - Creates one "AP: <name>" playlist per non-empty group
//     - Adds tracks 100 at a time
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Failure Handling
//
// Failing to fetch a collection or to use the cache ends the run with an error. A failed artist or
// inference batch is logged and its tracks fall back to "Other" and "Unknown".
//
// # Grouping
//
// The grouping functions ([Group], [GroupByArtist], [GroupByGenre], [GroupByLanguage]) are pure and
// deterministic: buckets are ordered by size with ties kept in discovery order.
package tasks
