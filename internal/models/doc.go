// Package models defines the domain types shared by the enrichment pipeline, its consumers and its persistence layer.
//
// The package contains three categories of types:
//
// 1. Library types: data fetched from the streaming provider and owned by one run
//   - [Track] : a song with its ordered [ArtistRef] list
//   - [Artist] : an artist with its resolved provider genre tags
//   - [Collection] : a playlist or the saved-tracks pseudo-collection
//
// 2. Enrichment types: per-track metadata that outlives a run
//   - [Facts] : optional language and genre, persisted by the metadata cache
//
// 3. Output types: grouping results and request parameters
//   - [Group] : a named, ordered list of track ids
//   - [TrackDetail] : display data for previews
//   - [Options] : which dimensions to build and how to cap them
package models
