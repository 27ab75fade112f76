package tasks

import (
	"fmt"

	"github.com/desertthunder/autoplaylist/internal/inference"
	"github.com/desertthunder/autoplaylist/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchTracks Phase = iota
	FetchArtists
	LookupCache
	InferFacts
	StoreFacts
	GroupTracks
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case FetchTracks:
		return "fetch_tracks"
	case FetchArtists:
		return "fetch_artists"
	case LookupCache:
		return "lookup_cache"
	case InferFacts:
		return "infer_facts"
	case StoreFacts:
		return "store_facts"
	case GroupTracks:
		return "group_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func fetchTracksUpdate(step, total int, collectionID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks from %s...", step, total, collectionID),
	}
}

func dedupedTracksUpdate(fetched, unique int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    unique,
		Total:   fetched,
		Message: fmt.Sprintf("Found %d unique tracks (%d fetched)", unique, fetched),
	}
}

func artistBatchUpdate(step, total int, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   FetchArtists,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ Artist genres unavailable: %v", step, total, err),
		}
	}
	return ProgressUpdate{
		Phase:   FetchArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetched artist genres", step, total),
	}
}

func cacheLookupUpdate(hits, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LookupCache,
		Step:    hits,
		Total:   total,
		Message: fmt.Sprintf("Cache: %d of %d tracks known", hits, total),
	}
}

func inferenceBatchUpdate(step, total int, out inference.Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InferFacts,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Inference batch %s (%d tracks)", step, total, out.Status, len(out.Facts)),
		Data:    out.Status,
	}
}

func storeFactsUpdate(stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreFacts,
		Step:    stored,
		Total:   stored,
		Message: fmt.Sprintf("Cached facts for %d tracks", stored),
	}
}

func groupTracksUpdate(result *Result) ProgressUpdate {
	groups := len(result.GenreGroups) + len(result.ArtistGroups) + len(result.LanguageGroups)
	return ProgressUpdate{
		Phase:   GroupTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Built %d groups from %d tracks", groups, len(result.TrackDetails)),
		Data:    result,
	}
}

func createPlaylistUpdate(step, total int, g models.Group) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating %s%s...", step, total, PlaylistPrefix, g.Name),
	}
}

func addTracksUpdate(step, total int, p Published) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, p.Name, p.TrackCount),
		Data:    p,
	}
}
