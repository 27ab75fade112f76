package tasks

import (
	"sort"

	"github.com/desertthunder/autoplaylist/internal/genre"
	"github.com/desertthunder/autoplaylist/internal/models"
)

const (
	// OtherGenre collects tracks without any genre information.
	OtherGenre = "Other"
	// UnknownLanguage collects tracks without a resolved language.
	UnknownLanguage = "Unknown"
	// UnknownArtist names an artist group whose artist has no display name.
	UnknownArtist = "Unknown Artist"
)

// Group builds the requested group collections from deduplicated tracks, their artists (with
// provider genres) and their resolved facts. opts is expected to be normalized.
func Group(tracks []models.Track, artists map[string]*models.Artist, facts map[string]models.Facts, opts models.Options) *Result {
	result := &Result{TrackDetails: make(map[string]models.TrackDetail, len(tracks))}
	for _, t := range tracks {
		result.TrackDetails[t.ID] = t.Detail()
	}

	if opts.WantArtist {
		result.ArtistGroups = GroupByArtist(tracks, artists, opts.ArtistMinAppearances, opts.MaxArtists)
	}
	if opts.WantGenre {
		result.GenreGroups = GroupByGenre(tracks, artists, facts, opts.AllowDuplicates, opts.MaxGenres)
	}
	if opts.WantLanguage {
		result.LanguageGroups = GroupByLanguage(tracks, facts, opts.AllowDuplicates, opts.MaxLanguages)
	}
	return result
}

// GroupByArtist returns one group per artist appearing on at least minAppearances tracks,
// largest first, capped at limit.
func GroupByArtist(tracks []models.Track, artists map[string]*models.Artist, minAppearances, limit int) []models.Group {
	b := newBuckets()
	for _, t := range tracks {
		for _, a := range t.Artists {
			b.add(a.ID, t.ID, true)
		}
	}

	groups := make([]models.Group, 0)
	for _, g := range b.sorted(-1) {
		if len(g.TrackIDs) < minAppearances {
			continue
		}
		if len(groups) == limit {
			break
		}
		name := UnknownArtist
		if a, ok := artists[g.Name]; ok && a.Name != "" {
			name = a.Name
		}
		groups = append(groups, models.Group{Name: name, TrackIDs: g.TrackIDs})
	}
	return groups
}

// GroupByGenre buckets each track under the normalized genres of its artists, falling back to
// the inferred genre and then to [OtherGenre]. A track may land in several buckets.
func GroupByGenre(tracks []models.Track, artists map[string]*models.Artist, facts map[string]models.Facts, allowDuplicates bool, limit int) []models.Group {
	b := newBuckets()
	for _, t := range tracks {
		var tags []string
		for _, a := range t.Artists {
			if artist, ok := artists[a.ID]; ok {
				tags = append(tags, artist.Genres...)
			}
		}
		if len(tags) == 0 {
			if g := facts[t.ID].Genre; g != "" {
				tags = append(tags, g)
			}
		}

		buckets := genre.NormalizeAll(tags)
		if len(buckets) == 0 {
			buckets = []string{OtherGenre}
		}
		for _, name := range buckets {
			b.add(name, t.ID, allowDuplicates)
		}
	}
	return b.sorted(limit)
}

// GroupByLanguage buckets each track under its resolved language or [UnknownLanguage].
func GroupByLanguage(tracks []models.Track, facts map[string]models.Facts, allowDuplicates bool, limit int) []models.Group {
	b := newBuckets()
	for _, t := range tracks {
		lang := facts[t.ID].Language
		if lang == "" {
			lang = UnknownLanguage
		}
		b.add(lang, t.ID, allowDuplicates)
	}
	return b.sorted(limit)
}

// buckets accumulates track ids per key and remembers the order keys were first seen.
type buckets struct {
	order   []string
	members map[string][]string
	seen    map[string]map[string]bool
}

func newBuckets() *buckets {
	return &buckets{members: make(map[string][]string), seen: make(map[string]map[string]bool)}
}

func (b *buckets) add(key, trackID string, allowDuplicates bool) {
	if _, ok := b.members[key]; !ok {
		b.order = append(b.order, key)
		b.members[key] = nil
		b.seen[key] = make(map[string]bool)
	}
	if !allowDuplicates && b.seen[key][trackID] {
		return
	}
	b.seen[key][trackID] = true
	b.members[key] = append(b.members[key], trackID)
}

// sorted returns at most limit buckets by size descending, ties in first-seen order.
// A negative limit keeps all.
func (b *buckets) sorted(limit int) []models.Group {
	groups := make([]models.Group, 0, len(b.order))
	for _, key := range b.order {
		groups = append(groups, models.Group{Name: key, TrackIDs: b.members[key]})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].TrackIDs) > len(groups[j].TrackIDs)
	})
	if limit >= 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}
