// package tasks implements the enrichment-and-grouping pipeline.
//
// The core abstraction is Engine, which fetches tracks from a provider, resolves their facts through
// provider genres, the cache and batched inference, then groups them.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/autoplaylist/internal/genre"
	"github.com/desertthunder/autoplaylist/internal/inference"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the batches in flight when [EngineOpts.Concurrency] is unset.
const DefaultConcurrency = 4

// FactStore persists inferred facts across runs.
//
// Implemented by [repositories.SongCache].
type FactStore interface {
	GetMany(ctx context.Context, ids []string) (map[string]models.Facts, error)
	PutMany(ctx context.Context, entries map[string]models.Facts) (int, error)
}

// Inferrer resolves facts for one batch of at most [inference.MaxBatchSize] tracks.
//
// Implemented by [inference.Batcher].
type Inferrer interface {
	Infer(ctx context.Context, tracks []models.Track, genreHints []string, needLanguage, needGenre bool) inference.Outcome
}

// Result holds the groups of one run. Every group references only tracks present in TrackDetails.
type Result struct {
	GenreGroups    []models.Group
	ArtistGroups   []models.Group
	LanguageGroups []models.Group
	TrackDetails   map[string]models.TrackDetail
}

// Groups returns every group of the result: genres, then languages, then artists.
func (r *Result) Groups() []models.Group {
	all := make([]models.Group, 0, len(r.GenreGroups)+len(r.LanguageGroups)+len(r.ArtistGroups))
	all = append(all, r.GenreGroups...)
	all = append(all, r.LanguageGroups...)
	all = append(all, r.ArtistGroups...)
	return all
}

// EngineOpts configures an [Engine]. Zero values select the defaults.
type EngineOpts struct {
	Concurrency int
	Logger      *log.Logger
}

// Engine runs the pipeline against one provider session.
// Contains dependencies on the provider, the fact cache and the inference batcher.
type Engine struct {
	provider    services.Provider
	cache       FactStore
	inferrer    Inferrer
	concurrency int
	logger      *log.Logger
}

// NewEngine creates an Engine. The engine holds no per-run state and may serve overlapping runs.
func NewEngine(provider services.Provider, cache FactStore, inferrer Inferrer, opts EngineOpts) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Engine{
		provider:    provider,
		cache:       cache,
		inferrer:    inferrer,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// run holds the state of one invocation. Maps are keyed by track id or artist id.
type run struct {
	tracks      []models.Track
	artists     map[string]*models.Artist
	artistOrder []string
	facts       map[string]models.Facts
}

// Enrich fetches the tracks of every collection, resolves their facts and groups them per opts.
//
// Only failures to fetch tracks ([shared.ErrUpstreamUnavailable]) or to use the cache
// ([shared.ErrCacheUnavailable]) are returned. Artist and inference batches that fail leave their
// tracks without data.
func (e *Engine) Enrich(ctx context.Context, collectionIDs []string, opts models.Options, progress chan<- ProgressUpdate) (*Result, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: provider not initialized", shared.ErrServiceUnavailable)
	}

	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := shared.WithLogger(e.logger, "run", shared.GenerateID()[:8])
	start := time.Now()

	r, err := e.fetchTracks(ctx, collectionIDs, progress)
	if err != nil {
		return nil, err
	}
	logger.Info("fetched tracks", "collections", len(collectionIDs), "unique", len(r.tracks))

	e.resolveArtists(ctx, r, logger, progress)

	if err := e.resolveFacts(ctx, r, opts, logger, progress); err != nil {
		return nil, err
	}

	result := Group(r.tracks, r.artists, r.facts, opts)
	e.sendProgress(progress, groupTracksUpdate(result))

	logger.Info("run complete",
		"genres", len(result.GenreGroups),
		"artists", len(result.ArtistGroups),
		"languages", len(result.LanguageGroups),
		"elapsed", time.Since(start))
	return result, nil
}

// fetchTracks loads every collection and keeps the first occurrence of each track id.
func (e *Engine) fetchTracks(ctx context.Context, collectionIDs []string, progress chan<- ProgressUpdate) (*run, error) {
	r := &run{artists: make(map[string]*models.Artist), facts: make(map[string]models.Facts)}
	seen := make(map[string]bool)
	fetched := 0

	for i, id := range collectionIDs {
		e.sendProgress(progress, fetchTracksUpdate(i+1, len(collectionIDs), id))

		tracks, err := e.provider.ListTracks(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to fetch collection %s: %w", shared.ErrUpstreamUnavailable, id, err)
		}
		fetched += len(tracks)

		for _, t := range tracks {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			r.tracks = append(r.tracks, t)

			for _, a := range t.Artists {
				if _, ok := r.artists[a.ID]; ok {
					continue
				}
				r.artists[a.ID] = &models.Artist{ID: a.ID, Name: a.Name}
				r.artistOrder = append(r.artistOrder, a.ID)
			}
		}
	}

	e.sendProgress(progress, dedupedTracksUpdate(fetched, len(r.tracks)))
	return r, nil
}

// artistBatch is the outcome of one artist lookup. A failed batch leaves its artists without genres.
type artistBatch struct {
	genres map[string][]string
	err    error
}

// resolveArtists looks up provider genres in batches of [services.MaxArtistsPerRequest].
func (e *Engine) resolveArtists(ctx context.Context, r *run, logger *log.Logger, progress chan<- ProgressUpdate) {
	batches := chunk(r.artistOrder, services.MaxArtistsPerRequest)
	results := make([]artistBatch, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ids := range batches {
		g.Go(func() error {
			genres, err := e.provider.ArtistGenres(gctx, ids)
			results[i] = artistBatch{genres: genres, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, b := range results {
		e.sendProgress(progress, artistBatchUpdate(i+1, len(results), b.err))
		if b.err != nil {
			logger.Warn("artist genre batch failed", "batch", i+1, "size", len(batches[i]), "error", b.err)
			continue
		}
		for id, tags := range b.genres {
			a, ok := r.artists[id]
			if !ok {
				continue
			}
			a.Genres = make([]string, 0, len(tags))
			for _, tag := range tags {
				a.Genres = append(a.Genres, genre.Title(tag))
			}
		}
	}
}

// genreHints returns the distinct provider genres of the run in discovery order.
func (r *run) genreHints() []string {
	seen := make(map[string]bool)
	var hints []string
	for _, id := range r.artistOrder {
		for _, g := range r.artists[id].Genres {
			if !seen[g] {
				seen[g] = true
				hints = append(hints, g)
			}
		}
	}
	return hints
}

func (r *run) hasProviderGenre(t models.Track) bool {
	for _, a := range t.Artists {
		if artist, ok := r.artists[a.ID]; ok && len(artist.Genres) > 0 {
			return true
		}
	}
	return false
}

// need records which fields a track still requires.
type need struct {
	language bool
	genre    bool
}

// resolveFacts reads cached facts, infers what is missing and writes fresh results back.
func (e *Engine) resolveFacts(ctx context.Context, r *run, opts models.Options, logger *log.Logger, progress chan<- ProgressUpdate) error {
	needs := make(map[string]need)
	var ids []string
	for _, t := range r.tracks {
		n := need{
			language: opts.WantLanguage,
			genre:    opts.WantGenre && !r.hasProviderGenre(t),
		}
		if n.language || n.genre {
			needs[t.ID] = n
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if e.cache == nil {
		return fmt.Errorf("%w: cache not initialized", shared.ErrCacheUnavailable)
	}
	cached, err := e.cache.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
	}
	e.sendProgress(progress, cacheLookupUpdate(len(cached), len(ids)))

	var pending []models.Track
	for _, t := range r.tracks {
		n, ok := needs[t.ID]
		if !ok {
			continue
		}
		c := cached[t.ID]
		if (n.language && c.Language == "") || (n.genre && c.Genre == "") {
			pending = append(pending, t)
		}
	}
	logger.Debug("cache lookup", "needed", len(ids), "hits", len(cached), "pending", len(pending))

	fresh := e.infer(ctx, pending, needs, r.genreHints(), logger, progress)

	if len(fresh) > 0 {
		stored, err := e.cache.PutMany(ctx, fresh)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrCacheUnavailable, err)
		}
		e.sendProgress(progress, storeFactsUpdate(stored))
		logger.Debug("stored facts", "count", stored)
	}

	for _, id := range ids {
		n := needs[id]
		f := cached[id].Merge(fresh[id])
		if !n.language {
			f.Language = ""
		}
		if !n.genre {
			f.Genre = ""
		}
		if !f.IsEmpty() {
			r.facts[id] = f
		}
	}
	return nil
}

// infer dispatches pending tracks in batches of [inference.MaxBatchSize]. A batch asks for a field
// when any of its members needs it.
func (e *Engine) infer(ctx context.Context, pending []models.Track, needs map[string]need, hints []string, logger *log.Logger, progress chan<- ProgressUpdate) map[string]models.Facts {
	fresh := make(map[string]models.Facts)
	if len(pending) == 0 {
		return fresh
	}
	if e.inferrer == nil {
		logger.Warn("inference unavailable", "pending", len(pending))
		return fresh
	}

	batches := chunk(pending, inference.MaxBatchSize)
	outcomes := make([]inference.Outcome, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			var lang, gen bool
			for _, t := range batch {
				lang = lang || needs[t.ID].language
				gen = gen || needs[t.ID].genre
			}
			outcomes[i] = e.inferrer.Infer(gctx, batch, hints, lang, gen)
			return nil
		})
	}
	_ = g.Wait()

	for i, out := range outcomes {
		e.sendProgress(progress, inferenceBatchUpdate(i+1, len(outcomes), out))
		switch out.Status {
		case inference.StatusFailed:
			logger.Warn("inference batch failed", "batch", i+1, "size", len(batches[i]), "error", out.Err)
			continue
		case inference.StatusPartial:
			logger.Warn("inference batch partial", "batch", i+1, "size", len(batches[i]), "resolved", len(out.Facts))
		}
		for id, f := range out.Facts {
			if !f.IsEmpty() {
				fresh[id] = f
			}
		}
	}
	return fresh
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
