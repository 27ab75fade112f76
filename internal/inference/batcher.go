// Package inference asks a language model for the language and genre of tracks, one batch per request.
//
// A batch is rendered as a numbered list and the model is asked for a JSON array with one
// object per song in the same order. Rows are mapped back to tracks by position, so a short
// reply resolves a prefix of the batch. Every failure (transport error, timeout, malformed
// reply) is absorbed into an [Outcome] with [StatusFailed]; callers never receive an error
// from [Batcher.Infer].
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
)

const (
	// MaxBatchSize is the most tracks one request may carry. Larger replies get truncated by the model.
	MaxBatchSize = 25

	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 45 * time.Second
	DefaultMaxHints    = 20
)

// Status tags how much of a batch was resolved.
type Status int

const (
	StatusResolved Status = iota // one row per track
	StatusPartial                // fewer rows than tracks
	StatusEmpty                  // nothing requested or an empty array
	StatusFailed                 // request or parse failure
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusPartial:
		return "partial"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return ""
	}
}

// Outcome is the result of one batch. Facts holds an entry for each track that received a row,
// restricted to the requested fields. Err is set only when Status is [StatusFailed].
type Outcome struct {
	Status Status
	Facts  map[string]models.Facts
	Err    error
}

// BatcherOpts configures a [Batcher]. Zero values select the defaults.
type BatcherOpts struct {
	Params   services.CompletionParams
	Timeout  time.Duration
	MaxHints int
	Logger   *log.Logger
}

// Batcher turns batches of tracks into inference requests.
type Batcher struct {
	client   services.InferenceClient
	params   services.CompletionParams
	timeout  time.Duration
	maxHints int
	logger   *log.Logger
}

// NewBatcher creates a Batcher that sends requests through client.
func NewBatcher(client services.InferenceClient, opts BatcherOpts) *Batcher {
	if opts.Params.Model == "" {
		opts.Params.Model = DefaultModel
	}
	if opts.Params.MaxTokens <= 0 {
		opts.Params.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxHints <= 0 {
		opts.MaxHints = DefaultMaxHints
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Batcher{
		client:   client,
		params:   opts.Params,
		timeout:  opts.Timeout,
		maxHints: opts.MaxHints,
		logger:   opts.Logger,
	}
}

// Infer requests the selected fields for tracks. genreHints biases the model toward
// existing genre names and is only read.
func (b *Batcher) Infer(ctx context.Context, tracks []models.Track, genreHints []string, needLanguage, needGenre bool) Outcome {
	if len(tracks) == 0 || (!needLanguage && !needGenre) {
		return Outcome{Status: StatusEmpty, Facts: map[string]models.Facts{}}
	}
	if len(tracks) > MaxBatchSize {
		err := fmt.Errorf("batch of %d tracks exceeds limit of %d", len(tracks), MaxBatchSize)
		b.logger.Warn("inference batch rejected", "size", len(tracks), "error", err)
		return failed(err)
	}

	prompt := BuildPrompt(tracks, b.hintSample(genreHints), needLanguage, needGenre)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	raw, err := b.client.Complete(ctx, prompt, b.params)
	if err != nil {
		b.logger.Warn("inference request failed", "size", len(tracks), "elapsed", time.Since(start), "error", err)
		return failed(err)
	}

	rows, err := ParseResponse(raw)
	if err != nil {
		b.logger.Warn("inference reply malformed", "size", len(tracks), "error", err)
		return failed(err)
	}

	facts := make(map[string]models.Facts, min(len(rows), len(tracks)))
	for i, t := range tracks {
		if i >= len(rows) {
			break
		}
		var f models.Facts
		if needLanguage {
			f.Language = rows[i].Language
		}
		if needGenre {
			f.Genre = rows[i].Genre
		}
		facts[t.ID] = f
	}

	status := StatusResolved
	switch {
	case len(rows) == 0:
		status = StatusEmpty
	case len(rows) < len(tracks):
		status = StatusPartial
		b.logger.Warn("inference reply short", "want", len(tracks), "got", len(rows))
	}

	b.logger.Debug("inference batch done", "size", len(tracks), "rows", len(rows), "status", status, "elapsed", time.Since(start))
	return Outcome{Status: status, Facts: facts}
}

// hintSample returns the first hints in sorted order.
func (b *Batcher) hintSample(hints []string) []string {
	if len(hints) == 0 {
		return nil
	}
	sorted := make([]string, len(hints))
	copy(sorted, hints)
	sort.Strings(sorted)
	if len(sorted) > b.maxHints {
		sorted = sorted[:b.maxHints]
	}
	return sorted
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Facts: map[string]models.Facts{}, Err: err}
}

// BuildPrompt renders the request for one batch.
func BuildPrompt(tracks []models.Track, hints []string, needLanguage, needGenre bool) string {
	var fields []string
	if needLanguage {
		fields = append(fields, `"language": "<language name in English, e.g. English, Japanese, Hindi, Korean>"`)
	}
	if needGenre {
		hint := ""
		if len(hints) > 0 {
			sample, _ := json.Marshal(hints)
			hint = fmt.Sprintf(" Prefer matching from this existing list if accurate: %s. If none fit well, suggest a concise new genre name.", sample)
		}
		fields = append(fields, `"genre": "<single most fitting music genre>"`+hint)
	}

	var sb strings.Builder
	sb.WriteString("You are a music analyst. For each song below, return ONLY a JSON array.\n")
	sb.WriteString("Each element must be an object with exactly these fields: ")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString("\nOne object per song, in the same order. No explanation, no markdown, just the raw JSON array.\n\nSongs:\n")

	for i, t := range tracks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s — %s", i+1, t.Name, strings.Join(t.ArtistNames(), ", "))
	}

	return sb.String()
}

// Row is one element of a reply. Fields the model left out or returned as non-strings are empty.
type Row struct {
	Language string
	Genre    string
}

// ParseResponse strips an optional code fence from raw and decodes the JSON array inside.
//
// Elements that are not objects yield empty rows so later rows keep their position.
func ParseResponse(raw string) ([]Row, error) {
	body := stripFence(raw)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return nil, fmt.Errorf("reply is not a JSON array: %w", err)
	}

	rows := make([]Row, len(elems))
	for i, e := range elems {
		var obj map[string]any
		if err := json.Unmarshal(e, &obj); err != nil {
			continue
		}
		rows[i] = Row{Language: stringField(obj, "language"), Genre: stringField(obj, "genre")}
	}

	return rows, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// stripFence removes a leading ``` or ```json and a trailing ```.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s[3:], "json")
		s = strings.TrimSpace(s)
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
