// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/services"
)

// MockProvider is an in-memory [services.Provider]. Safe for concurrent use.
type MockProvider struct {
	Collections  []models.Collection
	Tracks       map[string][]models.Track // collection id -> tracks
	Genres       map[string][]string       // artist id -> provider tags
	ListErr      error                     // returned by ListTracks
	GenreErr     map[string]error          // artist id -> error for any batch containing it
	PublishErr   error                     // returned by CreatePlaylist and AddTracks
	nextPlaylist int

	mu           sync.Mutex
	GenreCalls   [][]string
	Created      []CreatedPlaylist
	AddedTracks  map[string][]string // playlist id -> uris in add order
	AddCallSizes []int
}

// CreatedPlaylist records a CreatePlaylist call.
type CreatedPlaylist struct {
	ID          string
	Name        string
	Description string
}

func (m *MockProvider) ListCollections(ctx context.Context) ([]models.Collection, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Collections, nil
}

func (m *MockProvider) ListTracks(ctx context.Context, collectionID string) ([]models.Track, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	tracks, ok := m.Tracks[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", collectionID)
	}
	return tracks, nil
}

func (m *MockProvider) ArtistGenres(ctx context.Context, artistIDs []string) (map[string][]string, error) {
	m.mu.Lock()
	m.GenreCalls = append(m.GenreCalls, append([]string(nil), artistIDs...))
	m.mu.Unlock()

	if len(artistIDs) > services.MaxArtistsPerRequest {
		return nil, fmt.Errorf("batch of %d artists exceeds limit", len(artistIDs))
	}

	result := make(map[string][]string, len(artistIDs))
	for _, id := range artistIDs {
		if err := m.GenreErr[id]; err != nil {
			return nil, err
		}
		if g, ok := m.Genres[id]; ok {
			result[id] = g
		}
	}
	return result, nil
}

func (m *MockProvider) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	if m.PublishErr != nil {
		return "", m.PublishErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPlaylist++
	id := fmt.Sprintf("created-%d", m.nextPlaylist)
	m.Created = append(m.Created, CreatedPlaylist{ID: id, Name: name, Description: description})
	return id, nil
}

func (m *MockProvider) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	if len(uris) > services.MaxTracksPerAdd {
		return fmt.Errorf("add of %d tracks exceeds limit", len(uris))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddedTracks == nil {
		m.AddedTracks = make(map[string][]string)
	}
	m.AddedTracks[playlistID] = append(m.AddedTracks[playlistID], uris...)
	m.AddCallSizes = append(m.AddCallSizes, len(uris))
	return nil
}

// MockInference is a scripted [services.InferenceClient]. Safe for concurrent use.
//
// Reply computes the raw reply for a prompt. When nil, every song in the prompt gets
// Language and Genre.
type MockInference struct {
	Reply    func(prompt string) (string, error)
	Language string
	Genre    string

	mu      sync.Mutex
	Prompts []string
}

var songLine = regexp.MustCompile(`(?m)^\d+\. `)

func (m *MockInference) Complete(ctx context.Context, prompt string, params services.CompletionParams) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Reply != nil {
		return m.Reply(prompt)
	}

	n := len(songLine.FindAllString(prompt, -1))
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"language": %q, "genre": %q}`, m.Language, m.Genre)
	}
	return "[" + strings.Join(rows, ",") + "]", nil
}

// Calls returns the number of completion requests received.
func (m *MockInference) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// SongCount returns how many numbered song lines a prompt carries.
func SongCount(prompt string) int {
	return len(songLine.FindAllString(prompt, -1))
}

// NewTrack builds a track whose artists are named after their ids.
func NewTrack(id string, artistIDs ...string) models.Track {
	t := models.Track{ID: id, Name: "Song " + id}
	for _, a := range artistIDs {
		t.Artists = append(t.Artists, models.ArtistRef{ID: a, Name: "Artist " + a})
	}
	return t
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s to exist: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
