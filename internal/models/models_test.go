package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/shared"
)

func TestOptionsNormalize(t *testing.T) {
	tc := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "threshold below floor",
			in:   Options{ArtistMinAppearances: 1, MaxGenres: 2, MaxArtists: 1, MaxLanguages: 0},
			want: Options{ArtistMinAppearances: 3, MaxGenres: 2, MaxArtists: 1, MaxLanguages: 0},
		},
		{
			name: "threshold above floor kept",
			in:   Options{ArtistMinAppearances: 8},
			want: Options{ArtistMinAppearances: 8},
		},
		{
			name: "zero caps kept",
			in:   Options{WantGenre: true, ArtistMinAppearances: 3},
			want: Options{WantGenre: true, ArtistMinAppearances: 3},
		},
		{
			name: "negative caps",
			in:   Options{ArtistMinAppearances: 5, MaxGenres: -1, MaxArtists: -2, MaxLanguages: -3},
			want: Options{ArtistMinAppearances: 5, MaxGenres: 10, MaxArtists: 5, MaxLanguages: 3},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("default options should be valid: %v", err)
	}

	err := Options{}.Validate()
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	if err := (Options{WantLanguage: true}).Validate(); err != nil {
		t.Errorf("single dimension should be valid: %v", err)
	}
}

func TestFacts(t *testing.T) {
	if !(Facts{}).IsEmpty() {
		t.Error("zero facts should be empty")
	}
	if (Facts{Genre: "Pop"}).IsEmpty() {
		t.Error("facts with genre should not be empty")
	}

	merged := Facts{Language: "English", Genre: "Rock"}.Merge(Facts{Genre: "Pop"})
	if merged.Language != "English" || merged.Genre != "Pop" {
		t.Errorf("Merge() = %+v", merged)
	}
}

func TestTrackDetail(t *testing.T) {
	tr := Track{ID: "t1", Name: "Song", Artists: []ArtistRef{{ID: "a1", Name: "A"}, {ID: "a2", Name: "B"}}}
	d := tr.Detail()
	if d.Name != "Song" || d.Artists != "A, B" {
		t.Errorf("Detail() = %+v", d)
	}
}

func TestLikedCollection(t *testing.T) {
	c := LikedCollection(12)
	if c.ID != "liked" || c.Name != "Liked Songs" || c.Kind != KindLiked || c.TrackCount != 12 {
		t.Errorf("LikedCollection() = %+v", c)
	}
}

func TestGroupsMarshalJSON(t *testing.T) {
	tc := []struct {
		name   string
		groups Groups
		want   string
	}{
		{name: "empty", groups: nil, want: `{}`},
		{
			name:   "keeps order",
			groups: Groups{{Name: "Rock", TrackIDs: []string{"b", "a"}}, {Name: "Electronic", TrackIDs: []string{"c"}}},
			want:   `{"Rock":["b","a"],"Electronic":["c"]}`,
		},
		{
			name:   "first name wins",
			groups: Groups{{Name: "Aya", TrackIDs: []string{"a"}}, {Name: "Aya", TrackIDs: []string{"b"}}, {Name: "R&B / Soul"}},
			want:   `{"Aya":["a"],"R\u0026B / Soul":[]}`,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.groups)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}
