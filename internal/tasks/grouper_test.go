package tasks

import (
	"reflect"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/models"
	tu "github.com/desertthunder/autoplaylist/internal/testing"
)

func artistIndex(artists ...*models.Artist) map[string]*models.Artist {
	m := make(map[string]*models.Artist, len(artists))
	for _, a := range artists {
		m[a.ID] = a
	}
	return m
}

func TestGroupByArtist(t *testing.T) {
	tracks := []models.Track{
		tu.NewTrack("t1", "a1"),
		tu.NewTrack("t2", "a2"),
		tu.NewTrack("t3", "a1", "a2"),
		tu.NewTrack("t4", "a2"),
		tu.NewTrack("t5", "a1"),
		tu.NewTrack("t6", "a3"),
		tu.NewTrack("t7", "a3"),
		tu.NewTrack("t8", "a3"),
		tu.NewTrack("t9", "a3"),
	}
	artists := artistIndex(
		&models.Artist{ID: "a1", Name: "Mitski"},
		&models.Artist{ID: "a2", Name: ""},
		&models.Artist{ID: "a3", Name: "Phoebe"},
	)

	tests := []struct {
		name  string
		min   int
		limit int
		want  []models.Group
	}{
		{
			name:  "ties keep discovery order",
			min:   3,
			limit: 5,
			want: []models.Group{
				{Name: "Phoebe", TrackIDs: []string{"t6", "t7", "t8", "t9"}},
				{Name: "Mitski", TrackIDs: []string{"t1", "t3", "t5"}},
				{Name: UnknownArtist, TrackIDs: []string{"t2", "t3", "t4"}},
			},
		},
		{
			name:  "threshold",
			min:   4,
			limit: 5,
			want:  []models.Group{{Name: "Phoebe", TrackIDs: []string{"t6", "t7", "t8", "t9"}}},
		},
		{
			name:  "cap",
			min:   3,
			limit: 2,
			want: []models.Group{
				{Name: "Phoebe", TrackIDs: []string{"t6", "t7", "t8", "t9"}},
				{Name: "Mitski", TrackIDs: []string{"t1", "t3", "t5"}},
			},
		},
		{
			name:  "zero cap",
			min:   3,
			limit: 0,
			want:  []models.Group{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroupByArtist(tracks, artists, tt.min, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GroupByArtist() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupByGenre(t *testing.T) {
	t.Run("Provider Genres Win Over Inferred", func(t *testing.T) {
		tracks := []models.Track{tu.NewTrack("t1", "a1"), tu.NewTrack("t2", "a2"), tu.NewTrack("t3", "a3")}
		artists := artistIndex(
			&models.Artist{ID: "a1", Genres: []string{"Indie Rock", "Dream Pop"}},
			&models.Artist{ID: "a2"},
			&models.Artist{ID: "a3"},
		)
		facts := map[string]models.Facts{
			"t1": {Genre: "Jazz"},
			"t2": {Genre: "Reggaeton"},
		}

		got := GroupByGenre(tracks, artists, facts, false, 10)
		want := []models.Group{
			{Name: "Rock", TrackIDs: []string{"t1"}},
			{Name: "Pop", TrackIDs: []string{"t1"}},
			{Name: "Latin", TrackIDs: []string{"t2"}},
			{Name: OtherGenre, TrackIDs: []string{"t3"}},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GroupByGenre() = %v, want %v", got, want)
		}
	})

	t.Run("Tags From Several Artists", func(t *testing.T) {
		tracks := []models.Track{tu.NewTrack("t1", "a1", "a2"), tu.NewTrack("t2", "a2")}
		artists := artistIndex(
			&models.Artist{ID: "a1", Genres: []string{"K-Pop"}},
			&models.Artist{ID: "a2", Genres: []string{"Kpop", "Korean R&B"}},
		)

		got := GroupByGenre(tracks, artists, nil, false, 10)
		want := []models.Group{{Name: "K-Pop", TrackIDs: []string{"t1", "t2"}}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GroupByGenre() = %v, want %v", got, want)
		}
	})

	t.Run("Sorted And Capped", func(t *testing.T) {
		var tracks []models.Track
		facts := make(map[string]models.Facts)
		for i, g := range []string{"Opera", "Techno", "Techno", "Salsa", "House", "Opera", "Bluegrass"} {
			id := string(rune('a' + i))
			tracks = append(tracks, tu.NewTrack(id, "x"+id))
			facts[id] = models.Facts{Genre: g}
		}

		got := GroupByGenre(tracks, artistIndex(), facts, false, 2)
		want := []models.Group{
			{Name: "Electronic", TrackIDs: []string{"b", "c", "e"}},
			{Name: "Classical", TrackIDs: []string{"a", "f"}},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GroupByGenre() = %v, want %v", got, want)
		}
	})

	t.Run("Zero Cap", func(t *testing.T) {
		got := GroupByGenre([]models.Track{tu.NewTrack("t1")}, nil, nil, false, 0)
		if len(got) != 0 {
			t.Errorf("expected no groups, got %v", got)
		}
	})
}

func TestGroupByLanguage(t *testing.T) {
	tracks := []models.Track{
		tu.NewTrack("t1"), tu.NewTrack("t2"), tu.NewTrack("t3"), tu.NewTrack("t4"), tu.NewTrack("t5"),
	}
	facts := map[string]models.Facts{
		"t1": {Language: "Hindi"},
		"t2": {Language: "English"},
		"t3": {Language: "English"},
		"t5": {Language: "Tamil", Genre: "Film"},
	}

	tests := []struct {
		name  string
		limit int
		want  []models.Group
	}{
		{
			name:  "all",
			limit: 5,
			want: []models.Group{
				{Name: "English", TrackIDs: []string{"t2", "t3"}},
				{Name: "Hindi", TrackIDs: []string{"t1"}},
				{Name: UnknownLanguage, TrackIDs: []string{"t4"}},
				{Name: "Tamil", TrackIDs: []string{"t5"}},
			},
		},
		{
			name:  "capped",
			limit: 2,
			want: []models.Group{
				{Name: "English", TrackIDs: []string{"t2", "t3"}},
				{Name: "Hindi", TrackIDs: []string{"t1"}},
			},
		},
		{
			name:  "zero cap",
			limit: 0,
			want:  []models.Group{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroupByLanguage(tracks, facts, false, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GroupByLanguage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	tracks := []models.Track{tu.NewTrack("t1", "a1"), tu.NewTrack("t2", "a1")}
	artists := artistIndex(&models.Artist{ID: "a1", Name: "Artist a1"})

	opts := models.Options{WantLanguage: true, MaxLanguages: 3}.Normalize()
	result := Group(tracks, artists, nil, opts)

	if result.GenreGroups != nil || result.ArtistGroups != nil {
		t.Errorf("unrequested dimensions should be nil, got %+v", result)
	}
	if len(result.LanguageGroups) != 1 || result.LanguageGroups[0].Name != UnknownLanguage {
		t.Errorf("unexpected language groups %v", result.LanguageGroups)
	}

	want := models.TrackDetail{Name: "Song t2", Artists: "Artist a1"}
	if result.TrackDetails["t2"] != want {
		t.Errorf("TrackDetails[t2] = %+v, want %+v", result.TrackDetails["t2"], want)
	}
	if got := result.Groups(); len(got) != 1 {
		t.Errorf("Groups() = %v", got)
	}
}

func TestBucketsDuplicates(t *testing.T) {
	b := newBuckets()
	b.add("x", "t1", false)
	b.add("x", "t1", false)
	b.add("y", "t1", true)
	b.add("y", "t1", true)

	got := b.sorted(-1)
	want := []models.Group{
		{Name: "y", TrackIDs: []string{"t1", "t1"}},
		{Name: "x", TrackIDs: []string{"t1"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sorted() = %v, want %v", got, want)
	}
}
