package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/desertthunder/autoplaylist/internal/tasks"
	th "github.com/desertthunder/autoplaylist/internal/testing"
)

func sampleResult() *tasks.Result {
	return &tasks.Result{
		GenreGroups: []models.Group{
			{Name: "Rock", TrackIDs: []string{"t2", "t1"}},
			{Name: "Electronic", TrackIDs: []string{"t3"}},
		},
		LanguageGroups: []models.Group{{Name: "English", TrackIDs: []string{"t1", "t2", "t3"}}},
		TrackDetails: map[string]models.TrackDetail{
			"t1": {Name: "Seven Nation Army", Artists: "The White Stripes"},
			"t2": {Name: "Heroes", Artists: "David Bowie, Brian Eno"},
			"t3": {Name: "Windowlicker", Artists: "Aphex Twin"},
		},
	}
}

func TestExporters(t *testing.T) {
	result := sampleResult()

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(result)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		output := string(data)
		if strings.Index(output, `"Rock"`) > strings.Index(output, `"Electronic"`) {
			t.Errorf("groups should keep their order, got: %s", output)
		}
		if !strings.Contains(output, `"artist": {}`) {
			t.Errorf("empty dimension should be an empty object, got: %s", output)
		}

		var decoded struct {
			Status  string `json:"status"`
			Results struct {
				Genre map[string][]string `json:"genre"`
			} `json:"results"`
			TrackDetails map[string]models.TrackDetail `json:"track_details"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Status != "ok" || len(decoded.Results.Genre["Rock"]) != 2 {
			t.Errorf("unexpected payload %+v", decoded)
		}
		if decoded.TrackDetails["t2"].Artists != "David Bowie, Brian Eno" {
			t.Errorf("missing track details, got %+v", decoded.TrackDetails)
		}
	})

	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(result)
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Dimension,Group,Position,Track ID,Name,Artists") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `genre,Rock,1,t2,Heroes,"David Bowie, Brian Eno"`) {
			t.Errorf("CSV missing quoted artists, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 7 {
			t.Errorf("expected 7 lines, got %d", lines)
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		data, err := ToMarkdown(result)
		if err != nil {
			t.Fatalf("ToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# AutoPlaylist",
			"**Tracks**: 3",
			"## Genre",
			"### Rock (2)",
			"1. David Bowie, Brian Eno - Heroes",
			"## Language",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
		if strings.Contains(output, "## Artist") {
			t.Errorf("empty dimensions should be omitted, got: %s", output)
		}
	})

	t.Run("ToText", func(t *testing.T) {
		data, err := ToText(result)
		if err != nil {
			t.Fatalf("ToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Tracks: 3") || !strings.Contains(output, "  Electronic (1)") {
			t.Errorf("Text missing summary, got: %s", output)
		}
		if !strings.Contains(output, "    - Aphex Twin - Windowlicker") {
			t.Errorf("Text missing track line, got: %s", output)
		}
	})

	t.Run("Unknown Track Falls Back To ID", func(t *testing.T) {
		r := &tasks.Result{GenreGroups: []models.Group{{Name: "Other", TrackIDs: []string{"ghost"}}}}
		data, _ := ToText(r)
		if !strings.Contains(string(data), "- ghost") {
			t.Errorf("expected the id, got: %s", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "Markdown", want: FormatMarkdown},
		{in: "csv", want: FormatCSV},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()
	result := sampleResult()

	t.Run("Writes File", func(t *testing.T) {
		path := filepath.Join(dir, "groups.md")
		if err := WriteExport(result, FormatMarkdown, path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "# AutoPlaylist") {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("Unknown Format", func(t *testing.T) {
		err := WriteExport(result, Format("xml"), filepath.Join(dir, "groups.xml"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing Directory", func(t *testing.T) {
		if err := WriteExport(result, FormatText, filepath.Join(dir, "nope", "groups.txt")); err == nil {
			t.Error("expected an error for a missing directory")
		}
	})
}

func TestToPublishedText(t *testing.T) {
	out := string(ToPublishedText([]tasks.Published{{Name: "Rock", PlaylistID: "pl1", TrackCount: 12}}))
	if out != "AP: Rock (12 tracks) pl1\n" {
		t.Errorf("unexpected output %q", out)
	}
}
