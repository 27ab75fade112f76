// package formatter renders generated groups to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/desertthunder/autoplaylist/internal/tasks"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON, FormatCSV}

// ParseFormat validates a format name. An empty name selects [FormatText].
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Results holds the three group collections keyed by dimension.
type Results struct {
	Genre    models.Groups `json:"genre"`
	Language models.Groups `json:"language"`
	Artist   models.Groups `json:"artist"`
}

// Payload is the JSON document describing a run: groups as ordered objects of track ids plus
// the preview details of every track.
type Payload struct {
	Status       string                        `json:"status"`
	Results      Results                       `json:"results"`
	TrackDetails map[string]models.TrackDetail `json:"track_details"`
}

// NewPayload converts a run result to its JSON document.
func NewPayload(result *tasks.Result) Payload {
	details := result.TrackDetails
	if details == nil {
		details = map[string]models.TrackDetail{}
	}
	return Payload{
		Status: "ok",
		Results: Results{
			Genre:    models.Groups(result.GenreGroups),
			Language: models.Groups(result.LanguageGroups),
			Artist:   models.Groups(result.ArtistGroups),
		},
		TrackDetails: details,
	}
}

// section is one titled dimension of a result.
type section struct {
	title  string
	groups []models.Group
}

func sections(result *tasks.Result) []section {
	return []section{
		{title: "Genre", groups: result.GenreGroups},
		{title: "Language", groups: result.LanguageGroups},
		{title: "Artist", groups: result.ArtistGroups},
	}
}

// ToJSON renders result as an indented [Payload].
func ToJSON(result *tasks.Result) ([]byte, error) {
	return shared.MarshalJSON(NewPayload(result), true)
}

// ToCSV renders one row per group member with columns: Dimension, Group, Position, Track ID, Name, Artists
func ToCSV(result *tasks.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Dimension", "Group", "Position", "Track ID", "Name", "Artists"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range sections(result) {
		for _, g := range s.groups {
			for i, id := range g.TrackIDs {
				d := result.TrackDetails[id]
				record := []string{strings.ToLower(s.title), g.Name, fmt.Sprint(i + 1), id, d.Name, d.Artists}
				if err := writer.Write(record); err != nil {
					return nil, fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders result with one heading per dimension and one list per group.
func ToMarkdown(result *tasks.Result) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# AutoPlaylist\n\n")
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(result.TrackDetails))

	for _, s := range sections(result) {
		if len(s.groups) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n## %s\n", s.title)
		for _, g := range s.groups {
			fmt.Fprintf(&buf, "\n### %s (%d)\n\n", g.Name, len(g.TrackIDs))
			for i, id := range g.TrackIDs {
				fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(result, id))
			}
		}
	}

	return buf.Bytes(), nil
}

// ToText renders result as an indented plain text summary.
func ToText(result *tasks.Result) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d\n", len(result.TrackDetails))

	for _, s := range sections(result) {
		if len(s.groups) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n%s:\n", s.title)
		for _, g := range s.groups {
			fmt.Fprintf(&buf, "  %s (%d)\n", g.Name, len(g.TrackIDs))
			for _, id := range g.TrackIDs {
				fmt.Fprintf(&buf, "    - %s\n", trackLine(result, id))
			}
		}
	}

	return buf.Bytes(), nil
}

// Render renders result in the given format.
func Render(result *tasks.Result, format Format) ([]byte, error) {
	switch format {
	case FormatText, "":
		return ToText(result)
	case FormatMarkdown:
		return ToMarkdown(result)
	case FormatJSON:
		return ToJSON(result)
	case FormatCSV:
		return ToCSV(result)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders result and writes it to path.
func WriteExport(result *tasks.Result, format Format, path string) error {
	data, err := Render(result, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return nil
}

// ToPublishedText lists created playlists, one per line.
func ToPublishedText(created []tasks.Published) []byte {
	var buf bytes.Buffer
	for _, p := range created {
		fmt.Fprintf(&buf, "%s%s (%d tracks) %s\n", tasks.PlaylistPrefix, p.Name, p.TrackCount, p.PlaylistID)
	}
	return buf.Bytes()
}

func trackLine(result *tasks.Result, id string) string {
	d, ok := result.TrackDetails[id]
	if !ok {
		return id
	}
	if d.Artists == "" {
		return d.Name
	}
	return fmt.Sprintf("%s - %s", d.Artists, d.Name)
}
