// package formatter renders cached playlist snapshots as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts a format name, case-insensitively. "markdown" and "text" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "", "txt", "text":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// ExportToCSV converts a cached playlist to CSV with columns: Position, URI, Name, Artists, Added At
func ExportToCSV(p *models.CachedPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "URI", "Name", "Artists", "Added At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range p.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.URI,
			track.Name,
			strings.Join(track.Artists, "; "),
			track.AddedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a cached playlist to a Markdown document
func ExportToMarkdown(p *models.CachedPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title(p))
	if p.OwnerName != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", p.OwnerName)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(p.Tracks))
	if !p.UpdatedAt.IsZero() {
		fmt.Fprintf(&buf, "**Cached**: %s\n", p.UpdatedAt.UTC().Format(time.RFC3339))
	}

	buf.WriteString("\n## Tracks\n\n")
	for i, track := range p.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(track))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a cached playlist to plain text
func ExportToText(p *models.CachedPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", title(p))
	if p.OwnerName != "" {
		fmt.Fprintf(&buf, "Owner: %s\n", p.OwnerName)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(p.Tracks))

	for i, track := range p.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(track))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a cached playlist to indented JSON
func ExportToJSON(p *models.CachedPlaylist) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode playlist: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders p in the given format.
func Export(p *models.CachedPlaylist, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(p)
	case Markdown:
		return ExportToMarkdown(p)
	case JSON:
		return ExportToJSON(p)
	case Text:
		return ExportToText(p)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// Render writes p to w in the given format.
func Render(w io.Writer, p *models.CachedPlaylist, format Format) error {
	data, err := Export(p, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport writes p to path in the given format.
//
// Defaults to {serviceID}_tracks.{format} in the working directory.
func WriteExport(p *models.CachedPlaylist, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.%s", p.ServiceID, format)
	}

	data, err := Export(p, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// RenderSummaries writes an aligned table of cached playlists to w.
func RenderSummaries(w io.Writer, summaries []repositories.PlaylistSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tOWNER\tTRACKS\tUPDATED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ServiceID, s.Name, s.OwnerName, s.TrackCount, s.UpdatedAt.UTC().Format(time.DateTime))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func title(p *models.CachedPlaylist) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ServiceID
}

func trackLine(t models.CachedTrack) string {
	name := t.Name
	if name == "" {
		name = t.URI
	}
	if len(t.Artists) == 0 {
		return name
	}
	return strings.Join(t.Artists, ", ") + " - " + name
}
