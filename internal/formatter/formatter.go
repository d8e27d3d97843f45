// package formatter renders playlist results for the terminal and exports them to files (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// NoTracks is shown in place of the track list when a request matched nothing.
const NoTracks = "No tracks matched this request."

// Formats lists every supported output format.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// Render converts a result to the named format. An empty name means text.
func Render(result *models.PlaylistResult, format string, pretty bool) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText, "txt":
		return ExportToText(result)
	case FormatMarkdown, "md":
		return ExportToMarkdown(result, "")
	case FormatCSV:
		return ExportToCSV(result)
	case FormatJSON:
		return shared.MarshalJSON(result, pretty)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidInput, format, strings.Join(Formats, ", "))
	}
}

// ExportToCSV converts a result's tracks to CSV with columns: Position, ID, Name, Artist, Album, Duration, Popularity, URL
func ExportToCSV(result *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Name", "Artist", "Album", "Duration", "Popularity", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range result.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Name,
			track.Artist,
			track.Album,
			track.Duration(),
			strconv.Itoa(track.Popularity),
			track.ExternalURL,
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

// ExportToMarkdown converts a result to Markdown with an optional cover image and a track table
func ExportToMarkdown(result *models.PlaylistResult, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title(result))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "> %s\n\n", result.Transcript)

	if result.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", result.Description)
	}
	if facets := describeIntent(result.Intent); facets != "" {
		fmt.Fprintf(&buf, "**Intent**: %s\n\n", facets)
	}
	if result.PlaylistURL != "" {
		fmt.Fprintf(&buf, "**Spotify**: [%s](%s)\n\n", result.PlaylistID, result.PlaylistURL)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", result.TotalTracks)

	buf.WriteString("## Tracks\n\n")
	if len(result.Tracks) == 0 {
		buf.WriteString(NoTracks + "\n")
		return buf.Bytes(), nil
	}
	buf.WriteString("| # | Track | Artist | Album | Length |\n")
	buf.WriteString("|---|-------|--------|-------|--------|\n")
	for i, track := range result.Tracks {
		name := escapeCell(track.Name)
		if track.ExternalURL != "" {
			name = fmt.Sprintf("[%s](%s)", name, track.ExternalURL)
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			i+1, name, escapeCell(track.Artist), escapeCell(track.Album), track.Duration())
	}

	return buf.Bytes(), nil
}

// ExportToText converts a result to plain text
func ExportToText(result *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", title(result))
	fmt.Fprintf(&buf, "Request: %s\n", result.Transcript)
	if facets := describeIntent(result.Intent); facets != "" {
		fmt.Fprintf(&buf, "Intent: %s\n", facets)
	}
	if len(result.Queries) > 0 {
		texts := make([]string, len(result.Queries))
		for i, q := range result.Queries {
			texts[i] = q.Text
		}
		fmt.Fprintf(&buf, "Queries: %s\n", strings.Join(texts, " | "))
	}
	if result.PlaylistURL != "" {
		fmt.Fprintf(&buf, "URL: %s\n", result.PlaylistURL)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", result.TotalTracks)

	if len(result.Tracks) == 0 {
		buf.WriteString(NoTracks + "\n")
	}
	for i, track := range result.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.Artist, track.Name, track.Duration())
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of the result without its tracks
func ToMetadataJSON(result *models.PlaylistResult) ([]byte, error) {
	meta := *result
	meta.Tracks = nil
	return shared.MarshalJSON(meta, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_tracks.csv and {base}_metadata.json.
//
// The base defaults to the playlist id, or "djx" for results that were not saved.
func WriteCSVExport(result *models.PlaylistResult, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = baseName(result)
	}

	csvData, err := ExportToCSV(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{TracksFile: tracksFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes {dir}/README.md and, when the first track has artwork, {dir}/cover.jpg.
//
// A failed cover download is reported to stderr and does not fail the export.
func WriteMarkdownExport(result *models.PlaylistResult, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = baseName(result)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	export := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var coverImageFilename string
	if len(result.Tracks) > 0 && result.Tracks[0].ArtworkURL != "" {
		imageData, err := DownloadImage(result.Tracks[0].ArtworkURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				export.CoverImage = coverImagePath
				export.Files = append(export.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(result, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	export.Files = append(export.Files, mdFile)

	return export, nil
}

// WriteTextExport writes the plain text rendering, defaulting to {base}_tracks.txt.
func WriteTextExport(result *models.PlaylistResult, path string) (string, error) {
	if path == "" {
		path = baseName(result) + "_tracks.txt"
	}

	textData, err := ExportToText(result)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

func title(result *models.PlaylistResult) string {
	if result.PlaylistName != "" {
		return result.PlaylistName
	}
	return "Untitled"
}

func baseName(result *models.PlaylistResult) string {
	if result.PlaylistID != "" {
		return result.PlaylistID
	}
	return "djx"
}

// describeIntent lists present facets in a fixed order, e.g. "genre=jazz, era=60s".
func describeIntent(intent models.Intent) string {
	var parts []string
	for _, f := range models.Facets {
		if v := intent.Get(f); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", f, v))
		}
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
