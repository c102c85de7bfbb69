// package formatter provides functions to export assembled playlists to
// various formats (CSV, Markdown, plain text) and to render them for the
// terminal.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// ExportToCSV converts an assembled playlist to CSV with columns: Position, ID, Title, Artists, Album, Duration, Year, Source
func ExportToCSV(playlist *models.AssembledPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artists", "Album", "Duration", "Year", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range playlist.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Title,
			strings.Join(track.Artists, "; "),
			track.Album,
			strconv.Itoa(track.Duration),
			strconv.Itoa(track.Year),
			string(track.Source),
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

// ExportToMarkdown converts an assembled playlist to Markdown, including the
// relaxation log when constraints were loosened during collection.
func ExportToMarkdown(playlist *models.AssembledPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlist.Name))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(playlist.Tracks)))
	if playlist.Shortfall > 0 {
		buf.WriteString(fmt.Sprintf("**Shortfall**: %d below the target of %d\n", playlist.Shortfall, playlist.Target))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range playlist.Tracks {
		duration := shared.FormatDuration(track.Duration)
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, strings.Join(track.Artists, ", "), track.Title, albumPart, duration))
	}

	if len(playlist.Relaxations) > 0 {
		buf.WriteString("\n## Relaxed constraints\n\n")
		for _, step := range playlist.Relaxations {
			buf.WriteString(fmt.Sprintf("- %s: %s -> %s (yield %d -> %d)\n",
				step.Constraint, step.OldValue, step.NewValue, step.YieldBefore, step.YieldAfter))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts an assembled playlist to plain text
func ExportToText(playlist *models.AssembledPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlist.Name))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(playlist.Tracks)))

	for i, track := range playlist.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, strings.Join(track.Artists, ", "), track.Title))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist *models.AssembledPlaylist) ([]byte, error) {
	meta := struct {
		ID          string                  `json:"id"`
		Name        string                  `json:"name"`
		Tracks      int                     `json:"tracks"`
		Target      int                     `json:"target"`
		Shortfall   int                     `json:"shortfall"`
		Artists     map[string]int          `json:"artist_distribution"`
		Relaxations []models.RelaxationStep `json:"relaxations"`
	}{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Tracks:      len(playlist.Tracks),
		Target:      playlist.Target,
		Shortfall:   playlist.Shortfall,
		Artists:     playlist.ArtistDistribution,
		Relaxations: playlist.Relaxations,
	}
	return json.MarshalIndent(meta, "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(playlist *models.AssembledPlaylist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = playlist.ID
	}

	csvData, err := ExportToCSV(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a playlist as {dir}/README.md.
//
// Directory name defaults to the playlist ID.
func WriteMarkdownExport(playlist *models.AssembledPlaylist, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = playlist.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(playlist)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(playlist *models.AssembledPlaylist, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", playlist.ID)
	}

	textData, err := ExportToText(playlist)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
