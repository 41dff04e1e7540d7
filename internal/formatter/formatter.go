// package formatter renders review reports (CSV, Markdown, plain text) and writes exported artifacts
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/bookclean/internal/markup"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
)

// Supported report formats.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// Report is a snapshot of one session's review state.
type Report struct {
	SessionID string               `json:"session_id"`
	Filename  string               `json:"filename"`
	Status    models.SessionStatus `json:"status"`
	Chapters  []models.Chapter     `json:"chapters"`
	Counts    review.Counts        `json:"counts"`
}

// NewReport builds a report from a session and its change set.
func NewReport(s models.Session, set *review.ChangeSet) *Report {
	return &Report{
		SessionID: s.ID,
		Filename:  s.Filename,
		Status:    s.Status,
		Chapters:  set.Chapters(),
		Counts:    set.Counts(),
	}
}

// Title is the filename, or the session id when no filename is known.
func (r *Report) Title() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.SessionID
}

// ExportToCSV writes one row per change with columns: Chapter, Title, ID, Status, Reason, Original, Proposed
func ExportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Chapter", "Title", "ID", "Status", "Reason", "Original", "Proposed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, ch := range r.Chapters {
		for _, c := range ch.Changes {
			record := []string{
				strconv.Itoa(ch.Index),
				ch.Name(),
				c.ID.Raw(),
				c.Status.String(),
				c.Reason,
				markup.Strip(c.Original),
				markup.Strip(c.Proposed),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(markup.Strip(text)), "\n")
	return "> " + strings.Join(lines, "\n> ")
}

// ExportToMarkdown renders counts, per-chapter ratings and every change.
func ExportToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", r.Title()))
	buf.WriteString(fmt.Sprintf("**Session:** `%s` · **Status:** %s\n\n", r.SessionID, r.Status))

	buf.WriteString("| Pending | Accepted | Rejected | Total |\n")
	buf.WriteString("|---:|---:|---:|---:|\n")
	buf.WriteString(fmt.Sprintf("| %d | %d | %d | %d |\n\n", r.Counts.Pending, r.Counts.Accepted, r.Counts.Rejected, r.Counts.Total))

	for _, ch := range r.Chapters {
		buf.WriteString(fmt.Sprintf("## %s\n\n", ch.Name()))
		buf.WriteString(fmt.Sprintf("*Rating: %s*\n\n", ch.Rating))

		if len(ch.Changes) == 0 {
			buf.WriteString("No changes required.\n\n")
			continue
		}

		for _, c := range ch.Changes {
			buf.WriteString(fmt.Sprintf("### %s (%s)\n\n", c.ID.Raw(), c.Status))
			if c.Reason != "" {
				buf.WriteString(fmt.Sprintf("%s\n\n", c.Reason))
			}
			buf.WriteString("Original:\n\n")
			buf.WriteString(quote(c.Original) + "\n\n")
			buf.WriteString("Proposed:\n\n")
			buf.WriteString(quote(c.Proposed) + "\n\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders a compact plain text summary, one line per change.
func ExportToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s (%s)\n", r.Title(), r.Status))
	buf.WriteString(fmt.Sprintf("%d changes: %d pending, %d accepted, %d rejected\n",
		r.Counts.Total, r.Counts.Pending, r.Counts.Accepted, r.Counts.Rejected))

	for _, ch := range r.Chapters {
		buf.WriteString(fmt.Sprintf("\n%s [%s]\n", ch.Name(), ch.Rating))
		for _, c := range ch.Changes {
			buf.WriteString(fmt.Sprintf("  %-8s %-9s %s\n", c.ID.Raw(), c.Status, shared.Truncate(markup.Strip(c.Original), 60)))
		}
	}

	return buf.Bytes(), nil
}

// Export renders the report in the named format.
func Export(r *Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(r)
	case FormatMarkdown, "md":
		return ExportToMarkdown(r)
	case FormatText, "text":
		return ExportToText(r)
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown, "md":
		return ".md"
	case FormatText, "text":
		return ".txt"
	default:
		return ".json"
	}
}

// WriteReport renders the report and writes it to path, creating parent directories.
func WriteReport(r *Report, format, path string) (string, error) {
	data, err := Export(r, format)
	if err != nil {
		return "", err
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteArtifact saves an exported book into dir.
//
// The backend's filename is used when present, otherwise fallback.
func WriteArtifact(a *services.Artifact, dir, fallback string) (string, error) {
	name := a.Filename
	if name == "" {
		name = fallback
	}
	if name == "" {
		return "", fmt.Errorf("%w: artifact has no filename", shared.ErrInvalidInput)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := writeFile(path, a.Data); err != nil {
		return "", err
	}
	return path, nil
}

// ManifestEntry describes one session in a bulk export.
type ManifestEntry struct {
	SessionID string   `json:"session_id"`
	Filename  string   `json:"filename,omitempty"`
	Files     []string `json:"files,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Entries     []ManifestEntry `json:"entries"`
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
