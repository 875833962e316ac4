// Package export handles exporting session transcripts to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Exporter defines the interface for exporting sessions.
type Exporter interface {
	Export(session *core.Session, turns []*core.Turn, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filesystem-safe filename for the export.
// The title is taken from the first user turn when there is one.
func GenerateFilename(session *core.Session, turns []*core.Turn, ext string) string {
	title := "session"
	for _, t := range turns {
		if t.Speaker == core.SpeakerUser && strings.TrimSpace(t.Content) != "" {
			title = strings.TrimSpace(t.Content)
			break
		}
	}
	if len(title) > 50 {
		title = title[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"\n", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	title = replacer.Replace(title)

	timestamp := session.CreatedAt.Format("20060102")
	return fmt.Sprintf("session_%s_%s.%s", timestamp, title, ext)
}

// speakerName returns the display name for a turn speaker.
func speakerName(speaker string) string {
	switch speaker {
	case core.SpeakerUser:
		return "Moderator"
	case core.SpeakerBot:
		return "Persona"
	}
	if p := persona.Get(speaker); p != nil {
		return p.Name
	}
	return speaker
}

// participants lists the distinct non-user speakers in order of first appearance.
func participants(turns []*core.Turn) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range turns {
		if t.Speaker == core.SpeakerUser || seen[t.Speaker] {
			continue
		}
		seen[t.Speaker] = true
		out = append(out, speakerName(t.Speaker))
	}
	return out
}

// Helper to format duration
func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
