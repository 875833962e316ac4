package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct{}

// Export writes the session as Markdown.
func (e *MarkdownExporter) Export(session *core.Session, turns []*core.Turn, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# Session Transcript\n\n")

	sb.WriteString("## Session Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", session.ID))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", session.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if len(turns) > 0 {
		sb.WriteString(fmt.Sprintf("- **Turns:** %d\n", len(turns)))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(turns[0].CreatedAt, turns[len(turns)-1].CreatedAt)))
	}
	sb.WriteString("\n")

	if names := participants(turns); len(names) > 0 {
		sb.WriteString("## Participants\n\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Conversation\n\n")

	if len(turns) == 0 {
		sb.WriteString("*No turns recorded.*\n\n")
	} else {
		for i, turn := range turns {
			sb.WriteString(fmt.Sprintf("#### Turn %d - %s\n\n", i+1, speakerName(turn.Speaker)))
			sb.WriteString(fmt.Sprintf("*%s*\n\n", turn.CreatedAt.Format("3:04 PM")))
			sb.WriteString(turn.Content)
			sb.WriteString("\n\n---\n\n")
		}
	}

	sb.WriteString("*Exported from agora*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown"
}
