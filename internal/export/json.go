package export

import (
	"encoding/json"
	"io"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// JSONExporter exports sessions to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Session *core.Session `json:"session"`
	Turns   []*core.Turn  `json:"turns"`
}

// Export writes the session as JSON.
func (e *JSONExporter) Export(session *core.Session, turns []*core.Turn, w io.Writer) error {
	if turns == nil {
		turns = []*core.Turn{}
	}
	data := ExportData{
		Session: session,
		Turns:   turns,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
