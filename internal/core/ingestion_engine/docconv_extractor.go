package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/inkwellhq/papyrus/internal/models"
)

// DocconvExtractor handles office formats through sajari/docconv. These
// converters surface plain text only, so every element comes back as a
// paragraph; tables and images inside office files are not recovered.
type DocconvExtractor struct {
	useReadability bool
	logger         *slog.Logger
}

func NewDocconvExtractor(useReadability bool, logger *slog.Logger) *DocconvExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocconvExtractor{useReadability: useReadability, logger: logger}
}

var _ Extractor = (*DocconvExtractor)(nil)

func (e *DocconvExtractor) Extract(ctx context.Context, doc *models.Document, data []byte) ([]LayoutElement, error) {
	mime := officeMime(doc.FileName, doc.ContentType)

	res, err := docconv.Convert(bytes.NewReader(data), mime, e.useReadability)
	if err != nil {
		return nil, &ExtractionError{Op: fmt.Sprintf("convert %q (%s)", doc.FileName, mime), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ExtractionError{Op: "extraction cancelled", Err: err}
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, &ExtractionError{Op: fmt.Sprintf("no content found in %q", doc.FileName)}
	}

	elements := textElements(res.Body, false)
	e.logger.Debug("office document extracted", "document_id", doc.ID, "elements", len(elements))
	return elements, nil
}

// officeMime resolves the MIME type docconv dispatches on, preferring the
// declared content type over the extension.
func officeMime(fileName, contentType string) string {
	ct := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".odt":
		return "application/vnd.oasis.opendocument.text"
	case ".rtf":
		return "application/rtf"
	default:
		return "text/plain"
	}
}
