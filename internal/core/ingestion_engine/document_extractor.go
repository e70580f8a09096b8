package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/inkwellhq/papyrus/internal/models"
)

// Extractor turns one raw document into an ordered sequence of layout
// elements with page metadata. Implementations fail with *ExtractionError
// when the input is unreadable, corrupt, or not a supported format, and
// must release any transient local storage on every exit path.
type Extractor interface {
	Extract(ctx context.Context, doc *models.Document, data []byte) ([]LayoutElement, error)
}

// Format names a supported source document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatOffice   Format = "office"
	FormatUnknown  Format = "unknown"
)

// DetectFormat picks the parsing strategy from the file extension, falling
// back to the declared content type.
func DetectFormat(fileName, contentType string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text", ".log":
		return FormatText
	case ".docx", ".doc", ".rtf", ".odt", ".pptx":
		return FormatOffice
	}

	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "application/pdf":
		return FormatPDF
	case "text/html":
		return FormatHTML
	case "text/markdown":
		return FormatMarkdown
	case "text/plain":
		return FormatText
	case "application/msword",
		"application/rtf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text":
		return FormatOffice
	}
	return FormatUnknown
}

// FormatExtractor routes a document to the per-format extractor.
type FormatExtractor struct {
	pdf    *PDFExtractor
	html   *HTMLExtractor
	office *DocconvExtractor
	logger *slog.Logger
}

// NewFormatExtractor wires the format-specific extractors behind one router.
func NewFormatExtractor(logger *slog.Logger) *FormatExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "extractor")
	return &FormatExtractor{
		pdf:    NewPDFExtractor(logger),
		html:   NewHTMLExtractor(logger),
		office: NewDocconvExtractor(false, logger),
		logger: logger,
	}
}

var _ Extractor = (*FormatExtractor)(nil)

// Extract dispatches on the detected format and returns ordered elements.
func (e *FormatExtractor) Extract(ctx context.Context, doc *models.Document, data []byte) ([]LayoutElement, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Op: fmt.Sprintf("empty file %q", doc.FileName)}
	}

	format := DetectFormat(doc.FileName, doc.ContentType)
	e.logger.Debug("extracting document",
		"document_id", doc.ID, "file", doc.FileName, "format", string(format))

	switch format {
	case FormatPDF:
		return e.pdf.Extract(ctx, doc, data)
	case FormatHTML:
		return e.html.Extract(ctx, doc, data)
	case FormatOffice:
		return e.office.Extract(ctx, doc, data)
	case FormatText:
		return textElements(string(data), false), nil
	case FormatMarkdown:
		return textElements(string(data), true), nil
	default:
		return nil, &ExtractionError{
			Op: fmt.Sprintf("unsupported format for %q (content type %q)", doc.FileName, doc.ContentType),
		}
	}
}

var (
	paragraphRe = regexp.MustCompile(`\n[ \t]*\n+`)
	spaceRe     = regexp.MustCompile(`[ \t]+`)
)

// textElements splits plain text into paragraph elements. With markdown
// heading detection enabled, "#"-prefixed lines become title elements.
func textElements(text string, markdown bool) []LayoutElement {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []LayoutElement
	for _, para := range paragraphRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if markdown {
			out = append(out, markdownElements(para)...)
			continue
		}
		out = append(out, LayoutElement{Kind: KindText, Text: normalizeSpace(para)})
	}
	return out
}

// markdownElements splits one paragraph block into heading and body
// elements. Headings never share an element with body text.
func markdownElements(para string) []LayoutElement {
	var out []LayoutElement
	var body []string

	flush := func() {
		if len(body) == 0 {
			return
		}
		out = append(out, LayoutElement{Kind: KindText, Text: normalizeSpace(strings.Join(body, " "))})
		body = body[:0]
	}

	for _, line := range strings.Split(para, "\n") {
		trimmed := strings.TrimSpace(line)
		if heading, ok := markdownHeading(trimmed); ok {
			flush()
			out = append(out, LayoutElement{Kind: KindTitle, Text: heading})
			continue
		}
		if trimmed != "" {
			body = append(body, trimmed)
		}
	}
	flush()
	return out
}

func markdownHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimLeft(line, "#")
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return "", false
	}
	heading := strings.TrimSpace(rest)
	if heading == "" {
		return "", false
	}
	return heading, true
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ReplaceAll(s, "\n", " "), " "))
}

// runeLen is the character count used for all chunking budgets.
func runeLen(s string) int { return len([]rune(s)) }
