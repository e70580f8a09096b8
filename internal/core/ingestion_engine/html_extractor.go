package ingestion_engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/inkwellhq/papyrus/internal/models"
)

// HTMLExtractor parses HTML documents: headings become title elements,
// <table> blocks become table elements with their sanitized HTML kept
// verbatim, data-URI images become image elements, and the remaining
// block text becomes paragraphs. Source order is preserved.
type HTMLExtractor struct {
	policy *bluemonday.Policy
	logger *slog.Logger
}

func NewHTMLExtractor(logger *slog.Logger) *HTMLExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	// User-supplied markup is sanitized before anything is stored or sent
	// to a model. Data-URI images are allowed so inline payloads survive.
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &HTMLExtractor{policy: policy, logger: logger}
}

var _ Extractor = (*HTMLExtractor)(nil)

var (
	htmlBlockRe = regexp.MustCompile(`(?is)(<table[^>]*>.*?</table>)|(<h[1-6][^>]*>.*?</h[1-6]>)|(<img[^>]*>)`)
	htmlTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBreakRe = regexp.MustCompile(`(?i)</p>|</div>|</li>|</tr>|<br\s*/?>`)
	dataURIRe   = regexp.MustCompile(`(?i)src\s*=\s*["']?data:(image/[a-z0-9.+-]+);base64,([A-Za-z0-9+/=\s]+)["']?`)
)

func (e *HTMLExtractor) Extract(ctx context.Context, doc *models.Document, data []byte) ([]LayoutElement, error) {
	sanitized := e.policy.Sanitize(string(data))
	if strings.TrimSpace(sanitized) == "" {
		return nil, &ExtractionError{Op: fmt.Sprintf("no content found in %q", doc.FileName)}
	}

	var elements []LayoutElement
	last := 0
	for _, m := range htmlBlockRe.FindAllStringSubmatchIndex(sanitized, -1) {
		elements = append(elements, htmlTextElements(sanitized[last:m[0]])...)
		last = m[1]

		switch {
		case m[2] >= 0: // table
			block := sanitized[m[2]:m[3]]
			elements = append(elements, LayoutElement{
				Kind:      KindTable,
				Text:      stripHTMLTags(block),
				TableHTML: block,
			})
		case m[4] >= 0: // heading
			if text := stripHTMLTags(sanitized[m[4]:m[5]]); text != "" {
				elements = append(elements, LayoutElement{Kind: KindTitle, Text: text})
			}
		case m[6] >= 0: // image
			if el, ok := e.imageElement(sanitized[m[6]:m[7]]); ok {
				elements = append(elements, el)
			}
		}
	}
	elements = append(elements, htmlTextElements(sanitized[last:])...)

	if len(elements) == 0 {
		return nil, &ExtractionError{Op: fmt.Sprintf("no content found in %q", doc.FileName)}
	}
	return elements, nil
}

// imageElement decodes an inline data-URI image. Remote references are
// skipped: extraction never performs network fetches.
func (e *HTMLExtractor) imageElement(imgTag string) (LayoutElement, bool) {
	m := dataURIRe.FindStringSubmatch(imgTag)
	if m == nil {
		return LayoutElement{}, false
	}
	payload := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			return -1
		}
		return r
	}, m[2])

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		e.logger.Debug("skipping undecodable inline image", "error", err)
		return LayoutElement{}, false
	}
	return LayoutElement{Kind: KindImage, ImageData: raw, ImageMIME: strings.ToLower(m[1])}, true
}

func htmlTextElements(fragment string) []LayoutElement {
	fragment = htmlBreakRe.ReplaceAllString(fragment, "\n\n")
	text := stripHTMLTagsKeepBreaks(fragment)

	var out []LayoutElement
	for _, para := range paragraphRe.Split(text, -1) {
		if para = normalizeSpace(para); para != "" {
			out = append(out, LayoutElement{Kind: KindText, Text: para})
		}
	}
	return out
}

func stripHTMLTags(s string) string {
	return normalizeSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, " ")))
}

func stripHTMLTagsKeepBreaks(s string) string {
	return html.UnescapeString(htmlTagRe.ReplaceAllString(s, " "))
}
