package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/inkwellhq/papyrus/internal/models"
)

// PDFExtractor parses PDF files with pdfcpu: page text from content
// streams, headings and column-aligned tables via line heuristics, and
// embedded JPEG image streams as image elements.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

var _ Extractor = (*PDFExtractor)(nil)

// Extract stages the bytes in a per-run temp file (pdfcpu wants a seeker)
// and removes it on every exit path.
func (e *PDFExtractor) Extract(ctx context.Context, doc *models.Document, data []byte) ([]LayoutElement, error) {
	f, err := os.CreateTemp("", "papyrus-*.pdf")
	if err != nil {
		return nil, &ExtractionError{Op: "create temp file", Err: err}
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return nil, &ExtractionError{Op: "stage temp file", Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &ExtractionError{Op: "rewind temp file", Err: err}
	}

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, &ExtractionError{Op: fmt.Sprintf("parse pdf %q", doc.FileName), Err: err}
	}

	var elements []LayoutElement
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		select {
		case <-ctx.Done():
			return nil, &ExtractionError{Op: "extraction cancelled", Err: ctx.Err()}
		default:
		}

		els := elementsFromLines(pageLines(pctx, pageNr), pageNr)
		els = append(els, e.pageImages(pctx, pageNr)...)
		elements = append(elements, els...)
	}

	if len(elements) == 0 {
		return nil, &ExtractionError{Op: fmt.Sprintf("no content found in %q", doc.FileName)}
	}

	e.logger.Debug("pdf extracted",
		"document_id", doc.ID, "pages", pctx.PageCount, "elements", len(elements))
	return elements, nil
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// pageLines parses one page's content stream into logical text lines.
// Tj/TJ append to the current line; ', T*, BT and ET break lines; Td/TD
// repositioning inserts a column gap, which the table heuristic picks up.
func pageLines(pctx *model.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}

	var lines []string
	var cur strings.Builder

	endLine := func() {
		if s := cleanStreamLine(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(raw, []byte("Tj")), bytes.HasSuffix(raw, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(raw, -1) {
				cur.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(raw, []byte("'")) && bytes.Contains(raw, []byte("(")):
			endLine()
			for _, m := range pdfStringRe.FindAllSubmatch(raw, -1) {
				cur.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(raw, []byte("Td")), bytes.HasSuffix(raw, []byte("TD")):
			if cur.Len() > 0 {
				cur.WriteByte('\t')
			}
		case bytes.Equal(raw, []byte("T*")), bytes.Equal(raw, []byte("BT")), bytes.Equal(raw, []byte("ET")):
			endLine()
		}
	}
	endLine()

	return lines
}

// decodePDFString handles basic PDF escape sequences, octal included.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

var columnGapRe = regexp.MustCompile(`\t+| {3,}`)

// cleanStreamLine drops non-printables and normalizes column gaps (tabs or
// runs of three-plus spaces) to single tabs.
func cleanStreamLine(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\t':
			sb.WriteRune('\t')
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	out := columnGapRe.ReplaceAllString(sb.String(), "\t")
	return strings.Trim(out, " \t")
}

// elementsFromLines turns page lines into layout elements: consecutive
// multi-column lines become one table element, heading-shaped lines become
// titles, everything else accumulates into text paragraphs.
func elementsFromLines(lines []string, page int) []LayoutElement {
	var (
		out  []LayoutElement
		para []string
		rows [][]string
	)

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		out = append(out, LayoutElement{
			Kind: KindText,
			Text: normalizeSpace(strings.Join(para, " ")),
			Page: page,
		})
		para = para[:0]
	}
	flushRows := func() {
		if len(rows) == 0 {
			return
		}
		if len(rows) >= 2 {
			out = append(out, LayoutElement{
				Kind:      KindTable,
				Text:      tableText(rows),
				Page:      page,
				TableHTML: tableHTML(rows),
			})
		} else {
			// A lone multi-column line is not enough evidence for a table.
			para = append(para, strings.Join(rows[0], " "))
		}
		rows = rows[:0]
	}

	for _, line := range lines {
		if cells := splitColumns(line); len(cells) >= 3 {
			flushPara()
			rows = append(rows, cells)
			continue
		}
		flushRows()

		line = strings.ReplaceAll(line, "\t", " ")
		if isHeadingLine(line) {
			flushPara()
			out = append(out, LayoutElement{Kind: KindTitle, Text: normalizeSpace(line), Page: page})
			continue
		}
		para = append(para, line)
	}
	flushRows()
	flushPara()

	return out
}

func splitColumns(line string) []string {
	if !strings.Contains(line, "\t") {
		return nil
	}
	var cells []string
	for _, c := range strings.Split(line, "\t") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

// isHeadingLine flags short standalone lines without sentence punctuation.
func isHeadingLine(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || runeLen(s) > 80 {
		return false
	}
	switch s[len(s)-1] {
	case '.', ',', ';', ':':
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	if s == strings.ToUpper(s) {
		return true
	}
	first, _ := firstRune(s)
	return unicode.IsUpper(first) && len(strings.Fields(s)) <= 8
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func tableHTML(rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("<table>")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			sb.WriteString("<td>")
			sb.WriteString(html.EscapeString(cell))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

func tableText(rows [][]string) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, strings.Join(row, " | "))
	}
	return strings.Join(parts, "\n")
}

// pageImages collects DCT-encoded (JPEG) image XObjects referenced by the
// page. Other encodings are skipped: their pixel data would need color
// space reconstruction before any model could consume it.
func (e *PDFExtractor) pageImages(pctx *model.Context, pageNr int) []LayoutElement {
	if pctx.Optimize == nil {
		return nil
	}

	objNrs := pdfcpu.ImageObjNrs(pctx, pageNr)
	sort.Ints(objNrs)

	var out []LayoutElement
	for _, objNr := range objNrs {
		entry, ok := pctx.Table[objNr]
		if !ok || entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || !dctEncoded(sd) || len(sd.Raw) == 0 {
			continue
		}
		out = append(out, LayoutElement{
			Kind:      KindImage,
			Page:      pageNr,
			ImageData: sd.Raw,
			ImageMIME: "image/jpeg",
		})
	}
	return out
}

func dctEncoded(sd types.StreamDict) bool {
	for _, f := range sd.FilterPipeline {
		if f.Name == "DCTDecode" {
			return true
		}
	}
	return false
}
