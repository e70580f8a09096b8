package ingestion_engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	mdtable "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/inkwellhq/papyrus/internal/core"
)

const fallbackTruncateRunes = 500

// Enricher produces the final searchable content for classified chunks.
// Pure-text chunks pass through verbatim with no model call. Chunks with
// table or image payloads get one multimodal summarization call each,
// combining the chunk text, all tables and all images in a single request.
// A failed or timed-out call is absorbed: the chunk falls back to
// deterministic content and the run continues.
type Enricher struct {
	summarizer core.Summarizer
	conv       *converter.Converter
	cache      *lru.Cache[string, string]
	timeout    time.Duration
	workers    int
	logger     *slog.Logger
}

func NewEnricher(summarizer core.Summarizer, cfg *PipelineConfig, logger *slog.Logger) (*Enricher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, string](cfg.SummaryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("summary cache: %w", err)
	}
	return &Enricher{
		summarizer: summarizer,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				mdtable.NewTablePlugin(),
			),
		),
		cache:   cache,
		timeout: cfg.EnrichTimeout(),
		workers: cfg.EnrichWorkers,
		logger:  logger.With("component", "enricher"),
	}, nil
}

// EnrichAll produces content for every chunk, fanning summarization calls
// out across workers. Results land in a position-indexed slice, so output
// order matches input order regardless of completion order.
func (e *Enricher) EnrichAll(ctx context.Context, chunks []Chunk, classifications []Classification) []string {
	contents := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range chunks {
		g.Go(func() error {
			contents[i] = e.Enrich(gctx, chunks[i], classifications[i])
			return nil
		})
	}
	// Workers never return errors; every failure became fallback content.
	_ = g.Wait()

	return contents
}

// Enrich returns the final content for one chunk.
func (e *Enricher) Enrich(ctx context.Context, ch Chunk, cls Classification) string {
	if cls.TextOnly() {
		return ch.Text
	}

	// Repeated payloads (headers and footers re-extracted on every page)
	// reuse the cached summary instead of a second model call.
	key := contentDigest(ch.Text, cls)
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	req := core.SummaryRequest{
		Prompt: e.buildPrompt(ch.Text, cls),
		Images: imageBlobs(cls),
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.summarizer.Summarize(cctx, req)
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		if err == nil {
			err = fmt.Errorf("empty model response")
		}
		e.logger.Warn("summarization failed, using fallback content",
			"page", cls.Page,
			"tables", len(cls.Tables),
			"images", len(cls.Images),
			"error", &EnrichmentError{Op: "summarize chunk", Err: err})
		return fallbackContent(ch.Text, len(cls.Tables), len(cls.Images))
	}

	e.cache.Add(key, out)
	return out
}

func (e *Enricher) buildPrompt(text string, cls Classification) string {
	var sb strings.Builder
	sb.WriteString("Describe this document section for search retrieval. ")
	sb.WriteString("Write a single 30-150 word description, densely packed with keywords: ")
	sb.WriteString("state numbers, entity names and trends explicitly. No preamble.\n")

	if text != "" {
		sb.WriteString("\nSection text:\n")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	for i, tableHTML := range cls.Tables {
		fmt.Fprintf(&sb, "\nTable %d:\n%s\n", i+1, e.tableMarkdown(tableHTML))
	}
	if n := len(cls.Images); n > 0 {
		fmt.Fprintf(&sb, "\nThe section also contains %d attached image(s); describe their content.\n", n)
	}
	return sb.String()
}

// tableMarkdown renders table HTML as Markdown for the prompt; the stored
// original_content keeps the verbatim HTML.
func (e *Enricher) tableMarkdown(tableHTML string) string {
	md, err := e.conv.ConvertString(tableHTML)
	if err != nil || strings.TrimSpace(md) == "" {
		return tableHTML
	}
	return strings.TrimSpace(md)
}

// fallbackContent is the deterministic stand-in used when summarization
// fails: the chunk text truncated plus a note of what was present.
func fallbackContent(text string, tables, images int) string {
	t := strings.TrimSpace(text)
	if r := []rune(t); len(r) > fallbackTruncateRunes {
		t = string(r[:fallbackTruncateRunes]) + "..."
	}
	note := fmt.Sprintf("[section contains %d table(s) and %d image(s); summary unavailable]", tables, images)
	if t == "" {
		return note
	}
	return t + "\n" + note
}

func contentDigest(text string, cls Classification) string {
	h := sha256.New()
	h.Write([]byte(text))
	for _, t := range cls.Tables {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	for _, im := range cls.Images {
		h.Write([]byte{1})
		h.Write(im.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func imageBlobs(cls Classification) []core.ImageBlob {
	if len(cls.Images) == 0 {
		return nil
	}
	out := make([]core.ImageBlob, 0, len(cls.Images))
	for _, im := range cls.Images {
		out = append(out, core.ImageBlob{MIMEType: im.MIME, Data: im.Data})
	}
	return out
}
