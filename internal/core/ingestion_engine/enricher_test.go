package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/papyrus/internal/core"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
	delay    time.Duration
	requests []core.SummaryRequest
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req core.SummaryRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestEnricher(t *testing.T, s core.Summarizer) *Enricher {
	t.Helper()
	cfg := DefaultPipelineConfig()
	cfg.EnrichWorkers = 2
	e, err := NewEnricher(s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func mixedChunk(text, tableHTML string) (Chunk, Classification) {
	ch := Chunk{
		Text: text,
		Page: 1,
		Elements: []LayoutElement{
			{Kind: KindText, Text: text},
			{Kind: KindTable, Text: "cells", TableHTML: tableHTML},
		},
	}
	return ch, ClassifyChunk(ch)
}

func TestEnrichTextOnlyPassesThrough(t *testing.T) {
	fake := &fakeSummarizer{response: "should never be used"}
	e := newTestEnricher(t, fake)

	ch := Chunk{Text: "plain paragraph", Elements: []LayoutElement{textEl("plain paragraph")}}
	got := e.Enrich(context.Background(), ch, ClassifyChunk(ch))

	assert.Equal(t, "plain paragraph", got)
	assert.Equal(t, 0, fake.callCount())
}

func TestEnrichMixedChunkMakesOneCall(t *testing.T) {
	fake := &fakeSummarizer{response: "  quarterly revenue table summary  "}
	e := newTestEnricher(t, fake)

	ch, cls := mixedChunk("intro", "<table><tr><td>42</td></tr></table>")
	got := e.Enrich(context.Background(), ch, cls)

	assert.Equal(t, "quarterly revenue table summary", got)
	assert.Equal(t, 1, fake.callCount())
}

func TestEnrichFallsBackOnError(t *testing.T) {
	fake := &fakeSummarizer{err: errors.New("model unavailable")}
	e := newTestEnricher(t, fake)

	ch, cls := mixedChunk("the section text", "<table><tr><td>a</td></tr></table>")
	got := e.Enrich(context.Background(), ch, cls)

	assert.Contains(t, got, "the section text")
	assert.Contains(t, got, "[section contains 1 table(s) and 0 image(s); summary unavailable]")
}

func TestEnrichFallsBackOnEmptyResponse(t *testing.T) {
	fake := &fakeSummarizer{response: "   "}
	e := newTestEnricher(t, fake)

	ch, cls := mixedChunk("body", "<table><tr><td>a</td></tr></table>")
	got := e.Enrich(context.Background(), ch, cls)

	assert.Contains(t, got, "summary unavailable")
}

func TestEnrichFallsBackOnTimeout(t *testing.T) {
	fake := &fakeSummarizer{response: "too late", delay: 200 * time.Millisecond}
	e := newTestEnricher(t, fake)
	e.timeout = 20 * time.Millisecond

	ch, cls := mixedChunk("slow section", "<table><tr><td>a</td></tr></table>")
	got := e.Enrich(context.Background(), ch, cls)

	assert.Contains(t, got, "summary unavailable")
	assert.Equal(t, 1, fake.callCount())
}

func TestEnrichReusesCachedSummary(t *testing.T) {
	fake := &fakeSummarizer{response: "footer logo description"}
	e := newTestEnricher(t, fake)

	// Same payload extracted twice, as with a logo repeated on every page.
	ch1, cls1 := mixedChunk("footer", "<table><tr><td>logo</td></tr></table>")
	ch2, cls2 := mixedChunk("footer", "<table><tr><td>logo</td></tr></table>")

	first := e.Enrich(context.Background(), ch1, cls1)
	second := e.Enrich(context.Background(), ch2, cls2)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.callCount())
}

func TestEnrichDistinctPayloadsAreNotCached(t *testing.T) {
	fake := &fakeSummarizer{response: "a summary"}
	e := newTestEnricher(t, fake)

	ch1, cls1 := mixedChunk("page one", "<table><tr><td>one</td></tr></table>")
	ch2, cls2 := mixedChunk("page two", "<table><tr><td>two</td></tr></table>")

	e.Enrich(context.Background(), ch1, cls1)
	e.Enrich(context.Background(), ch2, cls2)

	assert.Equal(t, 2, fake.callCount())
}

func TestEnrichFailedCallIsNotCached(t *testing.T) {
	fake := &fakeSummarizer{err: errors.New("down")}
	e := newTestEnricher(t, fake)

	ch, cls := mixedChunk("body", "<table><tr><td>a</td></tr></table>")
	e.Enrich(context.Background(), ch, cls)
	e.Enrich(context.Background(), ch, cls)

	assert.Equal(t, 2, fake.callCount(), "fallback content must not poison the cache")
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	fake := &fakeSummarizer{response: "table summary"}
	e := newTestEnricher(t, fake)

	alpha := Chunk{Text: "alpha", Elements: []LayoutElement{textEl("alpha")}}
	mixed, _ := mixedChunk("beta", "<table><tr><td>b</td></tr></table>")
	gamma := Chunk{Text: "gamma", Elements: []LayoutElement{textEl("gamma")}}

	chunks := []Chunk{alpha, mixed, gamma}
	classifications := make([]Classification, len(chunks))
	for i, ch := range chunks {
		classifications[i] = ClassifyChunk(ch)
	}

	contents := e.EnrichAll(context.Background(), chunks, classifications)

	require.Len(t, contents, 3)
	assert.Equal(t, "alpha", contents[0])
	assert.Equal(t, "table summary", contents[1])
	assert.Equal(t, "gamma", contents[2])
	assert.Equal(t, 1, fake.callCount())
}

func TestEnrichPromptCarriesTextTablesAndImages(t *testing.T) {
	fake := &fakeSummarizer{response: "described"}
	e := newTestEnricher(t, fake)

	ch := Chunk{
		Text: "sales overview",
		Page: 2,
		Elements: []LayoutElement{
			textEl("sales overview"),
			{Kind: KindTable, TableHTML: "<table><tr><td>Q1</td><td>100</td></tr></table>"},
			{Kind: KindImage, ImageData: []byte{0x89, 0x50}, ImageMIME: "image/png"},
		},
	}
	e.Enrich(context.Background(), ch, ClassifyChunk(ch))

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Contains(t, req.Prompt, "sales overview")
	assert.Contains(t, req.Prompt, "Table 1:")
	assert.Contains(t, req.Prompt, "1 attached image")
	require.Len(t, req.Images, 1)
	assert.Equal(t, "image/png", req.Images[0].MIMEType)
	assert.Equal(t, []byte{0x89, 0x50}, req.Images[0].Data)
}

func TestFallbackContentTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", fallbackTruncateRunes+200)

	got := fallbackContent(long, 2, 1)

	lines := strings.SplitN(got, "\n", 2)
	require.Len(t, lines, 2)
	assert.Equal(t, fallbackTruncateRunes+3, runeLen(lines[0]), "text plus ellipsis")
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Equal(t, "[section contains 2 table(s) and 1 image(s); summary unavailable]", lines[1])
}

func TestFallbackContentEmptyTextIsNoteOnly(t *testing.T) {
	got := fallbackContent("   ", 0, 3)
	assert.Equal(t, "[section contains 0 table(s) and 3 image(s); summary unavailable]", got)
}

func TestFallbackContentMentionsCounts(t *testing.T) {
	got := fallbackContent("short", 1, 2)
	assert.Equal(t, fmt.Sprintf("short\n[section contains %d table(s) and %d image(s); summary unavailable]", 1, 2), got)
}
