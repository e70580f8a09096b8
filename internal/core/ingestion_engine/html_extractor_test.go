package ingestion_engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/papyrus/internal/models"
)

func extractHTML(t *testing.T, src string) []LayoutElement {
	t.Helper()
	e := NewHTMLExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	doc := &models.Document{ID: "d1", FileName: "page.html", ContentType: "text/html"}
	got, err := e.Extract(context.Background(), doc, []byte(src))
	require.NoError(t, err)
	return got
}

func TestHTMLExtractHeadingsAndParagraphs(t *testing.T) {
	got := extractHTML(t, "<html><body><h1>Head</h1><p>First para</p><p>Second para</p></body></html>")

	require.Len(t, got, 3)
	assert.Equal(t, KindTitle, got[0].Kind)
	assert.Equal(t, "Head", got[0].Text)
	assert.Equal(t, KindText, got[1].Kind)
	assert.Equal(t, "First para", got[1].Text)
	assert.Equal(t, "Second para", got[2].Text)
}

func TestHTMLExtractPreservesSourceOrder(t *testing.T) {
	src := "<p>alpha</p>" +
		"<table><tr><td>t1</td></tr></table>" +
		"<p>beta</p>" +
		"<h2>Gamma</h2>"
	got := extractHTML(t, src)

	require.Len(t, got, 4)
	assert.Equal(t, KindText, got[0].Kind)
	assert.Equal(t, "alpha", got[0].Text)
	assert.Equal(t, KindTable, got[1].Kind)
	assert.Equal(t, KindText, got[2].Kind)
	assert.Equal(t, "beta", got[2].Text)
	assert.Equal(t, KindTitle, got[3].Kind)
	assert.Equal(t, "Gamma", got[3].Text)
}

func TestHTMLExtractTableKeepsHTMLAndText(t *testing.T) {
	got := extractHTML(t, "<table><tr><td>cell one</td><td>cell two</td></tr></table>")

	require.Len(t, got, 1)
	el := got[0]
	assert.Equal(t, KindTable, el.Kind)
	assert.Equal(t, "cell one cell two", el.Text)
	assert.Contains(t, el.TableHTML, "<table>")
	assert.Contains(t, el.TableHTML, "cell one")
}

func TestHTMLExtractDecodesDataURIImage(t *testing.T) {
	// "aGVsbG8=" is base64 for "hello".
	got := extractHTML(t, `<p>before</p><img src="data:image/png;base64,aGVsbG8=">`)

	require.Len(t, got, 2)
	assert.Equal(t, "before", got[0].Text)
	img := got[1]
	assert.Equal(t, KindImage, img.Kind)
	assert.Equal(t, []byte("hello"), img.ImageData)
	assert.Equal(t, "image/png", img.ImageMIME)
}

func TestHTMLExtractSkipsRemoteImages(t *testing.T) {
	got := extractHTML(t, `<p>text</p><img src="https://example.com/pic.png">`)

	require.Len(t, got, 1)
	assert.Equal(t, KindText, got[0].Kind)
}

func TestHTMLExtractDropsScripts(t *testing.T) {
	got := extractHTML(t, "<script>evil()</script><p>ok</p>")

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Text)
}

func TestHTMLExtractUnescapesEntities(t *testing.T) {
	got := extractHTML(t, "<p>bread &amp; butter</p>")

	require.Len(t, got, 1)
	assert.Equal(t, "bread & butter", got[0].Text)
}

func TestHTMLExtractEmptyDocumentFails(t *testing.T) {
	e := NewHTMLExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	doc := &models.Document{ID: "d1", FileName: "page.html", ContentType: "text/html"}

	_, err := e.Extract(context.Background(), doc, []byte("<script>x=1</script>"))

	require.Error(t, err)
	var xerr *ExtractionError
	assert.ErrorAs(t, err, &xerr)
	assert.Contains(t, err.Error(), "no content found")
}
