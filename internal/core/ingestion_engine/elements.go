package ingestion_engine

// ElementKind discriminates layout elements at construction time.
// Downstream stages switch on the kind; nothing inspects dynamic types.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindTitle ElementKind = "title"
	KindTable ElementKind = "table"
	KindImage ElementKind = "image"
)

// LayoutElement is one extracted structural unit of a source document:
// a paragraph, a heading, a table, or an image, with its 1-based page.
// Table elements carry an HTML rendering in TableHTML next to their
// plain-text form; image elements carry raw bytes plus a MIME type and
// may have empty Text. Elements live only within one pipeline run.
type LayoutElement struct {
	Kind      ElementKind
	Text      string
	Page      int
	TableHTML string
	ImageData []byte
	ImageMIME string
}

// Chunk is an ordered window of adjacent layout elements grouped into one
// retrieval-sized content block.
//
// Elements is a non-owning subslice of the extractor output: the
// classifier reads origin elements through it, and no stage copies or
// mutates them. Page is the page of the chunk's first element (0 when
// the source format carries no page information).
type Chunk struct {
	Text     string
	Page     int
	Elements []LayoutElement
}

// Classification is the result of classifying one chunk: its content-kind
// tags in stable order (text, then table, then image) plus the collected
// kind-specific payloads in element order.
type Classification struct {
	Tags   []string
	Tables []string
	Images []ImagePayload
	Page   int
}

// ImagePayload is one image collected from a chunk's origin elements.
type ImagePayload struct {
	Data []byte
	MIME string
}

// TextOnly reports whether the chunk carries nothing but text.
func (c Classification) TextOnly() bool { return len(c.Tags) == 1 }

// EnrichedChunk pairs a chunk and its classification with the final
// searchable content: raw text for pure-text chunks, a model summary or
// the deterministic fallback otherwise.
type EnrichedChunk struct {
	Chunk          Chunk
	Classification Classification
	Content        string
}
