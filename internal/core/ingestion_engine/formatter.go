package ingestion_engine

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/inkwellhq/papyrus/internal/models"
)

// originalBundle is the JSON shape stored when a chunk carries mixed
// payloads that no single verbatim representation can hold.
type originalBundle struct {
	Text   string   `json:"text"`
	Tables []string `json:"tables,omitempty"`
	Images []string `json:"images,omitempty"`
}

// BuildRecords turns enriched chunks into storage rows. chunk_index follows
// the slice order, which the pipeline keeps aligned with source document
// order, so indexes come out contiguous from zero.
func BuildRecords(documentID string, enriched []EnrichedChunk) []models.DocumentChunk {
	records := make([]models.DocumentChunk, 0, len(enriched))
	for i, ec := range enriched {
		records = append(records, models.DocumentChunk{
			ID:              uuid.NewString(),
			DocumentID:      documentID,
			ChunkIndex:      i,
			PageNumber:      ec.Classification.Page,
			Type:            ec.Classification.Tags,
			Content:         ec.Content,
			OriginalContent: buildOriginalContent(ec.Chunk, ec.Classification),
			CharCount:       runeLen(ec.Content),
		})
	}
	return records
}

// buildOriginalContent preserves source payloads for later display. Pure
// text stores nothing. A lone table keeps its HTML verbatim and a lone
// image its base64 bytes, so clients can render them without unwrapping;
// anything mixed goes into a JSON bundle.
func buildOriginalContent(ch Chunk, cls Classification) *string {
	if cls.TextOnly() {
		return nil
	}

	switch {
	case len(cls.Tables) == 1 && len(cls.Images) == 0:
		s := cls.Tables[0]
		return &s
	case len(cls.Images) == 1 && len(cls.Tables) == 0:
		s := base64.StdEncoding.EncodeToString(cls.Images[0].Data)
		return &s
	}

	bundle := originalBundle{Text: ch.Text, Tables: cls.Tables}
	for _, im := range cls.Images {
		bundle.Images = append(bundle.Images, base64.StdEncoding.EncodeToString(im.Data))
	}
	b, _ := json.Marshal(bundle)
	s := string(b)
	return &s
}
