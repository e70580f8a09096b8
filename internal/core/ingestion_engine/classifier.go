package ingestion_engine

// Tag values carried by persisted chunks.
const (
	TagText  = "text"
	TagTable = "table"
	TagImage = "image"
)

// ClassifyChunk assigns content-kind tags and collects kind-specific
// payloads from a chunk's origin elements. Every chunk starts as text;
// table elements add the table tag and their HTML, image elements add the
// image tag and their bytes. Tag order is stable (text, table, image) and
// payloads keep element order.
//
// Pure function: it never mutates the chunk and returns the same result
// for the same input.
func ClassifyChunk(ch Chunk) Classification {
	cls := Classification{Tags: []string{TagText}, Page: ch.Page}
	if cls.Page <= 0 {
		cls.Page = 1
	}

	hasTable, hasImage := false, false
	for i := range ch.Elements {
		el := &ch.Elements[i]
		switch el.Kind {
		case KindTable:
			hasTable = true
			if el.TableHTML != "" {
				cls.Tables = append(cls.Tables, el.TableHTML)
			}
		case KindImage:
			hasImage = true
			if len(el.ImageData) > 0 {
				mime := el.ImageMIME
				if mime == "" {
					mime = "image/jpeg"
				}
				cls.Images = append(cls.Images, ImagePayload{Data: el.ImageData, MIME: mime})
			}
		}
	}

	if hasTable {
		cls.Tags = append(cls.Tags, TagTable)
	}
	if hasImage {
		cls.Tags = append(cls.Tags, TagImage)
	}
	return cls
}
