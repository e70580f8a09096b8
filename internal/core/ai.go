package core

import "context"

// ImageBlob is one inline image attached to a summarization request.
// MIMEType is a full media type such as "image/jpeg" or "image/png".
type ImageBlob struct {
	MIMEType string
	Data     []byte
}

// SummaryRequest carries one multimodal summarization call: a fully built
// prompt plus zero or more inline images.
type SummaryRequest struct {
	Prompt string
	Images []ImageBlob
}

// Summarizer produces a short search-oriented description for mixed
// document content. Implementations must honor ctx deadlines; callers
// treat any error (including timeout) as recoverable.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}
