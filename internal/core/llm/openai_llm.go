package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/inkwellhq/papyrus/internal/core"
)

// OpenAISummarizer produces chunk descriptions through any OpenAI-compatible
// chat endpoint. Images travel inline as data URLs, which also covers local
// vision models served behind an OpenAI-style API.
type OpenAISummarizer struct {
	client *openai.LLM
}

func NewOpenAISummarizer(baseURL, apiKey, model string) (*OpenAISummarizer, error) {
	if apiKey == "" {
		// Local OpenAI-compatible services don't require authentication.
		apiKey = "none"
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return &OpenAISummarizer{client: client}, nil
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, req core.SummaryRequest) (string, error) {
	parts := make([]llms.ContentPart, 0, 1+len(req.Images))
	parts = append(parts, llms.TextPart(req.Prompt))
	for _, img := range req.Images {
		dataURL := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		parts = append(parts, llms.ImageURLPart(dataURL))
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: parts,
		},
	}

	resp, err := o.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) < 1 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

var _ core.Summarizer = (*OpenAISummarizer)(nil)
