package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/inkwellhq/papyrus/internal/core"
)

// GeminiSummarizer produces chunk descriptions with a Gemini multimodal
// model. One request carries the prompt plus every image in the chunk.
type GeminiSummarizer struct {
	client    *genai.Client
	modelName string
}

func NewGeminiSummarizer(ctx context.Context, apiKey, modelName string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiSummarizer{client: cl, modelName: modelName}, nil
}

func (g *GeminiSummarizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, req core.SummaryRequest) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0.2)

	parts := make([]genai.Part, 0, 1+len(req.Images))
	parts = append(parts, genai.Text(req.Prompt))
	for _, img := range req.Images {
		// ImageData wants the bare format ("jpeg"), not the MIME type.
		parts = append(parts, genai.ImageData(strings.TrimPrefix(img.MIMEType, "image/"), img.Data))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ core.Summarizer = (*GeminiSummarizer)(nil)
