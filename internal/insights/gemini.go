package insights

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"spendwise/internal/models"
)

// GeminiOption adjusts the client configuration.
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at another Gemini API endpoint.
func WithBaseURL(url string) GeminiOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) GeminiOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPClient = client
	}
}

// GeminiGenerator asks a Gemini model for insights.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator for model authenticated with
// apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends the monthly prompt and parses the JSON array answer.
func (g *GeminiGenerator) Generate(ctx context.Context, stats *models.MonthlyStats, period string) ([]string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(BuildPrompt(stats, period)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, fmt.Errorf("generating insights: %w", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				text.WriteString(part.Text)
			}
		}
		// The first candidate with content is the answer.
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("generating insights: empty response")
	}
	return ParseInsights(text.String())
}
