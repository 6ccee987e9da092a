package advisory

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var ErrGeneratorUnavailable = errors.New("advisory generator not configured")

// GeminiGenerator calls the Gemini API through the Google Gen AI SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey string, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrGeneratorUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// UnavailableGenerator is wired when no API key is configured; every call
// falls back.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrGeneratorUnavailable
}
