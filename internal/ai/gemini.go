package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"rice-quality-analyzer/internal/imagecodec"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Describe(ctx context.Context, in VisionRequest) (string, error) {
	format, data, err := imagecodec.ParseDataURL(in.ImageURL)
	if err != nil {
		return "", fmt.Errorf("gemini image payload: %w", err)
	}

	model := c.client.GenerativeModel(in.Model)
	model.SetTemperature(float32(in.Temperature))
	model.SetTopP(float32(in.TopP))
	model.SetMaxOutputTokens(int32(in.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.ImageData(format, data), genai.Text(in.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyChoices
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
