package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyChoices = errors.New("empty llm choices")
	ErrRateLimited  = errors.New("llm rate limit exceeded")
	ErrUnauthorized = errors.New("llm credential rejected")
)

// VisionRequest is a single prompt + image submission.
type VisionRequest struct {
	Model string
	// Prompt is the instruction sent alongside the image.
	Prompt string
	// ImageURL is a data:image/<format>;base64,... URL.
	ImageURL    string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// VisionClient submits an image with a prompt and returns the model's text answer.
type VisionClient interface {
	Describe(ctx context.Context, req VisionRequest) (string, error)
}

// ProviderConfig selects and authenticates a VisionClient implementation.
type ProviderConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewVisionClient builds the client named by cfg.Provider. The returned close
// function releases provider resources and is never nil.
func NewVisionClient(ctx context.Context, cfg ProviderConfig) (VisionClient, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "groq", "compatible":
		return NewOpenAICompatibleClient(ChatConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		}, cfg.Timeout), noop, nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout), noop, nil
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	case "":
		return nil, noop, fmt.Errorf("llm provider not specified")
	default:
		return nil, noop, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// MaskSecret keeps the first and last four characters of a credential.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	masked := make([]byte, len(secret))
	copy(masked, secret)
	for i := 4; i < len(secret)-4; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
