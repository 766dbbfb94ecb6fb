package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rice-quality-analyzer/internal/ai"
	"rice-quality-analyzer/internal/imagecodec"
	"rice-quality-analyzer/internal/model"
)

var (
	ErrImageMissing  = errors.New("missing image file")
	ErrImageTooLarge = errors.New("image too large")
	ErrImageDecode   = errors.New("image processing error")
	ErrVisionAPI     = errors.New("api communication error")
	ErrEmptyReport   = errors.New("the model returned an empty response")
)

type EventPublisher interface {
	Publish(ctx context.Context, event model.AnalysisEvent) error
}

type AnalysisOptions struct {
	Provider       string
	Model          string
	Prompt         string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	MaxUploadBytes int64
	MaxDimension   int
}

type AnalyzeInput struct {
	SessionID string
	Filename  string
	Data      []byte
}

type AnalysisResult struct {
	Report   string            `json:"report"`
	Image    *imagecodec.Image `json:"-"`
	Model    string            `json:"model"`
	Duration time.Duration     `json:"-"`
}

// AnalysisService turns an uploaded photo into the model's text report.
type AnalysisService struct {
	client    ai.VisionClient
	publisher EventPublisher
	opts      AnalysisOptions
	now       func() time.Time
}

// NewAnalysisService wires the pipeline. publisher may be nil.
func NewAnalysisService(client ai.VisionClient, publisher EventPublisher, opts AnalysisOptions) *AnalysisService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	return &AnalysisService{
		client:    client,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *AnalysisService) Options() AnalysisOptions {
	return s.opts
}

// Analyze decodes the image, sends it with the fixed prompt and returns the answer
// unchanged. Decode failures wrap ErrImageDecode; provider failures wrap ErrVisionAPI.
// Nothing is retried.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalysisResult, error) {
	started := s.now()
	event := model.AnalysisEvent{
		SessionID: input.SessionID,
		Filename:  input.Filename,
		Bytes:     len(input.Data),
		Provider:  s.opts.Provider,
		Model:     s.opts.Model,
	}

	result, err := s.analyze(ctx, input, &event)
	event.DurationMS = s.now().Sub(started).Milliseconds()
	event.At = started
	switch {
	case err == nil:
		event.Outcome = model.OutcomeSucceeded
		event.ReportLen = len(result.Report)
		result.Duration = s.now().Sub(started)
	case errors.Is(err, ErrVisionAPI):
		event.Outcome = model.OutcomeVisionError
		event.Error = err.Error()
	default:
		event.Outcome = model.OutcomeImageError
		event.Error = err.Error()
	}

	log.Printf("analysis session=%s file=%q format=%s bytes=%d model=%s outcome=%s duration=%dms",
		event.SessionID, event.Filename, event.Format, event.Bytes, event.Model, event.Outcome, event.DurationMS)
	s.publish(event)
	return result, err
}

func (s *AnalysisService) analyze(ctx context.Context, input AnalyzeInput, event *model.AnalysisEvent) (*AnalysisResult, error) {
	if len(input.Data) == 0 {
		return nil, ErrImageMissing
	}
	if int64(len(input.Data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrImageTooLarge, s.opts.MaxUploadBytes)
	}

	img, err := imagecodec.Decode(input.Filename, input.Data, s.opts.MaxDimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	event.Format = img.Format

	text, err := s.client.Describe(ctx, ai.VisionRequest{
		Model:       s.opts.Model,
		Prompt:      s.opts.Prompt,
		ImageURL:    img.DataURL(),
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVisionAPI, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrVisionAPI, ErrEmptyReport)
	}

	return &AnalysisResult{
		Report: text,
		Image:  img,
		Model:  s.opts.Model,
	}, nil
}

func (s *AnalysisService) publish(event model.AnalysisEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("publish analysis event failed: %v", err)
	}
}
