package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"medjournal/internal/models"
)

// generator is the single upstream call, split out so tests can stub the
// model without a network round trip.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Client analyzes journal entries with the Gemini API.
type Client struct {
	gen       generator
	genai     *genai.Client
	logger    *zap.Logger
	modelName string
	timeout   time.Duration
}

// Config for the Gemini client.
type Config struct {
	APIKey    string
	ModelName string        // Default: "gemini-1.5-flash"
	Timeout   time.Duration // Caller-side deadline for one model call
}

// NewClient creates a new Gemini-backed classifier. A missing API key is a
// configuration error surfaced immediately, before any entry is analyzed.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-1.5-flash"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3), // Lower for consistent extraction
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](500),
	}

	logger.Info("Gemini client initialized", zap.String("model", cfg.ModelName))

	return &Client{
		gen:       &geminiGenerator{model: model},
		genai:     client,
		logger:    logger,
		modelName: cfg.ModelName,
		timeout:   cfg.Timeout,
	}, nil
}

// Close closes the underlying Gemini client.
func (c *Client) Close() error {
	if c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

// Classify analyzes a single journal entry. Empty input is rejected before
// any upstream call. The model is called exactly once per invocation; a
// failed call is never retried here, retries are always user-initiated.
func (c *Client) Classify(ctx context.Context, text string) (*models.AnalysisResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.gen.generate(ctx, BuildPrompt(trimmed))
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return nil, err
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			c.logger.Error("Gemini API error",
				zap.Int("status", apiErr.Code),
				zap.String("body", apiErr.Message))
			return nil, &UpstreamError{Status: apiErr.Code, Body: apiErr.Message}
		}
		c.logger.Error("Gemini request failed", zap.Error(err))
		return nil, &UpstreamError{Body: err.Error()}
	}

	parsed, err := decodeAnalysis(output)
	if err != nil {
		c.logger.Error("Failed to parse model output",
			zap.Error(err),
			zap.String("output", output))
		return nil, err
	}

	result := normalizeAnalysis(parsed)
	c.logger.Debug("Entry analyzed",
		zap.Int("symptoms", len(result.Symptoms)),
		zap.String("severity", result.Severity),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

type geminiGenerator struct {
	model *genai.GenerativeModel
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", ErrEmptyResponse
	}

	return string(textPart), nil
}
