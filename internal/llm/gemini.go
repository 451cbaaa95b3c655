package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/logger"
)

// GeminiGenerator calls a Gemini model through the GenAI SDK.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	temperature float32
}

// NewGeminiGenerator creates a generator for the configured backend.
func NewGeminiGenerator(ctx context.Context, cfg config.GeminiConfig) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: cfg.APIVersion,
			BaseURL:    cfg.BaseURL,
		},
	}
	if cfg.UseVertexAI {
		cc.APIKey = ""
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("newGeminiGenerator: create genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiGenerator{
		client:      client,
		model:       cfg.Model,
		timeout:     timeout,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the model name requests are sent to.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate sends the prompt and attachments as one user turn. Each call is
// bounded by the configured timeout.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	log := logger.FromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{{Text: req.Prompt}}
	for _, a := range req.Attachments {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: a.MIMEType, Data: a.Data},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	})
	elapsed := time.Since(start)
	if err != nil {
		ev := log.Warn().Err(err).Str("model", g.model).Int64("elapsed_ms", elapsed.Milliseconds())
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			ev = ev.Int("status_code", apiErr.Code)
		}
		ev.Msg("model call failed")
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	log.Debug().
		Str("model", g.model).
		Int("attachments", len(req.Attachments)).
		Int("response_chars", len(text)).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("model call finished")

	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
