package llm

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	base
}

// NewGeminiClient creates a Gemini client. Empty BaseURL and Model fall back
// to the public endpoint and gemini-2.0-flash.
func NewGeminiClient(cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	b, err := newBase(cfg, logger, "gemini")
	if err != nil {
		return nil, err
	}
	return &GeminiClient{base: b}, nil
}

// GenerateText returns the first text part of the first candidate.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	model := c.cfg.Model

	payload := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, url.PathEscape(model), url.QueryEscape(c.cfg.APIKey))

	var resp geminiGenerateResponse
	if err := c.postJSON(ctx, endpoint, nil, payload, &resp); err != nil {
		c.logger.Error("gemini generateText failed",
			zap.String("model", model),
			zap.Error(err),
		)
		return "", err
	}

	text := firstText(resp)
	if text == "" {
		c.logger.Warn("gemini returned no text",
			zap.String("model", model),
			zap.Bool("has_candidates", len(resp.Candidates) > 0),
		)
		return "", ErrNoText
	}

	c.logger.Debug("gemini generateText completed",
		zap.String("model", model),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func firstText(resp geminiGenerateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[0].Text
}
