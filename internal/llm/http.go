package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pokeproxy/internal/retry"

	"go.uber.org/zap"
)

const maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload

// base holds what every provider client shares.
type base struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// postJSON sends payload to url with retries and decodes a 2xx body into out.
func (b *base) postJSON(parentCtx context.Context, url string, header http.Header, payload, out any) error {
	// Per-request timeout (0 = only use parentCtx)
	var ctx context.Context
	var cancel context.CancelFunc
	if b.cfg.UpstreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, b.cfg.UpstreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(parentCtx)
	}
	defer cancel()

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("llmclient: marshal request: %w", err)
	}
	if len(bodyBytes) > maxRequestSize {
		return fmt.Errorf(
			"llmclient: request too large (%d bytes, max %d)",
			len(bodyBytes), maxRequestSize,
		)
	}

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("llmclient: build HTTP request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return b.httpClient.Do(httpReq)
	}

	resp, err := retry.Do(ctx, b.logger, retry.Policy{
		MaxRetries:  b.cfg.MaxRetries,
		BaseBackoff: b.cfg.BaseBackoff,
	}, doOnce)
	if err != nil {
		return fmt.Errorf("llmclient: %w", err)
	}
	defer resp.Body.Close()

	// Handle non-2xx responses
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		// Try to parse structured error
		var perr providerErrorResponse
		if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
			kind := perr.Error.Type
			if kind == "" {
				kind = perr.Error.Status
			}
			b.logger.Error("llm provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("error_type", kind),
				zap.String("error_message", perr.Error.Message),
			)
			return fmt.Errorf("llmclient: upstream %d: %s (%s)",
				resp.StatusCode, perr.Error.Message, kind)
		}

		// Fallback to raw body
		b.logger.Error("llm upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return fmt.Errorf("llmclient: upstream %d: %s",
			resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llmclient: decode upstream response: %w", err)
	}
	return nil
}

// Close releases resources held by the client.
func (b *base) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
