// Package generate implements the text-generation collaborator on top of the
// Google Gemini API. It is used both for initial design generation and for
// corrections; the client is stateless across calls.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/wlmoi/chipster/internal/config"
	"github.com/wlmoi/chipster/internal/logging"
)

// Client wraps the Gemini API behind the pipeline's generator contract.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewClient creates a Gemini-backed generator from configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY)")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-pro"
	}

	return &Client{
		client:      gc,
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     config.Duration(cfg.Timeout, 5*time.Minute),
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// Apply the client timeout when the caller did not set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logging.Get(logging.CategoryGenerate)
	log.Debugf("completion request: model=%s system_len=%d user_len=%d",
		c.model, len(systemPrompt), len(userPrompt))

	gcfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if systemPrompt != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), gcfg)
	if err != nil {
		log.Errorf("completion failed after %s: %v", time.Since(start), err)
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}

	log.Debugf("completion ok: %d bytes in %s", len(text), time.Since(start))
	return text, nil
}
