// Package genai adapts Genkit generation to the narrow surface the
// response pipeline needs: single-shot completion and streamed
// generation with per-call parameters.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	gai "google.golang.org/genai"

	"github.com/travo-ai/travo/internal/log"
)

// ErrProvider wraps failures from the model provider. Callers decide
// the fallback; the adapter never retries on its own.
var ErrProvider = errors.New("model provider error")

// Params are the per-call generation knobs. Each pipeline stage owns
// its own values; there is no global default temperature.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// StreamFunc receives one response fragment. Returning an error aborts
// the generation.
type StreamFunc func(ctx context.Context, fragment string) error

// Client generates text through a Genkit instance.
// Safe for concurrent use by multiple goroutines.
type Client struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// New creates a Client bound to a provider-qualified model name
// (e.g. "googleai/gemini-2.5-flash").
func New(g *genkit.Genkit, model string, logger log.Logger) *Client {
	return &Client{g: g, model: model, logger: logger}
}

// Complete runs a single-shot generation and returns the full text.
func (c *Client) Complete(ctx context.Context, system string, msgs []*ai.Message, p Params) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithSystem(system),
		ai.WithMessages(msgs...),
		ai.WithConfig(c.config(p)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return resp.Text(), nil
}

// Stream runs a streamed generation, invoking fn once per fragment, and
// returns the accumulated text. An error from fn (including context
// cancellation surfaced through it) aborts the generation and is
// returned unwrapped so callers can distinguish their own abort from a
// provider failure.
func (c *Client) Stream(ctx context.Context, system string, msgs []*ai.Message, p Params, fn StreamFunc) (string, error) {
	var sb strings.Builder
	var cbErr error

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithSystem(system),
		ai.WithMessages(msgs...),
		ai.WithConfig(c.config(p)),
		ai.WithStreaming(func(cctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			sb.WriteString(text)
			if err := fn(cctx, text); err != nil {
				cbErr = err
				return err
			}
			return nil
		}),
	)
	if err != nil {
		if cbErr != nil {
			return sb.String(), cbErr
		}
		return sb.String(), fmt.Errorf("%w: %v", ErrProvider, err)
	}

	// Some providers deliver the final text only on the response.
	// Forward it as a single fragment so callers see every byte that
	// gets returned.
	if sb.Len() == 0 {
		text := resp.Text()
		if text != "" {
			if err := fn(ctx, text); err != nil {
				return "", err
			}
		}
		return text, nil
	}
	return sb.String(), nil
}

func (c *Client) config(p Params) *gai.GenerateContentConfig {
	cfg := &gai.GenerateContentConfig{
		Temperature: gai.Ptr(p.Temperature),
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	return cfg
}
