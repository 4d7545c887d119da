// Package ollama provides an Embedder backed by a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 30 * time.Second

	// maxPromptBytes guards against oversized chunks killing the
	// embedding endpoint; longer texts are truncated.
	maxPromptBytes = 2048

	maxRetries = 3
)

// Config configures the Ollama embedder.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Embedder requests embeddings from an Ollama server. The vector
// dimension is model-dependent and learned from the first response.
type Embedder struct {
	client    *api.Client
	model     string
	timeout   time.Duration
	dimension int
}

// New creates the embedder. The server is not contacted until the first
// Embed call.
func New(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	return &Embedder{
		client:  api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// Prepare is a no-op; the remote model needs no corpus pass.
func (e *Embedder) Prepare(corpus []string) error { return nil }

// Dimension returns the vector dimensionality; zero before the first
// successful Embed.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the embedding vector for the text, retrying transient
// failures with exponential backoff.
func (e *Embedder) Embed(text string) ([]float64, error) {
	if len(text) > maxPromptBytes {
		text = text[:maxPromptBytes]
	}
	req := &api.EmbeddingRequest{Model: e.model, Prompt: text}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		resp, err := e.client.Embeddings(ctx, req)
		cancel()
		if err == nil {
			if e.dimension == 0 {
				e.dimension = len(resp.Embedding)
			}
			return resp.Embedding, nil
		}
		lastErr = err
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries, lastErr)
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
