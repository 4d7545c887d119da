// Package labeler names change clusters. The ollama implementation asks a
// local LLM for a short theme title; the keyword implementation is a
// deterministic offline fallback.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Defaults for the Ollama labeler.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3"
	DefaultTimeout = 60 * time.Second
)

// Config configures the Ollama labeler.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama labels clusters by prompting a chat model.
type Ollama struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewOllama creates the LLM-backed labeler.
func NewOllama(cfg Config) (*Ollama, error) {
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
	return &Ollama{
		client:  api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// LabelCluster prompts the model with the exemplar snippets and returns
// the cleaned title.
func (o *Ollama) LabelCluster(exemplars []string) (string, error) {
	if len(exemplars) == 0 {
		return "", errors.New("no exemplars to label")
	}
	prompt := BuildPrompt(exemplars)

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var reply strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("label request: %w", err)
	}
	title := CleanTitle(reply.String())
	if title == "" {
		return "", errors.New("model returned empty title")
	}
	return title, nil
}

// BuildPrompt renders the fixed labeling prompt for a set of exemplar
// change snippets.
func BuildPrompt(exemplars []string) string {
	var b strings.Builder
	b.WriteString("Here are example change snippets between the old and new revisions of a technical specification:\n\n")
	for _, ex := range exemplars {
		b.WriteString("- ")
		b.WriteString(ex)
		b.WriteString("\n\n")
	}
	b.WriteString("Please give this group a concise title (3-5 words) describing its theme.")
	return b.String()
}

// CleanTitle strips surrounding whitespace and quote characters from a
// model-produced title.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”‘’`)
	return strings.TrimSpace(s)
}
