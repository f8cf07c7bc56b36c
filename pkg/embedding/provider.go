// Package embedding turns idea text into vectors through an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Provider produces one vector per input string, in input order.
type Provider interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
	// Model identifies the vectors produced; stored embeddings from another
	// model are considered stale.
	Model() string
}

// Config holds configuration for an OpenAI-compatible provider.
type Config struct {
	BaseURL string        // e.g. "https://api.openai.com/v1"
	Model   string        // e.g. "text-embedding-3-small"
	APIKey  string        // optional for local endpoints
	Timeout time.Duration // per request, default 30s
}

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider validates cfg and builds a provider.
func NewOpenAIProvider(cfg *Config, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("embedding"),
	}, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// CreateEmbeddings embeds all inputs in one request. The response is
// reordered by index so callers can zip results with inputs.
func (p *OpenAIProvider) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, &Error{Kind: ErrorKindInput, Model: p.model, Cause: fmt.Errorf("input %d is empty", i)}
		}
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: inputs,
	})
	if err != nil {
		classified := classifyError(err, p.model)
		p.logger.Warn("Embedding request failed",
			zap.String("kind", string(classified.Kind)),
			zap.Int("status", classified.StatusCode),
			zap.Int("inputs", len(inputs)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classified
	}

	if len(resp.Data) != len(inputs) {
		return nil, &Error{
			Kind:  ErrorKindResponse,
			Model: p.model,
			Cause: fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data)),
		}
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil || len(d.Embedding) == 0 {
			return nil, &Error{
				Kind:  ErrorKindResponse,
				Model: p.model,
				Cause: fmt.Errorf("invalid embedding at index %d", d.Index),
			}
		}
		out[d.Index] = d.Embedding
	}

	p.logger.Debug("Embedding request completed",
		zap.Int("inputs", len(inputs)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

// ContentHash fingerprints the text an embedding was computed from.
func ContentHash(title string, problemStatement *string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(title)))
	h.Write([]byte{0})
	if problemStatement != nil {
		h.Write([]byte(strings.TrimSpace(*problemStatement)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsStale reports whether a stored embedding no longer matches the idea text
// or the current model. An empty storedHash means nothing is stored yet.
func IsStale(storedHash, storedModel, currentHash, currentModel string) bool {
	return storedHash == "" || storedHash != currentHash || storedModel != currentModel
}
