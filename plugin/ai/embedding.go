package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/tastevec/plugin/ai/vector"
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// Model returns the model name recorded next to stored vectors.
	Model() string
}

// embeddingClient is the subset of *openai.Client used for embeddings.
type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type embeddingService struct {
	client     embeddingClient
	model      string
	dimensions int
	// sendDimensions is false for providers that reject the dimensions field.
	sendDimensions bool
}

// NewEmbeddingService creates a new EmbeddingService without contacting the provider.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	var clientConfig openai.ClientConfig
	sendDimensions := true

	switch cfg.Provider {
	case "siliconflow", "openai":
		// SiliconFlow is compatible with OpenAI API
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}

	case "ollama":
		clientConfig = openai.DefaultConfig("ollama")
		clientConfig.BaseURL = cfg.BaseURL
		sendDimensions = false

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return newEmbeddingService(openai.NewClientWithConfig(clientConfig), cfg, sendDimensions), nil
}

func newEmbeddingService(client embeddingClient, cfg *EmbeddingConfig, sendDimensions bool) *embeddingService {
	return &embeddingService{
		client:         client,
		model:          cfg.Model,
		dimensions:     cfg.Dimensions,
		sendDimensions: sendDimensions,
	}
}

// Initialize builds the embedding service and probes the provider once so a
// misconfigured model or dimension fails at startup instead of on first use.
func Initialize(ctx context.Context, cfg *EmbeddingConfig) (EmbeddingService, error) {
	service, err := NewEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}
	return probe(ctx, service)
}

func probe(ctx context.Context, service EmbeddingService) (EmbeddingService, error) {
	if _, err := service.Embed(ctx, "ping"); err != nil {
		return nil, fmt.Errorf("embedding provider probe failed: %w", err)
	}
	slog.Info("embedding provider ready",
		slog.String("model", service.Model()),
		slog.Int("dimensions", service.Dimensions()),
	)
	return service, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	}
	if s.sendDimensions {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// Providers may return data out of order; Index refers to the input position.
	vectors := make([][]float32, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) || vectors[idx] != nil {
			idx = i
		}
		if len(data.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for input %d", idx)
		}
		if s.dimensions > 0 && len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: provider returned %d, expected %d", vector.ErrDimensionMismatch, len(data.Embedding), s.dimensions)
		}
		vectors[idx] = data.Embedding
	}

	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

func (s *embeddingService) Model() string {
	return s.model
}
