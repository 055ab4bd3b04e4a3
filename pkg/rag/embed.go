package rag

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length this embedder produces.
	Dimension() int
}

const (
	defaultEmbedModel     = "text-embedding-3-small"
	defaultEmbedDimension = 1536
)

// EmbedderOption configures NewOpenAIEmbedder.
type EmbedderOption func(*OpenAIEmbedder)

// WithEmbedModel overrides the embedding model name (or Azure deployment).
func WithEmbedModel(model string) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.model = model }
}

// WithEmbedDimension overrides the requested vector dimension.
func WithEmbedDimension(dim int) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.dim = dim }
}

// WithEmbedBaseURL points the embedder at a non-default API endpoint.
func WithEmbedBaseURL(baseURL string) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.baseURL = baseURL }
}

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dim     int
	baseURL string
}

// NewOpenAIEmbedder builds an embedder with the given API key.
func NewOpenAIEmbedder(apiKey string, opts ...EmbedderOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("rag: embedder API key is required")
	}
	e := &OpenAIEmbedder{
		model: defaultEmbedModel,
		dim:   defaultEmbedDimension,
	}
	for _, opt := range opts {
		opt(e)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if e.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(e.baseURL))
	}
	e.client = openai.NewClient(reqOpts...)
	return e, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Dimensions:     openai.Int(int64(e.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: embeddings API: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("rag: embeddings API returned no data")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}
