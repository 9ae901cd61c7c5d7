// Package embeddings turns document text into vectors using the OpenAI
// embeddings endpoint (or any API-compatible service).
package embeddings

import (
	"context"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client embeds a batch of texts. The returned slice is positionally
// aligned with texts: vectors[i] belongs to texts[i]. A service that
// answers with fewer vectors than inputs yields a shorter slice; callers
// must compare lengths before pairing.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Option configures the client.
type Option func(*config)

type config struct {
	baseURL    string
	dimensions int
}

// WithBaseURL points the client at an API-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithDimensions requests vectors of a fixed length (text-embedding-3 models).
func WithDimensions(n int) Option {
	return func(c *config) { c.dimensions = n }
}

type openAIClient struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewClient creates an embeddings client for the given model.
func NewClient(apiKey, model string, opts ...Option) Client {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &openAIClient{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		dimensions: cfg.dimensions,
	}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "embeddings: create (%d texts)", len(texts))
	}

	vectors, err := alignByIndex(resp.Data, len(texts))
	if err != nil {
		return nil, err
	}

	zap.L().Debug("embeddings: batch embedded",
		zap.String("model", c.model),
		zap.Int("texts", len(texts)),
		zap.Int("vectors", len(vectors)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
	)
	return vectors, nil
}

// alignByIndex orders the service's items by their declared index. Indexes
// must be unique and within the request; gaps truncate the result at the
// first missing position.
func alignByIndex(items []openai.Embedding, requested int) ([][]float32, error) {
	sorted := make([]openai.Embedding, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := make([][]float32, 0, len(sorted))
	for i, item := range sorted {
		if item.Index < 0 || int(item.Index) >= requested {
			return nil, eris.Errorf("embeddings: index %d out of range for %d inputs", item.Index, requested)
		}
		if i > 0 && item.Index == sorted[i-1].Index {
			return nil, eris.Errorf("embeddings: duplicate index %d", item.Index)
		}
		if int(item.Index) != i {
			break
		}
		out = append(out, toFloat32(item.Embedding))
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
