package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/customHttpClient"
	"github.com/akolanti/GoAnalyze/internal/rag/embedding"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/avast/retry-go/v4"
	"google.golang.org/genai"
)

const (
	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"

	rateLimitAttempts = 2
	rateLimitDelay    = 5 * time.Second
)

var dimension int32 = config.EmbeddingOutputDimensionality

type client struct {
	genAi  *genai.Client
	model  string
	logger *logger_i.Logger
	delay  time.Duration
}

var _ embedding.Embedder = (*client)(nil)

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apiKey string) (embedding.Embedder, error) {
	logger := logger_i.NewLogger("google_embedding")
	if apiKey == "" {
		return nil, errors.New("embedding api key is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.NewClient(0),
	})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	logger.Info("Google Embedding client created", "model", modelName)
	return &client{genAi: c, model: modelName, logger: logger, delay: rateLimitDelay}, nil
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.doCall(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	results := make([][]float32, 0, len(chunks))
	for _, batch := range splitBatches(chunks) {
		vectors, err := c.doCall(ctx, batch, taskDocument)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(vectors))
		}
		results = append(results, vectors...)
	}
	return results, nil
}

// doCall retries only on rate limiting; every other failure is returned at once.
func (c *client) doCall(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	log := c.logger.FromContext(ctx)
	var vectors [][]float32
	err := retry.Do(
		func() error {
			res, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts),
				&genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: taskType})
			if err != nil {
				return err
			}
			vectors = vectors[:0]
			for _, e := range res.Embeddings {
				vectors = append(vectors, e.Values)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(rateLimitAttempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return doRetry(err, log) }),
	)
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	return vectors, nil
}
