package retrieval

import (
	"context"
	"fmt"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag/embedding"
)

// SemanticRanker orders chunks by cosine similarity between query and chunk embeddings.
// Vectors are computed per request and dropped afterwards.
type SemanticRanker struct {
	Embedder embedding.Embedder
}

func (s SemanticRanker) Rank(ctx context.Context, query string, chunks []commonModels.Chunk) ([]commonModels.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	queryVector, err := s.Embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.Embedder.BatchEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	scores := make([]float64, len(chunks))
	for i, v := range vectors {
		scores[i] = embedding.CosineSimilarity(queryVector, v)
	}
	return rankByScore(chunks, scores), nil
}
