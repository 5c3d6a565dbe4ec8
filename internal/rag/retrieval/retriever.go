package retrieval

import (
	"context"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// Retriever combines the keyword ranker with an optional semantic one.
type Retriever struct {
	Keyword  Ranker
	Semantic Ranker
}

func NewRetriever(semantic Ranker) *Retriever {
	return &Retriever{Keyword: KeywordRanker{}, Semantic: semantic}
}

// Rank never fails: a semantic ranking error degrades to keyword order.
func (r *Retriever) Rank(ctx context.Context, query string, chunks []commonModels.Chunk) []commonModels.Chunk {
	keyword := r.Keyword
	if keyword == nil {
		keyword = KeywordRanker{}
	}
	byKeyword, err := keyword.Rank(ctx, query, chunks)
	if err != nil {
		byKeyword = chunks
	}
	if r.Semantic == nil {
		return byKeyword
	}

	bySemantic, err := r.Semantic.Rank(ctx, query, chunks)
	if err != nil {
		logger_i.NewLogger("retrieval").FromContext(ctx).Warn("Semantic ranking failed, using keyword order", "error", err)
		return byKeyword
	}
	return Merge(byKeyword, bySemantic)
}

// RankSources ranks each source's chunks independently, keeping source order.
func (r *Retriever) RankSources(ctx context.Context, query string, groups []commonModels.SourceChunks) []commonModels.SourceChunks {
	out := make([]commonModels.SourceChunks, len(groups))
	for i, g := range groups {
		out[i] = commonModels.SourceChunks{Source: g.Source, Chunks: r.Rank(ctx, query, g.Chunks)}
	}
	return out
}

// Merge interleaves ranked lists and drops repeats, so each strategy's best hits surface early.
func Merge(lists ...[]commonModels.Chunk) []commonModels.Chunk {
	seen := map[string]struct{}{}
	var out []commonModels.Chunk
	for i := 0; ; i++ {
		progressed := false
		for _, l := range lists {
			if i >= len(l) {
				continue
			}
			progressed = true
			key := budget.ChunkKey(l[i])
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, l[i])
		}
		if !progressed {
			return out
		}
	}
}
