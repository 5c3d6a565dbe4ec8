package budget

import (
	"crypto/sha256"
	"sort"
	"strconv"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

// TokenBudget is supplied per call; zero fields fall back to defaults.
type TokenBudget struct {
	MaxTotalTokens      int
	SystemPromptReserve int
	ResponseReserve     int
}

func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MaxTotalTokens:      config.DefaultMaxContextTokens,
		SystemPromptReserve: config.SystemPromptReserveTokens,
		ResponseReserve:     config.ResponseReserveTokens,
	}
}

// Available is what is left for context chunks once reserves are taken out.
func (b TokenBudget) Available() int {
	if b.MaxTotalTokens <= 0 {
		b = DefaultTokenBudget()
	}
	left := b.MaxTotalTokens - b.SystemPromptReserve - b.ResponseReserve
	if left < 0 {
		return 0
	}
	return left
}

type BudgetResult struct {
	SelectedChunks []commonModels.Chunk
	TotalTokens    int
	Truncated      bool
}

// ChunkKey identifies a chunk by source and position.
func ChunkKey(c commonModels.Chunk) string {
	return c.SourceId + "#" + strconv.Itoa(c.DocumentPosition)
}

func contentKey(c commonModels.Chunk) [sha256.Size]byte {
	return sha256.Sum256([]byte(c.Text))
}

// Dedupe drops repeats by (source, position) or identical text, keeping the first (most relevant) hit.
func Dedupe(candidates []commonModels.Chunk) []commonModels.Chunk {
	seenIds := make(map[string]struct{}, len(candidates))
	seenText := make(map[[sha256.Size]byte]struct{}, len(candidates))
	out := make([]commonModels.Chunk, 0, len(candidates))
	for _, c := range candidates {
		id := ChunkKey(c)
		if _, ok := seenIds[id]; ok {
			continue
		}
		h := contentKey(c)
		if _, ok := seenText[h]; ok {
			continue
		}
		seenIds[id] = struct{}{}
		seenText[h] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Select picks the most relevant chunks that fit the budget, then restores document order.
// candidates must be in relevance order.
func Select(candidates []commonModels.Chunk, b TokenBudget) BudgetResult {
	return SelectWith(candidates, b, nil)
}

func SelectWith(candidates []commonModels.Chunk, b TokenBudget, est Estimator) BudgetResult {
	est = orDefault(est)
	limit := b.Available()

	var result BudgetResult
	for _, c := range Dedupe(candidates) {
		tokens := c.EstimatedTokens
		if tokens <= 0 {
			tokens = est.EstimateTokens(c.Text)
			c.EstimatedTokens = tokens
		}
		if result.TotalTokens+tokens > limit {
			// keep walking: a smaller, less relevant chunk may still fit
			result.Truncated = true
			continue
		}
		result.TotalTokens += tokens
		result.SelectedChunks = append(result.SelectedChunks, c)
	}

	sort.SliceStable(result.SelectedChunks, func(i, j int) bool {
		a, b := result.SelectedChunks[i], result.SelectedChunks[j]
		if a.SourceId != b.SourceId {
			return a.SourceId < b.SourceId
		}
		return a.DocumentPosition < b.DocumentPosition
	})
	return result
}
