package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

// Ranker orders one source's chunks by relevance to a query, most relevant first.
// It must return every input chunk exactly once.
type Ranker interface {
	Rank(ctx context.Context, query string, chunks []commonModels.Chunk) ([]commonModels.Chunk, error)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "with": {}, "does": {}, "did": {}, "do": {}, "about": {},
}

func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop || len([]rune(f)) < 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// KeywordRanker scores chunks with a BM25-style term weighting over the chunks
// of the one source being ranked.
type KeywordRanker struct{}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

func (KeywordRanker) Rank(_ context.Context, query string, chunks []commonModels.Chunk) ([]commonModels.Chunk, error) {
	return rankByScore(chunks, KeywordScores(query, chunks)), nil
}

// KeywordScores returns one score per chunk, aligned with chunks.
func KeywordScores(query string, chunks []commonModels.Chunk) []float64 {
	scores := make([]float64, len(chunks))
	queryTerms := terms(query)
	if len(queryTerms) == 0 || len(chunks) == 0 {
		return scores
	}

	docs := make([]map[string]int, len(chunks))
	lengths := make([]int, len(chunks))
	df := map[string]int{}
	total := 0
	for i, c := range chunks {
		tf := map[string]int{}
		words := terms(c.Text + " " + strings.Join(c.HeadingChain, " "))
		for _, w := range words {
			tf[w]++
		}
		for w := range tf {
			df[w]++
		}
		docs[i] = tf
		lengths[i] = len(words)
		total += len(words)
	}
	avg := float64(total) / float64(len(chunks))
	if avg == 0 {
		avg = 1
	}

	n := float64(len(chunks))
	for i := range chunks {
		for _, q := range queryTerms {
			f := float64(docs[i][q])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[q])+0.5)/(float64(df[q])+0.5))
			scores[i] += idf * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(lengths[i])/avg))
		}
	}
	return scores
}

// rankByScore sorts by descending score; ties keep document order.
func rankByScore(chunks []commonModels.Chunk, scores []float64) []commonModels.Chunk {
	idx := make([]int, len(chunks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	out := make([]commonModels.Chunk, len(chunks))
	for i, j := range idx {
		out[i] = chunks[j]
	}
	return out
}
