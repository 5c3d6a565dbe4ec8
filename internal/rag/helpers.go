package rag

import (
	"context"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

func (s *service) executeLoadStep(ctx context.Context, log *logger_i.Logger, sources []commonModels.Source) ([]commonModels.SourceChunks, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("content_load", time.Since(start)) }()

	groups, err := s.loader.LoadChunks(ctx, sources)
	if err != nil {
		log.Error("Loading source content failed", "error", err)
		return nil, err
	}
	log.Debug("Loaded sources", "requested", len(sources), "usable", len(groups))
	return groups, nil
}

// executeSelectStep ranks each source, spreads the quota across sources, then fits the budget.
func (s *service) executeSelectStep(ctx context.Context, log *logger_i.Logger, query string, groups []commonModels.SourceChunks) budget.BudgetResult {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunk_selection", time.Since(start)) }()

	ranked := s.retriever.RankSources(ctx, query, groups)
	candidates := budget.Distribute(ranked, config.QueryChunkQuota)
	selection := budget.SelectWith(candidates, s.budget, s.estimator)
	log.Debug("Selected chunks", "candidates", len(candidates), "selected", len(selection.SelectedChunks),
		"tokens", selection.TotalTokens, "truncated", selection.Truncated)
	return selection
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, req llm.CompletionRequest) (llm.Completion, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	completion, err := s.llmProvider.Complete(ctx, req)
	if err != nil {
		log.Error("Completion failed", "error", err)
		return llm.Completion{}, llm.Unavailable("completion", err)
	}
	return completion, nil
}
