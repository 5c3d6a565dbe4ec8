package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/internal/rag/retrieval"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// Service is the synchronous side of the pipeline. It keeps no state between calls:
// every request reads the current corpus snapshot and nothing is cached.
type Service interface {
	Query(ctx context.Context, userId string, projectId string, req QueryRequest) (commonModels.QueryResult, error)
	AnalyzeDocument(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error)
}

type service struct {
	loader      *corpus.Loader
	retriever   *retrieval.Retriever
	llmProvider llm.Provider
	queryLog    analysisModel.QueryLogStore
	budget      budget.TokenBudget
	estimator   budget.Estimator
	logger      *logger_i.Logger
}

func NewService(loader *corpus.Loader, retriever *retrieval.Retriever, provider llm.Provider, queryLog analysisModel.QueryLogStore) Service {
	if retriever == nil {
		retriever = retrieval.NewRetriever(nil)
	}
	return &service{
		loader:      loader,
		retriever:   retriever,
		llmProvider: provider,
		queryLog:    queryLog,
		budget:      budget.DefaultTokenBudget(),
		estimator:   budget.WordEstimator{},
		logger:      logger_i.NewLogger("rag_service"),
	}
}

func (s *service) Query(ctx context.Context, userId string, projectId string, req QueryRequest) (commonModels.QueryResult, error) {
	if err := ValidateQuery(req); err != nil {
		return commonModels.QueryResult{}, err
	}
	sources, err := s.loader.ResolveSources(ctx, userId, projectId, req.SourceIds)
	if errors.Is(err, corpus.ErrUnknownSource) {
		return commonModels.QueryResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// past validation every outcome leaves a record
	start := time.Now()
	record := analysisModel.QueryRecord{
		Id:          utils.GetNewUUID(),
		UserId:      userId,
		ProjectId:   projectId,
		TraceId:     logger_i.TraceId(ctx),
		Query:       strings.TrimSpace(req.Query),
		SourceCount: len(sources),
		CreatedAt:   start.UTC(),
	}
	result, err := s.runQuery(ctx, record.Query, sources, err, &record)
	s.saveRecord(ctx, record, start, result, err)
	return result, err
}

func (s *service) runQuery(ctx context.Context, query string, sources []commonModels.Source, resolveErr error, record *analysisModel.QueryRecord) (commonModels.QueryResult, error) {
	log := s.logger.FromContext(ctx)
	if resolveErr != nil {
		log.Error("Could not resolve sources", "error", resolveErr)
		return commonModels.QueryResult{}, resolveErr
	}

	ctx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	groups, err := s.executeLoadStep(ctx, log, sources)
	if err != nil {
		return commonModels.QueryResult{}, err
	}
	if len(groups) == 0 {
		return commonModels.QueryResult{}, ErrNoUsableContent
	}

	selection := s.executeSelectStep(ctx, log, query, groups)
	if len(selection.SelectedChunks) == 0 {
		return commonModels.QueryResult{}, ErrNoUsableContent
	}
	record.PromptTokens = selection.TotalTokens

	completion, err := s.executeLLMStep(ctx, log, llm.CompletionRequest{
		System:     querySystemPrompt,
		User:       buildQueryPrompt(query, selection.SelectedChunks),
		MaxTokens:  config.QueryMaxOutputTokens,
		JSONSchema: QuerySchema(),
	})
	if err != nil {
		return commonModels.QueryResult{}, err
	}
	if completion.InputTokens > 0 {
		record.PromptTokens = completion.InputTokens
	}
	record.OutputTokens = completion.OutputTokens

	result, err := ParseQueryOutput(completion.Text)
	if err != nil {
		log.Error("Unreadable model output", "error", err)
		return commonModels.QueryResult{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return attribute(result, selection.SelectedChunks), nil
}

func (s *service) saveRecord(ctx context.Context, record analysisModel.QueryRecord, start time.Time, result commonModels.QueryResult, err error) {
	record.DurationMs = time.Since(start).Milliseconds()
	record.ResultCount = len(result.Snippets)
	switch {
	case err == nil:
		record.Status = analysisModel.QueryStatusOK
	case errors.Is(err, ErrNoUsableContent):
		record.Status = analysisModel.QueryStatusNoContent
		record.Error = err.Error()
	default:
		record.Status = analysisModel.QueryStatusFailed
		record.Error = err.Error()
	}
	metrics.CaptureQueryOutcome(string(record.Status))

	if s.queryLog == nil {
		return
	}
	// the record outlives a cancelled request
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := s.queryLog.SaveQuery(saveCtx, record); saveErr != nil {
		s.logger.FromContext(ctx).Error("Failed to save query record", "error", saveErr)
	}
}

func (s *service) AnalyzeDocument(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
	if err := ValidateInstruction(instruction); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sourceId) == "" {
		return nil, fmt.Errorf("%w: sourceId is required", ErrValidation)
	}
	log := s.logger.FromContext(ctx).With("sourceId", sourceId)

	sources, err := s.loader.ResolveSources(ctx, userId, projectId, []string{sourceId})
	if err != nil {
		if errors.Is(err, corpus.ErrUnknownSource) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}
	groups, err := s.executeLoadStep(ctx, log, sources)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrNoUsableContent
	}

	selection := s.executeSelectStep(ctx, log, instruction, groups)
	if selection.Truncated {
		log.Debug("Document trimmed to budget", "chunks", len(selection.SelectedChunks), "tokens", selection.TotalTokens)
	}
	return s.llmProvider.StreamComplete(ctx, llm.CompletionRequest{
		System:    documentSystemPrompt,
		User:      buildDocumentPrompt(instruction, selection.SelectedChunks),
		MaxTokens: config.QueryMaxOutputTokens,
	})
}
