package handlers

import (
	"context"

	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
)

type MockAnalyzer struct {
	OnSubmit func(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error)
	OnStatus func(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error)
	OnLatest func(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error)
}

func (m *MockAnalyzer) Submit(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error) {
	return m.OnSubmit(ctx, userId, projectId, req)
}

func (m *MockAnalyzer) Status(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error) {
	return m.OnStatus(ctx, userId, jobId)
}

func (m *MockAnalyzer) Latest(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error) {
	return m.OnLatest(ctx, userId, projectId)
}

type MockQueryService struct {
	OnQuery           func(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error)
	OnAnalyzeDocument func(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error)
}

func (m *MockQueryService) Query(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error) {
	return m.OnQuery(ctx, userId, projectId, req)
}

func (m *MockQueryService) AnalyzeDocument(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
	return m.OnAnalyzeDocument(ctx, userId, projectId, sourceId, instruction)
}

type MockSources struct {
	OnRegister func(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error)
	OnResolve  func(ctx context.Context, userId string, projectId string, sourceIds []string) ([]commonModels.Source, error)
}

func (m *MockSources) Register(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error) {
	return m.OnRegister(ctx, src, raw)
}

func (m *MockSources) ResolveSources(ctx context.Context, userId string, projectId string, sourceIds []string) ([]commonModels.Source, error) {
	return m.OnResolve(ctx, userId, projectId, sourceIds)
}

type MockQueryLog struct {
	OnRecentQueries func(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error)
}

func (m *MockQueryLog) RecentQueries(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error) {
	return m.OnRecentQueries(ctx, userId, limit)
}
