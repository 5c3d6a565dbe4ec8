package analysis

import (
	"context"
	"strings"
	"sync"

	"github.com/akolanti/GoAnalyze/internal/data/store"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
)

// MockLLM tells map calls from the reduce call by the prompt shape.
type MockLLM struct {
	OnMap    func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error)
	OnReduce func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error)

	mu          sync.Mutex
	MapCalls    int
	ReduceCalls int
	ReduceUsers []string
}

func (m *MockLLM) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	m.mu.Lock()
	isMap := strings.HasPrefix(req.User, "Batch ")
	if isMap {
		m.MapCalls++
	} else {
		m.ReduceCalls++
		m.ReduceUsers = append(m.ReduceUsers, req.User)
	}
	m.mu.Unlock()

	if isMap {
		if m.OnMap != nil {
			return m.OnMap(ctx, req)
		}
		return llm.Completion{Text: "summary of " + strings.SplitN(req.User, "\n", 2)[0]}, nil
	}
	if m.OnReduce != nil {
		return m.OnReduce(ctx, req)
	}
	return llm.Completion{Text: "final report"}, nil
}

func (m *MockLLM) StreamComplete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	panic("not used by the job engine")
}

func (m *MockLLM) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MapCalls, m.ReduceCalls
}

type MockQueryService struct {
	OnQuery func(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error)
	Calls   int
}

func (m *MockQueryService) Query(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error) {
	m.Calls++
	if m.OnQuery != nil {
		return m.OnQuery(ctx, userId, projectId, req)
	}
	return commonModels.QueryResult{Summary: "inline", NoResults: true}, nil
}

func (m *MockQueryService) AnalyzeDocument(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
	panic("not used by the job engine")
}

type MockEnqueuer struct {
	OnEnqueue func(ctx context.Context, jobId string) error
	Ids       []string
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, jobId string) error {
	m.Ids = append(m.Ids, jobId)
	if m.OnEnqueue != nil {
		return m.OnEnqueue(ctx, jobId)
	}
	return nil
}

// progressRecorder keeps every UpdateProgress value on top of the in-memory store.
type progressRecorder struct {
	*store.InMemoryJobStore
	mu       sync.Mutex
	progress []int
}

func (p *progressRecorder) UpdateProgress(ctx context.Context, jobId string, completed int) error {
	p.mu.Lock()
	p.progress = append(p.progress, completed)
	p.mu.Unlock()
	return p.InMemoryJobStore.UpdateProgress(ctx, jobId, completed)
}
