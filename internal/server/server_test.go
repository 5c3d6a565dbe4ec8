package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/api"
	"github.com/akolanti/GoAnalyze/internal/data/store"
	"github.com/akolanti/GoAnalyze/internal/handlers"
	"github.com/akolanti/GoAnalyze/internal/mcpserver"
	"github.com/akolanti/GoAnalyze/internal/middleware"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers map prompts, reduce prompts and structured queries differently.
type scriptedLLM struct {
	mu    sync.Mutex
	calls []llm.CompletionRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	switch {
	case req.JSONSchema != nil:
		return llm.Completion{Text: `{"snippets":[{"content":"The budget is forty thousand euros.","sourceId":"plan","sourceTitle":"","sourceLocation":"","relevance":0.9}],"summary":"","noResults":false}`}, nil
	case strings.HasPrefix(req.User, "Batch "):
		return llm.Completion{Text: "batch summary"}, nil
	default:
		return llm.Completion{Text: "final report"}, nil
	}
}

func (s *scriptedLLM) StreamComplete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	out := make(chan llm.StreamEvent, 2)
	out <- llm.StreamEvent{Type: llm.StreamToken, Token: "streamed"}
	out <- llm.StreamEvent{Type: llm.StreamDone}
	close(out)
	return out, nil
}

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, jobId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, jobId)
	return nil
}

type app struct {
	router   http.Handler
	engine   *analysis.Engine
	enqueuer *recordingEnqueuer
}

func newApp(t *testing.T) *app {
	t.Helper()
	loader := corpus.NewLoader(store.InitInMemorySourceCatalog(), store.InitInMemoryContentStore())
	queryLog := store.InitQueryLogStore()
	provider := &scriptedLLM{}
	ragService := rag.NewService(loader, nil, provider, queryLog)
	jobs := store.InitInMemoryJobStore()
	enq := &recordingEnqueuer{}
	engine := analysis.NewEngine(analysis.EngineConfig{
		Jobs: jobs, RunLock: jobs, Loader: loader, Provider: provider, Query: ragService, Enqueuer: enq,
	})
	mcp, err := mcpserver.NewServer(ragService, engine)
	require.NoError(t, err)

	h := handlers.NewHandler(handlers.Deps{Analyzer: engine, Query: ragService, Sources: loader, QueryLog: queryLog})
	r := utils.NewRouter()
	Routes(r.Router, h, middleware.New(middleware.Config{NoAuthBypass: true}), mcp.Handler())
	return &app{router: r.Router, engine: engine, enqueuer: enq}
}

func (a *app) call(t *testing.T, user string, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", user)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.call(t, "", http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, a.call(t, "", http.MethodGet, "/metrics", nil).Code)
}

func TestRoutes_QueryFlow(t *testing.T) {
	a := newApp(t)

	rec := a.call(t, "alice", http.MethodPost, "/sources", api.SourceRequest{
		ProjectId: "p1", SourceId: "plan", Title: "Project plan", ContentType: "text",
		Content: "The budget is forty thousand euros.\n\nThe deadline is in March.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.call(t, "alice", http.MethodPost, "/query", api.QueryRequest{ProjectId: "p1", Query: "What is the budget?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var answer api.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&answer))
	require.Len(t, answer.Snippets, 1)
	assert.Equal(t, "Project plan", answer.Snippets[0].SourceTitle)

	// bob has no sources in p1, so nothing is usable for him
	rec = a.call(t, "bob", http.MethodPost, "/query", api.QueryRequest{ProjectId: "p1", Query: "What is the budget?"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var log api.QueryLogResponse
	rec = a.call(t, "alice", http.MethodGet, "/queries", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&log))
	require.Len(t, log.Queries, 1)
	assert.Equal(t, 1, log.Queries[0].ResultCount)

	rec = a.call(t, "alice", http.MethodPost, "/analyze", api.AnalyzeRequest{ProjectId: "p1", Instruction: "What is the budget?"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, a.enqueuer.ids)
}

func TestRoutes_JobFlow(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 2; i++ {
		rec := a.call(t, "alice", http.MethodPost, "/sources", api.SourceRequest{
			ProjectId: "p1", SourceId: fmt.Sprintf("big-%d", i), Title: "Transcript", ContentType: "text",
			Content: strings.Repeat("interview notes about pricing. ", 2000),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := a.call(t, "alice", http.MethodPost, "/analyze", api.AnalyzeRequest{ProjectId: "p1", Instruction: "List every pricing theme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created api.InitJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.Equal(t, []string{created.JobId}, a.enqueuer.ids)

	rec = a.call(t, "alice", http.MethodGet, created.StatusURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending api.JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pending))
	assert.Equal(t, "pending", pending.Status)

	require.NoError(t, a.engine.Run(context.Background(), created.JobId))

	rec = a.call(t, "alice", http.MethodGet, "/job/latest?projectId=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var done api.JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&done))
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, done.TotalBatches, done.CompletedBatches)
	require.NotNil(t, done.ResultText)
	assert.Equal(t, "final report", *done.ResultText)

	assert.Equal(t, http.StatusNotFound, a.call(t, "bob", http.MethodGet, created.StatusURL, nil).Code)
}
