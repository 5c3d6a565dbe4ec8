package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/api"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

type fixture struct {
	analyzer *MockAnalyzer
	query    *MockQueryService
	sources  *MockSources
	queryLog *MockQueryLog
	router   *chi.Mux
}

func newFixture(withQueryLog bool) *fixture {
	f := &fixture{
		analyzer: &MockAnalyzer{},
		query:    &MockQueryService{},
		sources:  &MockSources{},
		queryLog: &MockQueryLog{},
	}
	deps := Deps{Analyzer: f.analyzer, Query: f.query, Sources: f.sources}
	if withQueryLog {
		deps.QueryLog = f.queryLog
	}
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), config.USER_ID_KEY, testUser)))
		})
	})
	r.Get("/health", GetHandler)
	r.Post("/analyze", h.AnalyzeHandler)
	r.Post("/analyze/stream", h.AnalyzeStreamHandler)
	r.Post("/query", h.QueryHandler)
	r.Get("/job/latest", h.GetLatestJobHandler)
	r.Get("/job/{id}", h.GetJobHandler)
	r.Post("/sources", h.PostSourceHandler)
	r.Post("/sources/upload", h.UploadSourceHandler)
	r.Get("/sources", h.ListSourcesHandler)
	r.Get("/queries", h.ListQueriesHandler)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.JobOutgoingError {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func strPtr(s string) *string { return &s }

func TestHealth(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyze_InlineAnswer(t *testing.T) {
	f := newFixture(false)
	f.analyzer.OnSubmit = func(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error) {
		assert.Equal(t, testUser, userId)
		assert.Equal(t, "p1", projectId)
		assert.Equal(t, []string{"s1"}, req.SourceIds)
		return analysis.SubmitResult{Sync: &commonModels.QueryResult{
			Snippets: []commonModels.Snippet{{Content: "verbatim", SourceId: "s1", SourceTitle: "Doc", Relevance: 0.9}},
			Summary:  "one passage",
		}}, nil
	}

	rec := f.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{ProjectId: "p1", Instruction: "find the budget", SourceIds: []string{"s1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body api.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Snippets, 1)
	assert.Equal(t, "verbatim", body.Snippets[0].Content)
	assert.False(t, body.NoResults)
}

func TestAnalyze_CreatesJob(t *testing.T) {
	f := newFixture(false)
	f.analyzer.OnSubmit = func(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error) {
		return analysis.SubmitResult{Job: &analysisModel.AnalysisJob{Id: "job-9", Status: analysisModel.JobStatusPending}}, nil
	}

	rec := f.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{ProjectId: "p1", Instruction: "summarize every theme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/job/job-9", rec.Header().Get("Location"))

	var body api.InitJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "job-9", body.JobId)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, 3, body.PollIntervalSeconds)
}

func TestAnalyze_RejectsBadRequestsBeforeSubmit(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing project", api.AnalyzeRequest{Instruction: "x"}},
		{"missing instruction", api.AnalyzeRequest{ProjectId: "p1"}},
		{"instruction too long", api.AnalyzeRequest{ProjectId: "p1", Instruction: strings.Repeat("a", 4001)}},
		{"blank source id", api.AnalyzeRequest{ProjectId: "p1", Instruction: "x", SourceIds: []string{""}}},
		{"malformed json", `{"projectId": `},
		{"unknown field", `{"projectId":"p1","instruction":"x","chatId":"c1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.analyzer.OnSubmit = func(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error) {
				t.Fatal("submit must not be called")
				return analysis.SubmitResult{}, nil
			}
			rec := f.do(t, http.MethodPost, "/analyze", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, "validation", e.Reason)
			assert.False(t, e.Retry)
		})
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		reason string
		retry  bool
	}{
		{"validation", fmt.Errorf("%w: unknown source id: s9", rag.ErrValidation), http.StatusBadRequest, "validation", false},
		{"no content", rag.ErrNoUsableContent, http.StatusUnprocessableEntity, "no_usable_content", false},
		{"provider", fmt.Errorf("%w: gemini: 503", llm.ErrProviderUnavailable), http.StatusBadGateway, "provider_unavailable", true},
		{"queue full", fmt.Errorf("%w: job j1: context deadline exceeded", analysis.ErrNotScheduled), http.StatusServiceUnavailable, "not_scheduled", true},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", true},
		{"unexpected", errors.New("redis: connection refused"), http.StatusInternalServerError, "internal", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.analyzer.OnSubmit = func(ctx context.Context, userId string, projectId string, req analysis.Request) (analysis.SubmitResult, error) {
				return analysis.SubmitResult{}, tt.err
			}
			rec := f.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{ProjectId: "p1", Instruction: "x"})
			require.Equal(t, tt.code, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.reason, e.Reason)
			assert.Equal(t, tt.retry, e.Retry)
			assert.Equal(t, tt.code, e.Code)
			assert.NotContains(t, e.Message, "redis")
		})
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture(false)
	created := time.Now().UTC().Add(-time.Minute)
	f.analyzer.OnStatus = func(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error) {
		if userId != testUser || jobId != "j1" {
			return analysisModel.AnalysisJob{}, analysisModel.ErrJobNotFound
		}
		return analysisModel.AnalysisJob{
			Id: "j1", UserId: testUser, ProjectId: "p1", Instruction: "secret instruction",
			Status: analysisModel.JobStatusFailed, TotalBatches: 4, CompletedBatches: 3,
			ErrorMessage: strPtr("provider error"), CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour),
		}, nil
	}

	rec := f.do(t, http.MethodGet, "/job/j1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret instruction")
	assert.NotContains(t, rec.Body.String(), testUser)

	var body api.JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "failed", body.Status)
	assert.Equal(t, 3, body.CompletedBatches)
	require.NotNil(t, body.ErrorMessage)
	assert.Equal(t, "provider error", *body.ErrorMessage)
	assert.Nil(t, body.ResultText)
	assert.Equal(t, 480, body.PollTimeoutSeconds)
	require.NotNil(t, body.Error)
	assert.Equal(t, "job_failed", body.Error.Reason)
	assert.Equal(t, "provider error", body.Error.Message)
	assert.True(t, body.Error.Retry)

	rec = f.do(t, http.MethodGet, "/job/other", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Reason)
}

func TestGetLatestJob(t *testing.T) {
	f := newFixture(false)
	f.analyzer.OnLatest = func(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error) {
		if projectId != "p1" {
			return analysisModel.AnalysisJob{}, analysisModel.ErrJobNotFound
		}
		return analysisModel.AnalysisJob{Id: "j7", Status: analysisModel.JobStatusProcessing, TotalBatches: 2}, nil
	}

	rec := f.do(t, http.MethodGet, "/job/latest?projectId=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body api.JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "j7", body.JobId)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/job/latest?projectId=p2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/job/latest", nil).Code)
}

func TestQuery(t *testing.T) {
	f := newFixture(false)
	f.query.OnQuery = func(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error) {
		assert.Equal(t, testUser, userId)
		assert.Equal(t, "what is the deadline?", req.Query)
		return commonModels.QueryResult{NoResults: true}, nil
	}

	rec := f.do(t, http.MethodPost, "/query", api.QueryRequest{ProjectId: "p1", Query: "what is the deadline?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"snippets":[]`)
	assert.Contains(t, rec.Body.String(), `"noResults":true`)

	rec = f.do(t, http.MethodPost, "/query", api.QueryRequest{ProjectId: "p1", Query: strings.Repeat("q", 1001)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func streamOf(events ...llm.StreamEvent) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestAnalyzeStream(t *testing.T) {
	t.Run("tokens then done", func(t *testing.T) {
		f := newFixture(false)
		f.query.OnAnalyzeDocument = func(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
			assert.Equal(t, "s1", sourceId)
			return streamOf(
				llm.StreamEvent{Type: llm.StreamToken, Token: "Hel"},
				llm.StreamEvent{Type: llm.StreamToken, Token: "lo"},
				llm.StreamEvent{Type: llm.StreamDone},
			), nil
		}

		rec := f.do(t, http.MethodPost, "/analyze/stream", api.AnalyzeDocumentRequest{ProjectId: "p1", SourceId: "s1", Instruction: "summarize"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "event: token\ndata: {\"token\":\"Hel\"}\n\n")
		assert.True(t, strings.HasSuffix(body, "event: done\ndata: {}\n\n"))
		assert.Equal(t, 3, strings.Count(body, "event: "))
	})

	t.Run("error event ends the stream", func(t *testing.T) {
		f := newFixture(false)
		f.query.OnAnalyzeDocument = func(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
			return streamOf(
				llm.StreamEvent{Type: llm.StreamToken, Token: "partial"},
				llm.StreamEvent{Type: llm.StreamError, Err: llm.ErrProviderUnavailable},
				llm.StreamEvent{Type: llm.StreamToken, Token: "never sent"},
			), nil
		}

		rec := f.do(t, http.MethodPost, "/analyze/stream", api.AnalyzeDocumentRequest{ProjectId: "p1", SourceId: "s1", Instruction: "summarize"})
		body := rec.Body.String()
		assert.Contains(t, body, "event: error\n")
		assert.Contains(t, body, `"can_retry":true`)
		assert.NotContains(t, body, "never sent")
	})

	t.Run("failure before streaming is a json error", func(t *testing.T) {
		f := newFixture(false)
		f.query.OnAnalyzeDocument = func(ctx context.Context, userId string, projectId string, sourceId string, instruction string) (<-chan llm.StreamEvent, error) {
			return nil, rag.ErrNoUsableContent
		}

		rec := f.do(t, http.MethodPost, "/analyze/stream", api.AnalyzeDocumentRequest{ProjectId: "p1", SourceId: "s1", Instruction: "summarize"})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "no_usable_content", decodeError(t, rec).Reason)
	})
}

func TestPostSource(t *testing.T) {
	f := newFixture(false)
	var got commonModels.Source
	f.sources.OnRegister = func(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error) {
		got = src
		src.WordCount = len(strings.Fields(string(raw)))
		return src, nil
	}

	rec := f.do(t, http.MethodPost, "/sources", api.SourceRequest{ProjectId: "p1", SourceId: "s1", Title: "Notes", ContentType: "markdown", Content: "# Intro\n\nthree word body"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, testUser, got.UserId)
	assert.Equal(t, commonModels.MARKDOWN, got.ContentType)

	var body api.SourceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "s1", body.SourceId)
	assert.Equal(t, 5, body.WordCount)

	rec = f.do(t, http.MethodPost, "/sources", api.SourceRequest{ProjectId: "p1", Title: "Scan", ContentType: "pdf", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSource_GeneratesIdAndMapsUnreadable(t *testing.T) {
	f := newFixture(false)
	f.sources.OnRegister = func(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error) {
		assert.NotEmpty(t, src.Id)
		return commonModels.Source{}, corpus.ErrUnreadableContent
	}
	rec := f.do(t, http.MethodPost, "/sources", api.SourceRequest{ProjectId: "p1", Title: "Blank", ContentType: "text", Content: "   "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unreadable_content", decodeError(t, rec).Reason)
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("document", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sources/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadSource(t *testing.T) {
	f := newFixture(false)
	var got commonModels.Source
	var gotRaw []byte
	f.sources.OnRegister = func(ctx context.Context, src commonModels.Source, raw []byte) (commonModels.Source, error) {
		got, gotRaw = src, raw
		return src, nil
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string]string{"projectId": "p1"}, "minutes.md", []byte("# Minutes\n\nAgreed.")))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, commonModels.MARKDOWN, got.ContentType)
	assert.Equal(t, "minutes.md", got.Title)
	assert.Equal(t, "p1", got.ProjectId)
	assert.Equal(t, "# Minutes\n\nAgreed.", string(gotRaw))

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		code     int
	}{
		{"unsupported type", map[string]string{"projectId": "p1"}, "tool.exe", http.StatusBadRequest},
		{"missing project", map[string]string{}, "notes.txt", http.StatusBadRequest},
		{"missing file", map[string]string{"projectId": "p1"}, "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, uploadRequest(t, tt.fields, tt.filename, []byte("x")))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListSources(t *testing.T) {
	f := newFixture(false)
	f.sources.OnResolve = func(ctx context.Context, userId string, projectId string, sourceIds []string) ([]commonModels.Source, error) {
		assert.Equal(t, testUser, userId)
		assert.Nil(t, sourceIds)
		return []commonModels.Source{{Id: "a", ProjectId: projectId, Title: "A", ContentType: commonModels.TEXT, WordCount: 10}}, nil
	}

	rec := f.do(t, http.MethodGet, "/sources?projectId=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body api.SourceListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, 10, body.Sources[0].WordCount)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/sources", nil).Code)
}

func TestListQueries(t *testing.T) {
	f := newFixture(true)
	var gotLimit int
	f.queryLog.OnRecentQueries = func(ctx context.Context, userId string, limit int) ([]analysisModel.QueryRecord, error) {
		gotLimit = limit
		return []analysisModel.QueryRecord{{Id: "q1", UserId: userId, Query: "deadline?", Status: analysisModel.QueryStatusOK, ResultCount: 2}}, nil
	}

	rec := f.do(t, http.MethodGet, "/queries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, gotLimit)
	var body api.QueryLogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Queries, 1)
	assert.Equal(t, "ok", body.Queries[0].Status)

	f.do(t, http.MethodGet, "/queries?limit=5000", nil)
	assert.Equal(t, 100, gotLimit)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/queries?limit=abc", nil).Code)

	empty := newFixture(false)
	rec = empty.do(t, http.MethodGet, "/queries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queries":[]`)
}
