package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/store"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser    = "user-1"
	testProject = "project-1"
	// large enough that two sources never share an 80K-token batch
	bigWordCount = 50000
)

type fixture struct {
	jobs     *progressRecorder
	catalog  *store.InMemorySourceCatalog
	content  *store.InMemoryContentStore
	llm      *MockLLM
	query    *MockQueryService
	enqueuer *MockEnqueuer
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs:     &progressRecorder{InMemoryJobStore: store.InitInMemoryJobStore()},
		catalog:  store.InitInMemorySourceCatalog(),
		content:  store.InitInMemoryContentStore(),
		llm:      &MockLLM{},
		query:    &MockQueryService{},
		enqueuer: &MockEnqueuer{},
	}
	f.engine = NewEngine(EngineConfig{
		Jobs:       f.jobs,
		RunLock:    f.jobs.InMemoryJobStore,
		Loader:     corpus.NewLoader(f.catalog, f.content),
		Provider:   f.llm,
		Query:      f.query,
		Enqueuer:   f.enqueuer,
		RetryDelay: time.Millisecond,
	})
	return f
}

func (f *fixture) addSources(t *testing.T, n int, wordCount int) []string {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC()
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i+1)
		require.NoError(t, f.catalog.UpsertSource(ctx, commonModels.Source{
			Id: id, UserId: testUser, ProjectId: testProject, Title: "Source " + id,
			ContentType: commonModels.TEXT, WordCount: wordCount, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
		text := fmt.Sprintf("Notes from %s about corvid behaviour.", id)
		require.NoError(t, f.content.PutContent(ctx, id, []byte(text), commonModels.ContentMeta{ContentType: commonModels.TEXT}))
		ids = append(ids, id)
	}
	return ids
}

func (f *fixture) submitJob(t *testing.T) analysisModel.AnalysisJob {
	t.Helper()
	res, err := f.engine.Submit(context.Background(), testUser, testProject, Request{Instruction: "Summarize the main themes"})
	require.NoError(t, err)
	require.Nil(t, res.Sync)
	require.NotNil(t, res.Job)
	return *res.Job
}

func (f *fixture) job(t *testing.T, id string) analysisModel.AnalysisJob {
	t.Helper()
	job, found, err := f.jobs.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	return job
}

func TestSubmit_InlineBelowThreshold(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 3, 1000)
	f.query.OnQuery = func(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error) {
		assert.Equal(t, "What do crows eat?", req.Query)
		return commonModels.QueryResult{Summary: "seeds", Snippets: []commonModels.Snippet{{Content: "c", SourceId: "s1"}}}, nil
	}

	res, err := f.engine.Submit(context.Background(), testUser, testProject, Request{Instruction: "What do crows eat?"})
	require.NoError(t, err)
	require.NotNil(t, res.Sync)
	assert.Nil(t, res.Job)
	assert.Equal(t, "seeds", res.Sync.Summary)
	assert.Empty(t, f.enqueuer.Ids)
}

func TestSubmit_NoContentIsDistinct(t *testing.T) {
	f := newFixture(t)
	f.query.OnQuery = func(ctx context.Context, userId string, projectId string, req rag.QueryRequest) (commonModels.QueryResult, error) {
		return commonModels.QueryResult{}, rag.ErrNoUsableContent
	}
	_, err := f.engine.Submit(context.Background(), testUser, testProject, Request{Instruction: "anything"})
	assert.ErrorIs(t, err, rag.ErrNoUsableContent)
}

func TestSubmit_LongInstructionAlwaysBecomesJob(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 1, 100)
	res, err := f.engine.Submit(context.Background(), testUser, testProject, Request{Instruction: strings.Repeat("word ", 300)})
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.Zero(t, f.query.Calls)
}

func TestSubmit_CreatesPendingJob(t *testing.T) {
	f := newFixture(t)
	ids := f.addSources(t, 2, bigWordCount)

	job := f.submitJob(t)
	assert.Equal(t, analysisModel.JobStatusPending, job.Status)
	assert.Equal(t, ids, job.SourceIds)
	assert.Equal(t, testUser, job.UserId)
	assert.WithinDuration(t, job.CreatedAt.Add(config.JobTTL), job.ExpiresAt, time.Second)
	assert.Equal(t, []string{job.Id}, f.enqueuer.Ids)
	assert.Zero(t, f.query.Calls)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 1, 10)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, testUser, testProject, Request{Instruction: "  "})
	assert.ErrorIs(t, err, rag.ErrValidation)
	_, err = f.engine.Submit(ctx, testUser, testProject, Request{Instruction: "x", SourceIds: []string{"missing"}})
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, found, _ := f.jobs.LatestJob(ctx, testUser, testProject)
	assert.False(t, found, "no job for a rejected request")
}

func TestSubmit_EnqueueFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	f.enqueuer.OnEnqueue = func(ctx context.Context, jobId string) error { return errors.New("queue full") }

	_, err := f.engine.Submit(context.Background(), testUser, testProject, Request{Instruction: "themes"})
	require.ErrorIs(t, err, ErrNotScheduled)
	require.Len(t, f.enqueuer.Ids, 1)

	job := f.job(t, f.enqueuer.Ids[0])
	assert.Equal(t, analysisModel.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "queue full")
}

func TestRun_CompletesAcrossGroups(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 5, bigWordCount)
	job := f.submitJob(t)

	require.NoError(t, f.engine.Run(context.Background(), job.Id))

	got := f.job(t, job.Id)
	assert.Equal(t, analysisModel.JobStatusCompleted, got.Status)
	assert.Equal(t, 5, got.TotalBatches)
	assert.Equal(t, 5, got.CompletedBatches)
	require.NotNil(t, got.ResultText)
	assert.Equal(t, "final report", *got.ResultText)
	assert.Nil(t, got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)

	// whole groups of three, never a partial group
	assert.Equal(t, []int{3, 5}, f.jobs.progress)

	mapCalls, reduceCalls := f.llm.counts()
	assert.Equal(t, 5, mapCalls)
	assert.Equal(t, 1, reduceCalls)
	// summaries reach the reduce prompt in batch order
	reduce := f.llm.ReduceUsers[0]
	assert.Less(t, strings.Index(reduce, "summary of Batch 1 of 5."), strings.Index(reduce, "summary of Batch 5 of 5."))
}

func TestRun_TrimmedBatchCarriesCoverageNote(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	// three paragraphs too long to share a chunk
	para := strings.TrimSpace(strings.Repeat("ravens cache food for winter. ", 80))
	long := strings.Join([]string{para, para + " one", para + " two"}, "\n\n")
	require.NoError(t, f.content.PutContent(context.Background(), "s1", []byte(long), commonModels.ContentMeta{ContentType: commonModels.TEXT}))

	saved := batchBudget
	batchBudget = budget.TokenBudget{MaxTotalTokens: 700}
	t.Cleanup(func() { batchBudget = saved })

	job := f.submitJob(t)
	require.NoError(t, f.engine.Run(context.Background(), job.Id))

	got := f.job(t, job.Id)
	assert.Equal(t, analysisModel.JobStatusCompleted, got.Status)
	require.Len(t, f.llm.ReduceUsers, 1)
	reduce := f.llm.ReduceUsers[0]
	assert.Contains(t, reduce, rag.CoverageNotePrefix+" only 1 of 3 excerpts from Source s1")
	assert.Equal(t, 1, strings.Count(reduce, rag.CoverageNotePrefix))
}

func TestRun_MapConcurrencyNeverExceedsThree(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 7, bigWordCount)
	job := f.submitJob(t)

	var inFlight, peak int32
	f.llm.OnMap = func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return llm.Completion{Text: "ok"}, nil
	}

	require.NoError(t, f.engine.Run(context.Background(), job.Id))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(config.MapConcurrency))
	assert.Equal(t, []int{3, 6, 7}, f.jobs.progress)
}

func TestRun_BatchFailsTwiceThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)

	var attempts sync.Map
	f.llm.OnMap = func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
		if strings.HasPrefix(req.User, "Batch 2 of 2.") {
			n, _ := attempts.LoadOrStore("b2", new(int32))
			if atomic.AddInt32(n.(*int32), 1) <= 2 {
				return llm.Completion{}, errors.New("503 from provider")
			}
		}
		return llm.Completion{Text: "summary"}, nil
	}

	require.NoError(t, f.engine.Run(context.Background(), job.Id))

	got := f.job(t, job.Id)
	assert.Equal(t, analysisModel.JobStatusCompleted, got.Status)
	assert.Nil(t, got.ErrorMessage)
	mapCalls, reduceCalls := f.llm.counts()
	assert.Equal(t, 4, mapCalls)
	assert.Equal(t, 1, reduceCalls)
}

func TestRun_RetriesExhaustedFailsJob(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)

	var calls int32
	f.llm.OnMap = func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
		if strings.HasPrefix(req.User, "Batch 1 of 2.") {
			n := atomic.AddInt32(&calls, 1)
			return llm.Completion{}, fmt.Errorf("provider error %d", n)
		}
		return llm.Completion{Text: "summary"}, nil
	}

	err := f.engine.Run(context.Background(), job.Id)
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)

	got := f.job(t, job.Id)
	assert.Equal(t, analysisModel.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "provider error 3", "carries the last failure only")
	assert.NotContains(t, *got.ErrorMessage, "provider error 1")
	assert.Nil(t, got.ResultText)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, int32(config.MapMaxAttempts), atomic.LoadInt32(&calls))

	_, reduceCalls := f.llm.counts()
	assert.Zero(t, reduceCalls, "reduce never runs after a failed map phase")
}

func TestRun_ReduceFailureNotRetried(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)
	f.llm.OnReduce = func(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
		return llm.Completion{}, errors.New("reduce down")
	}

	assert.Error(t, f.engine.Run(context.Background(), job.Id))
	got := f.job(t, job.Id)
	assert.Equal(t, analysisModel.JobStatusFailed, got.Status)
	_, reduceCalls := f.llm.counts()
	assert.Equal(t, 1, reduceCalls)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)

	require.NoError(t, f.engine.Run(context.Background(), job.Id))
	mapBefore, reduceBefore := f.llm.counts()

	require.NoError(t, f.engine.Run(context.Background(), job.Id))
	mapAfter, reduceAfter := f.llm.counts()
	assert.Equal(t, mapBefore, mapAfter)
	assert.Equal(t, reduceBefore, reduceAfter)
	assert.Equal(t, analysisModel.JobStatusCompleted, f.job(t, job.Id).Status)
}

func TestRun_ConcurrentDeliveriesRunOnce(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.engine.Run(context.Background(), job.Id)
		}()
	}
	wg.Wait()

	mapCalls, reduceCalls := f.llm.counts()
	assert.Equal(t, 2, mapCalls)
	assert.Equal(t, 1, reduceCalls)
}

func TestRun_HeldLockSkips(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)

	ok, err := f.jobs.AcquireRun(context.Background(), job.Id, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.engine.Run(context.Background(), job.Id))
	assert.Equal(t, analysisModel.JobStatusPending, f.job(t, job.Id).Status)
}

func TestRun_NoUsableContentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, f.catalog.UpsertSource(ctx, commonModels.Source{Id: id, UserId: testUser, ProjectId: testProject, WordCount: bigWordCount}))
	}
	job := f.submitJob(t)

	assert.ErrorIs(t, f.engine.Run(ctx, job.Id), rag.ErrNoUsableContent)
	assert.Equal(t, analysisModel.JobStatusFailed, f.job(t, job.Id).Status)
	mapCalls, _ := f.llm.counts()
	assert.Zero(t, mapCalls)
}

func TestRun_UnresolvableSourceFailsFromPending(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	job := analysisModel.AnalysisJob{
		Id: "orphan", UserId: testUser, ProjectId: testProject, Instruction: "x",
		SourceIds: []string{"gone"}, Status: analysisModel.JobStatusPending,
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, f.jobs.CreateJob(context.Background(), job))

	assert.Error(t, f.engine.Run(context.Background(), "orphan"))
	got := f.job(t, "orphan")
	assert.Equal(t, analysisModel.JobStatusFailed, got.Status)
	assert.Zero(t, got.TotalBatches)
}

func TestRun_UnknownJob(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.Run(context.Background(), "nope"), analysisModel.ErrJobNotFound)
}

func TestStatusAndLatest(t *testing.T) {
	f := newFixture(t)
	f.addSources(t, 2, bigWordCount)
	job := f.submitJob(t)
	ctx := context.Background()

	got, err := f.engine.Status(ctx, testUser, job.Id)
	require.NoError(t, err)
	assert.Equal(t, job.Id, got.Id)

	_, err = f.engine.Status(ctx, "intruder", job.Id)
	assert.ErrorIs(t, err, analysisModel.ErrJobNotFound, "other users' jobs are not found")

	latest, err := f.engine.Latest(ctx, testUser, testProject)
	require.NoError(t, err)
	assert.Equal(t, job.Id, latest.Id)

	_, err = f.engine.Latest(ctx, testUser, "other-project")
	assert.ErrorIs(t, err, analysisModel.ErrJobNotFound)
}

func TestStatus_ExpiredIsDeletedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := time.Now().UTC().Add(-25 * time.Hour)
	job := analysisModel.AnalysisJob{
		Id: "old", UserId: testUser, ProjectId: testProject, Instruction: "x",
		Status: analysisModel.JobStatusPending, CreatedAt: created, UpdatedAt: created, ExpiresAt: created.Add(config.JobTTL),
	}
	require.NoError(t, f.jobs.CreateJob(ctx, job))

	_, err := f.engine.Latest(ctx, testUser, testProject)
	assert.ErrorIs(t, err, analysisModel.ErrJobNotFound)
	_, found, _ := f.jobs.GetJob(ctx, "old")
	assert.False(t, found)

	require.NoError(t, f.jobs.CreateJob(ctx, job))
	_, err = f.engine.Status(ctx, testUser, "old")
	assert.ErrorIs(t, err, analysisModel.ErrJobNotFound)
	_, found, _ = f.jobs.GetJob(ctx, "old")
	assert.False(t, found)
}

func TestPollTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Minute, PollTimeout(0))
	assert.Equal(t, 5*time.Minute, PollTimeout(2))
	assert.Equal(t, 8*time.Minute, PollTimeout(4))
	assert.Equal(t, 30*time.Minute, PollTimeout(15))
	assert.Equal(t, 30*time.Minute, PollTimeout(100))
}
