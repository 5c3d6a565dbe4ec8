package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// ErrNotScheduled means the job was recorded but no worker could take it; the record is marked failed.
var ErrNotScheduled = errors.New("analysis job could not be scheduled")

// Enqueuer hands a pending job to background execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobId string) error
}

type Request struct {
	Instruction string
	SourceIds   []string
}

// SubmitResult carries exactly one of Sync or Job.
type SubmitResult struct {
	Sync *commonModels.QueryResult
	Job  *analysisModel.AnalysisJob
}

type EngineConfig struct {
	Jobs     analysisModel.JobStore
	RunLock  analysisModel.RunLock
	Loader   *corpus.Loader
	Provider llm.Provider
	Query    rag.Service
	Enqueuer Enqueuer
	// RetryDelay is the base of the linear backoff between map attempts.
	RetryDelay time.Duration
}

type Engine struct {
	jobs       analysisModel.JobStore
	runLock    analysisModel.RunLock
	loader     *corpus.Loader
	provider   llm.Provider
	query      rag.Service
	enqueuer   Enqueuer
	retryDelay time.Duration
	estimator  budget.Estimator
	logger     *logger_i.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = config.MapRetryBaseDelay
	}
	return &Engine{
		jobs:       cfg.Jobs,
		runLock:    cfg.RunLock,
		loader:     cfg.Loader,
		provider:   cfg.Provider,
		query:      cfg.Query,
		enqueuer:   cfg.Enqueuer,
		retryDelay: cfg.RetryDelay,
		estimator:  budget.WordEstimator{},
		logger:     logger_i.NewLogger("analysis_engine"),
	}
}

// SetEnqueuer wires the worker pool after construction; the pool itself needs the engine.
func (e *Engine) SetEnqueuer(enqueuer Enqueuer) {
	e.enqueuer = enqueuer
}

// Submit answers small corpora inline and turns everything else into a background job.
// Only word-count metadata is read here.
func (e *Engine) Submit(ctx context.Context, userId string, projectId string, req Request) (SubmitResult, error) {
	if err := rag.ValidateInstruction(req.Instruction); err != nil {
		return SubmitResult{}, err
	}
	if err := rag.ValidateSourceIds(req.SourceIds); err != nil {
		return SubmitResult{}, err
	}
	log := e.logger.FromContext(ctx).With("projectId", projectId)

	sources, err := e.loader.ResolveSources(ctx, userId, projectId, req.SourceIds)
	if errors.Is(err, corpus.ErrUnknownSource) {
		return SubmitResult{}, fmt.Errorf("%w: %v", rag.ErrValidation, err)
	} else if err != nil {
		return SubmitResult{}, err
	}

	estimated := corpus.EstimateTokens(sources)
	if e.inline(req.Instruction, estimated) {
		log.Debug("Answering inline", "sources", len(sources), "estimatedTokens", estimated)
		result, err := e.query.Query(ctx, userId, projectId, rag.QueryRequest{Query: req.Instruction, SourceIds: req.SourceIds})
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Sync: &result}, nil
	}

	job, err := e.createJob(ctx, userId, projectId, req.Instruction, sources)
	if err != nil {
		return SubmitResult{}, err
	}
	log.Info("Analysis job created", "jobId", job.Id, "sources", len(sources), "estimatedTokens", estimated)
	return SubmitResult{Job: &job}, nil
}

// inline is true when the corpus fits one synchronous context and the instruction is a valid query.
func (e *Engine) inline(instruction string, estimatedTokens int) bool {
	if e.query == nil || estimatedTokens > config.InlineTokenThreshold {
		return false
	}
	return rag.ValidateQuery(rag.QueryRequest{Query: instruction}) == nil
}

func (e *Engine) createJob(ctx context.Context, userId string, projectId string, instruction string, sources []commonModels.Source) (analysisModel.AnalysisJob, error) {
	now := time.Now().UTC()
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.Id
	}
	job := analysisModel.AnalysisJob{
		Id:          utils.GetNewUUID(),
		ProjectId:   projectId,
		UserId:      userId,
		TraceId:     logger_i.TraceId(ctx),
		Instruction: instruction,
		SourceIds:   ids,
		Status:      analysisModel.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(config.JobTTL),
	}
	if err := e.jobs.CreateJob(ctx, job); err != nil {
		return analysisModel.AnalysisJob{}, fmt.Errorf("creating job: %w", err)
	}
	if e.enqueuer == nil {
		return job, nil
	}
	if err := e.enqueuer.Enqueue(ctx, job.Id); err != nil {
		msg := "could not schedule analysis: " + err.Error()
		if terr := e.jobs.TransitionJob(context.WithoutCancel(ctx), job.Id, analysisModel.JobTransition{
			From: analysisModel.JobStatusPending, To: analysisModel.JobStatusFailed, ErrorMessage: &msg,
		}); terr != nil {
			e.logger.FromContext(ctx).Error("Failed to mark unscheduled job", "jobId", job.Id, "error", terr)
		}
		return analysisModel.AnalysisJob{}, fmt.Errorf("%w: job %s: %v", ErrNotScheduled, job.Id, err)
	}
	return job, nil
}

// Status returns the caller's own job. Expired records are deleted here rather than by a sweeper.
func (e *Engine) Status(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error) {
	job, found, err := e.jobs.GetJob(ctx, jobId)
	if err != nil {
		return analysisModel.AnalysisJob{}, err
	}
	if !found || job.UserId != userId {
		return analysisModel.AnalysisJob{}, analysisModel.ErrJobNotFound
	}
	return e.unlessExpired(ctx, job)
}

// Latest lets a client resume polling after a reload instead of resubmitting.
func (e *Engine) Latest(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error) {
	job, found, err := e.jobs.LatestJob(ctx, userId, projectId)
	if err != nil {
		return analysisModel.AnalysisJob{}, err
	}
	if !found {
		return analysisModel.AnalysisJob{}, analysisModel.ErrJobNotFound
	}
	return e.unlessExpired(ctx, job)
}

func (e *Engine) unlessExpired(ctx context.Context, job analysisModel.AnalysisJob) (analysisModel.AnalysisJob, error) {
	if !job.IsExpired(time.Now()) {
		return job, nil
	}
	if err := e.jobs.DeleteJob(ctx, job.Id); err != nil {
		e.logger.FromContext(ctx).Warn("Failed to delete expired job", "jobId", job.Id, "error", err)
	} else {
		e.logger.FromContext(ctx).Debug("Deleted expired job", "jobId", job.Id)
	}
	return analysisModel.AnalysisJob{}, analysisModel.ErrJobNotFound
}

// PollTimeout is how long a client should keep polling a job of totalBatches before
// treating it as failed: two minutes per batch, at least five, at most thirty.
func PollTimeout(totalBatches int) time.Duration {
	timeout := time.Duration(totalBatches) * 2 * time.Minute
	if timeout < config.MinPollTimeout {
		timeout = config.MinPollTimeout
	}
	if timeout > config.MaxPollTimeout {
		timeout = config.MaxPollTimeout
	}
	return timeout
}
