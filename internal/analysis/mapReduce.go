package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/internal/rag/budget"
	"github.com/akolanti/GoAnalyze/internal/rag/corpus"
	"github.com/akolanti/GoAnalyze/internal/rag/llm"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
)

// batchBudget leaves the whole partition budget for chunks.
var batchBudget = budget.TokenBudget{
	MaxTotalTokens:      config.BatchTokenBudget + config.SystemPromptReserveTokens + config.MapMaxOutputTokens,
	SystemPromptReserve: config.SystemPromptReserveTokens,
	ResponseReserve:     config.MapMaxOutputTokens,
}

// Run executes one job from pending to a terminal state. A job that is no longer
// pending, or is already held by another run, is left alone and Run returns nil.
func (e *Engine) Run(ctx context.Context, jobId string) error {
	log := e.logger.FromContext(ctx).With("jobId", jobId)

	if e.runLock != nil {
		acquired, err := e.runLock.AcquireRun(ctx, jobId, config.JobRunTimeout)
		if err != nil {
			// the conditional transition below still guards the run
			log.Warn("Run lock unavailable", "error", err)
		} else if !acquired {
			log.Info("Job already running elsewhere")
			return nil
		} else {
			defer func() {
				if err := e.runLock.ReleaseRun(context.WithoutCancel(ctx), jobId); err != nil {
					log.Warn("Failed to release run lock", "error", err)
				}
			}()
		}
	}

	job, found, err := e.jobs.GetJob(ctx, jobId)
	if err != nil {
		return err
	}
	if !found {
		return analysisModel.ErrJobNotFound
	}
	if job.Status != analysisModel.JobStatusPending {
		log.Debug("Job not pending, skipping", "status", job.Status)
		return nil
	}

	start := time.Now()
	status, err := e.run(ctx, log, job)
	metrics.CaptureJobMetrics(string(status), time.Since(start))
	return err
}

func (e *Engine) run(ctx context.Context, log *logger_i.Logger, job analysisModel.AnalysisJob) (analysisModel.JobStatus, error) {
	sources, err := e.loader.ResolveSources(ctx, job.UserId, job.ProjectId, job.SourceIds)
	if err == nil && len(sources) == 0 {
		err = rag.ErrNoUsableContent
	}
	if err != nil {
		return e.fail(ctx, log, job.Id, analysisModel.JobStatusPending, err)
	}

	batches := budget.Partition(corpus.SourceSizes(sources), config.BatchTokenBudget)
	total := len(batches)
	err = e.jobs.TransitionJob(ctx, job.Id, analysisModel.JobTransition{
		From: analysisModel.JobStatusPending, To: analysisModel.JobStatusProcessing, TotalBatches: &total,
	})
	if errors.Is(err, analysisModel.ErrTransitionRejected) {
		log.Info("Job claimed by another run")
		return analysisModel.JobStatusPending, nil
	}
	if err != nil {
		return analysisModel.JobStatusPending, err
	}
	log.Info("Job processing", "batches", total, "sources", len(sources))

	byId := make(map[string]commonModels.Source, len(sources))
	for _, s := range sources {
		byId[s.Id] = s
	}
	batchSources := make([][]commonModels.Source, total)
	for i, ids := range batches {
		for _, id := range ids {
			batchSources[i] = append(batchSources[i], byId[id])
		}
	}

	summaries, err := e.mapPhase(ctx, log, job, batchSources)
	if err != nil {
		return e.fail(ctx, log, job.Id, analysisModel.JobStatusProcessing, err)
	}
	result, err := e.reducePhase(ctx, log, job, summaries)
	if err != nil {
		return e.fail(ctx, log, job.Id, analysisModel.JobStatusProcessing, err)
	}

	err = e.jobs.TransitionJob(ctx, job.Id, analysisModel.JobTransition{
		From: analysisModel.JobStatusProcessing, To: analysisModel.JobStatusCompleted, ResultText: &result,
	})
	if err != nil {
		log.Error("Failed to persist result", "error", err)
		return analysisModel.JobStatusProcessing, err
	}
	log.Info("Job completed")
	return analysisModel.JobStatusCompleted, nil
}

func (e *Engine) fail(ctx context.Context, log *logger_i.Logger, jobId string, from analysisModel.JobStatus, cause error) (analysisModel.JobStatus, error) {
	msg := cause.Error()
	log.Error("Job failed", "error", msg)
	err := e.jobs.TransitionJob(context.WithoutCancel(ctx), jobId, analysisModel.JobTransition{
		From: from, To: analysisModel.JobStatusFailed, ErrorMessage: &msg,
	})
	if err != nil {
		log.Error("Failed to persist failure", "error", err)
		return from, errors.Join(cause, err)
	}
	return analysisModel.JobStatusFailed, cause
}

// mapPhase runs batches in groups of MapConcurrency and waits for the whole group before the
// next. Progress only moves in whole groups. Any batch that exhausts its retries fails the phase.
func (e *Engine) mapPhase(ctx context.Context, log *logger_i.Logger, job analysisModel.AnalysisJob, batches [][]commonModels.Source) ([]string, error) {
	summaries := make([]string, len(batches))
	for start := 0; start < len(batches); start += config.MapConcurrency {
		end := min(start+config.MapConcurrency, len(batches))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				summary, err := e.mapBatch(gctx, log.With("batch", i+1), job.Instruction, i, len(batches), batches[i])
				if err != nil {
					return fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
				}
				summaries[i] = summary
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if err := e.jobs.UpdateProgress(ctx, job.Id, end); err != nil {
			return nil, fmt.Errorf("saving progress: %w", err)
		}
		log.Debug("Map group done", "completedBatches", end, "totalBatches", len(batches))
	}
	return summaries, nil
}

func (e *Engine) mapBatch(ctx context.Context, log *logger_i.Logger, instruction string, index int, total int, sources []commonModels.Source) (string, error) {
	var summary string
	err := retry.Do(
		func() error {
			s, err := e.summarizeBatch(ctx, log, instruction, index, total, sources)
			if err != nil {
				return err
			}
			summary = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(config.MapMaxAttempts),
		retry.DelayType(e.linearDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.IncrementBatchRetries()
			log.Warn("Map batch failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	return summary, err
}

// linearDelay waits base, 2×base, ... between attempts.
func (e *Engine) linearDelay(n uint, _ error, _ *retry.Config) time.Duration {
	return time.Duration(n+1) * e.retryDelay
}

// summarizeBatch is one attempt: load and chunk the batch's sources, then one completion.
// A batch with no usable content yields an empty summary without calling the provider.
func (e *Engine) summarizeBatch(ctx context.Context, log *logger_i.Logger, instruction string, index int, total int, sources []commonModels.Source) (string, error) {
	groups, err := e.loader.LoadChunks(ctx, sources)
	if err != nil {
		return "", err
	}
	var chunks []commonModels.Chunk
	for _, g := range groups {
		chunks = append(chunks, g.Chunks...)
	}
	if len(chunks) == 0 {
		log.Warn("Batch has no usable content")
		return "", nil
	}

	selection := budget.SelectWith(chunks, batchBudget, e.estimator)
	var coverage string
	if selection.Truncated {
		log.Warn("Batch trimmed to budget", "chunks", len(selection.SelectedChunks), "of", len(chunks))
		coverage = coverageNote(sources, len(selection.SelectedChunks), len(chunks))
	}
	system, user := rag.BuildMapPrompt(instruction, index+1, total, selection.SelectedChunks)

	start := time.Now()
	completion, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: config.MapMaxOutputTokens,
	})
	metrics.CaptureExecutionMetrics("llm_map", time.Since(start))
	if err != nil {
		return "", llm.Unavailable("map", err)
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", fmt.Errorf("%w: empty batch summary", rag.ErrMalformedOutput)
	}
	if coverage != "" {
		return completion.Text + "\n\n" + coverage, nil
	}
	return completion.Text, nil
}

// coverageNote travels with a trimmed batch's summary so the final answer can say
// that part of a source went unread.
func coverageNote(sources []commonModels.Source, kept int, total int) string {
	titles := make([]string, 0, len(sources))
	for _, s := range sources {
		titles = append(titles, s.Title)
	}
	return fmt.Sprintf("%s only %d of %d excerpts from %s fit the analysis budget; the rest was not analyzed.",
		rag.CoverageNotePrefix, kept, total, strings.Join(titles, ", "))
}

// reducePhase is a single call and is not retried.
func (e *Engine) reducePhase(ctx context.Context, log *logger_i.Logger, job analysisModel.AnalysisJob, summaries []string) (string, error) {
	var usable []string
	for _, s := range summaries {
		if strings.TrimSpace(s) != "" {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return "", rag.ErrNoUsableContent
	}

	system, user := rag.BuildReducePrompt(job.Instruction, usable)
	start := time.Now()
	completion, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: config.ReduceMaxOutputTokens,
	})
	metrics.CaptureExecutionMetrics("llm_reduce", time.Since(start))
	if err != nil {
		return "", llm.Unavailable("reduce", err)
	}
	result := strings.TrimSpace(completion.Text)
	if result == "" {
		return "", fmt.Errorf("%w: empty synthesis", rag.ErrMalformedOutput)
	}
	log.Debug("Reduce done", "summaries", len(usable), "outputTokens", completion.OutputTokens)
	return result, nil
}
