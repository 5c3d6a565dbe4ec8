package worker

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/job"
	"github.com/akolanti/GoAnalyze/internal/metrics"
)

// executeJob runs detached from the HTTP request that queued it; only the trace and
// user ids carry over.
func executeJob(queued job.QueuedJob) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, queued.TraceId)
	if queued.UserId != "" {
		ctx = context.WithValue(ctx, config.USER_ID_KEY, queued.UserId)
	}
	ctx, cancel := context.WithTimeout(ctx, config.JobRunTimeout)
	defer cancel()

	log := logger.FromContext(ctx).With("jobId", queued.JobId)
	log.Debug("Processing job")

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	if err := _runner.Run(ctx, queued.JobId); err != nil {
		log.Error("Job run ended with error", "error", err)
		return
	}
	log.Debug("Job run finished")
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}
