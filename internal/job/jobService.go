package job

import (
	"context"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// QueuedJob is what travels to the workers: only the id and the request's trace
// and user, the job record itself stays in the store.
type QueuedJob struct {
	JobId   string
	TraceId string
	UserId  string
}

type Service struct {
	JobChannel        chan QueuedJob
	DispatcherChannel chan bool
	logger            *logger_i.Logger
}

type ServiceConfig struct {
	JobChannel        chan QueuedJob
	DispatcherChannel chan bool
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		logger:            logger_i.NewLogger("JobService"),
	}
}

// Enqueue blocks while the buffer is full so a burst of submissions cannot overwhelm
// the workers; the caller's context bounds the wait.
func (s *Service) Enqueue(ctx context.Context, jobId string) error {
	queued := QueuedJob{
		JobId:   jobId,
		TraceId: logger_i.TraceId(ctx),
	}
	if userId, ok := ctx.Value(config.USER_ID_KEY).(string); ok {
		queued.UserId = userId
	}

	select {
	case s.JobChannel <- queued:
	case <-ctx.Done():
		return ctx.Err()
	}
	metrics.IncrementJobsInQueue()
	s.logger.FromContext(ctx).Info("Queued analysis job", "jobId", jobId)

	// analysis jobs are long, so every one asks for a worker; the dispatcher caps the pool
	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
	default:
		// a signal is already pending
	}
	return nil
}
