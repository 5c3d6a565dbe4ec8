package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akolanti/GoAnalyze/internal/adapter/utils"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/data/redisStore"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

const (
	jobKeyPrefix    = "job:"
	latestKeyPrefix = "job:latest:"
	runLockPrefix   = "lock:job:"
)

// errStopUpdate aborts a watched update without writing and without being an error to callers.
var errStopUpdate = errors.New("no update needed")

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
	owner  string
}

var _ analysisModel.JobStore = (*RedisJobStore)(nil)
var _ analysisModel.RunLock = (*RedisJobStore)(nil)

// GetRedisJobStore returns nil when Redis is offline so the caller can fall back.
func GetRedisJobStore(ctx context.Context, opts redisStore.Options) *RedisJobStore {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisJobStore)
	if s == nil {
		return nil
	}
	return TestJobStore(s)
}

// TestJobStore wraps an existing redis store, e.g. one on miniredis.
func TestJobStore(store *redisStore.Store) *RedisJobStore {
	hostname, _ := os.Hostname()
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("redis_job_store"),
		owner:  hostname + ":" + utils.GetNewUUID(),
	}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func latestKey(userId string, projectId string) string {
	return latestKeyPrefix + userId + ":" + projectId
}

func (s *RedisJobStore) CreateJob(ctx context.Context, job analysisModel.AnalysisJob) error {
	log := s.logger.FromContext(ctx).With("jobId", job.Id)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = s.store.SetIndexed(ctx, jobKey(job.Id), data, jobTTL(job),
		latestKey(job.UserId, job.ProjectId), job.Id, float64(job.CreatedAt.UnixNano()))
	if err != nil {
		log.Error("Failed to save job", "error", err)
		return fmt.Errorf("saving job: %w", err)
	}
	log.Debug("Saved job to Redis")
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (analysisModel.AnalysisJob, bool, error) {
	var job analysisModel.AnalysisJob
	val, err := s.store.Get(ctx, jobKey(jobId))
	if s.store.IsNil(err) {
		return job, false, nil
	} else if err != nil {
		return job, false, fmt.Errorf("reading job: %w", err)
	}
	if err = json.Unmarshal([]byte(val), &job); err != nil {
		return job, false, fmt.Errorf("decoding job: %w", err)
	}
	return job, true, nil
}

// LatestJob walks the project index newest first and prunes ids whose record is gone.
func (s *RedisJobStore) LatestJob(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, bool, error) {
	key := latestKey(userId, projectId)
	ids, err := s.store.ZRevRange(ctx, key, 0, -1)
	if err != nil {
		return analysisModel.AnalysisJob{}, false, fmt.Errorf("reading job index: %w", err)
	}
	for _, id := range ids {
		job, found, err := s.GetJob(ctx, id)
		if err != nil {
			return analysisModel.AnalysisJob{}, false, err
		}
		if found {
			return job, true, nil
		}
		if err := s.store.ZRem(ctx, key, id); err != nil {
			s.logger.FromContext(ctx).Warn("Failed to prune job index", "jobId", id, "error", err)
		}
	}
	return analysisModel.AnalysisJob{}, false, nil
}

func (s *RedisJobStore) update(ctx context.Context, jobId string, mutate func(job *analysisModel.AnalysisJob) error) error {
	err := s.store.UpdateWatched(ctx, jobKey(jobId), func(current string) (string, time.Duration, error) {
		var job analysisModel.AnalysisJob
		if err := json.Unmarshal([]byte(current), &job); err != nil {
			return "", 0, fmt.Errorf("decoding job: %w", err)
		}
		if err := mutate(&job); err != nil {
			return "", 0, err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return "", 0, err
		}
		return string(data), jobTTL(job), nil
	})
	if s.store.IsNil(err) {
		return analysisModel.ErrJobNotFound
	}
	if errors.Is(err, errStopUpdate) {
		return nil
	}
	return err
}

func (s *RedisJobStore) TransitionJob(ctx context.Context, jobId string, transition analysisModel.JobTransition) error {
	err := s.update(ctx, jobId, func(job *analysisModel.AnalysisJob) error {
		return applyTransition(job, transition)
	})
	if err == nil {
		s.logger.FromContext(ctx).Debug("Job transitioned", "jobId", jobId, "from", transition.From, "to", transition.To)
	}
	return err
}

func (s *RedisJobStore) UpdateProgress(ctx context.Context, jobId string, completedBatches int) error {
	return s.update(ctx, jobId, func(job *analysisModel.AnalysisJob) error {
		before := job.CompletedBatches
		if err := analysisModel.ApplyProgress(job, completedBatches, time.Now().UTC()); err != nil {
			return err
		}
		if job.CompletedBatches == before {
			return errStopUpdate
		}
		return nil
	})
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobId string) error {
	if err := s.store.Del(ctx, jobKey(jobId)); err != nil {
		s.logger.FromContext(ctx).Error("Error deleting job from Redis", "jobId", jobId, "error", err)
		return err
	}
	s.logger.FromContext(ctx).Debug("Job deleted from Redis", "jobId", jobId)
	return nil
}

func (s *RedisJobStore) AcquireRun(ctx context.Context, jobId string, ttl time.Duration) (bool, error) {
	ok, err := s.store.AcquireLock(ctx, runLockPrefix+jobId, s.owner, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire run lock %s: %w", jobId, err)
	}
	return ok, nil
}

func (s *RedisJobStore) ReleaseRun(ctx context.Context, jobId string) error {
	if err := s.store.ReleaseLock(ctx, runLockPrefix+jobId, s.owner); err != nil {
		return fmt.Errorf("release run lock %s: %w", jobId, err)
	}
	return nil
}
