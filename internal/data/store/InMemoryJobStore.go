package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

type InMemoryJobStore struct {
	jobMutex *sync.RWMutex
	jobMap   map[string]analysisModel.AnalysisJob
	running  map[string]time.Time
	logger   *logger_i.Logger
}

var _ analysisModel.JobStore = (*InMemoryJobStore)(nil)
var _ analysisModel.RunLock = (*InMemoryJobStore)(nil)

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMutex: new(sync.RWMutex),
		jobMap:   make(map[string]analysisModel.AnalysisJob),
		running:  make(map[string]time.Time),
		logger:   logger_i.NewLogger("inmem_job_store"),
	}
}

func copyJob(job analysisModel.AnalysisJob) analysisModel.AnalysisJob {
	job.SourceIds = append([]string(nil), job.SourceIds...)
	return job
}

func (store *InMemoryJobStore) CreateJob(ctx context.Context, job analysisModel.AnalysisJob) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	store.jobMap[job.Id] = copyJob(job)
	store.logger.FromContext(ctx).Debug("Saved job to store", "jobId", job.Id)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (analysisModel.AnalysisJob, bool, error) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	result, found := store.jobMap[jobId]
	return copyJob(result), found, nil
}

func (store *InMemoryJobStore) LatestJob(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, bool, error) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	var latest analysisModel.AnalysisJob
	found := false
	for _, job := range store.jobMap {
		if job.UserId != userId || job.ProjectId != projectId {
			continue
		}
		if !found || job.CreatedAt.After(latest.CreatedAt) || (job.CreatedAt.Equal(latest.CreatedAt) && job.Id > latest.Id) {
			latest = job
			found = true
		}
	}
	return copyJob(latest), found, nil
}

func (store *InMemoryJobStore) TransitionJob(ctx context.Context, jobId string, transition analysisModel.JobTransition) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	job, found := store.jobMap[jobId]
	if !found {
		return analysisModel.ErrJobNotFound
	}
	if err := applyTransition(&job, transition); err != nil {
		return err
	}
	store.jobMap[jobId] = job
	return nil
}

func (store *InMemoryJobStore) UpdateProgress(ctx context.Context, jobId string, completedBatches int) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	job, found := store.jobMap[jobId]
	if !found {
		return analysisModel.ErrJobNotFound
	}
	if err := analysisModel.ApplyProgress(&job, completedBatches, time.Now().UTC()); err != nil {
		return err
	}
	store.jobMap[jobId] = job
	return nil
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobId string) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobId)
	return nil
}

func (store *InMemoryJobStore) AcquireRun(ctx context.Context, jobId string, ttl time.Duration) (bool, error) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	if until, held := store.running[jobId]; held && time.Now().Before(until) {
		return false, nil
	}
	store.running[jobId] = time.Now().Add(ttl)
	return true, nil
}

func (store *InMemoryJobStore) ReleaseRun(ctx context.Context, jobId string) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.running, jobId)
	return nil
}
