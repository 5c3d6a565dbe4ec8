package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/job"
	"github.com/akolanti/GoAnalyze/internal/metrics"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
)

// Runner executes one queued job to completion.
type Runner interface {
	Run(ctx context.Context, jobId string) error
}

var (
	_jobService        *job.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	currentWorkerCount int64
	logger             *logger_i.Logger
	_runner            Runner
	minWorkerCount     = config.MinWorkerCount
	idleWorkerTimeout  = config.IdleWorkerTimeout
)

func InitServices(jobService *job.Service, runner Runner) {
	_jobService = jobService
	_runner = runner
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher()
}

func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
			logger.Info("Creating new worker", "workerCount", atomic.LoadInt64(&currentWorkerCount))
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go worker()
	logger.Info("Created new worker")
}

func worker() {
	for {
		select {
		case queued := <-_jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			executeJob(queued)

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-time.After(idleWorkerTimeout):
			if retireIdleWorker() {
				return
			}
		}
	}
}

// retireIdleWorker keeps at least minWorkerCount workers alive.
func retireIdleWorker() bool {
	for {
		current := atomic.LoadInt64(&currentWorkerCount)
		if current <= minWorkerCount {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, current, current-1) {
			workerWaitGroup.Done()
			metrics.DecrementActiveWorkerCount()
			logger.Info("Idle worker timeout - removed worker", "workerCount", current-1)
			return true
		}
	}
}
