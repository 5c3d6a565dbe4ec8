package postgresStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var _ analysisModel.JobStore = (*JobStore)(nil)
var _ analysisModel.RunLock = (*JobStore)(nil)

// JobStore keeps analysis jobs in Postgres. Transitions are a single conditional
// UPDATE on the current status, so two writers can never both win.
type JobStore struct {
	db    *DB
	owner string
}

func NewJobStore(db *DB) *JobStore {
	hostname, _ := os.Hostname()
	return &JobStore{db: db, owner: hostname + ":" + uuid.New().String()}
}

const jobColumns = `id, user_id, project_id, trace_id, instruction, source_ids, status, total_batches,
	completed_batches, result_text, error_message, created_at, updated_at, completed_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (analysisModel.AnalysisJob, error) {
	var job analysisModel.AnalysisJob
	var result, errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&job.Id, &job.UserId, &job.ProjectId, &job.TraceId, &job.Instruction,
		pq.Array(&job.SourceIds), &job.Status, &job.TotalBatches, &job.CompletedBatches,
		&result, &errMsg, &job.CreatedAt, &job.UpdatedAt, &completedAt, &job.ExpiresAt,
	)
	if err != nil {
		return job, err
	}
	job.ResultText = stringPtr(result)
	job.ErrorMessage = stringPtr(errMsg)
	job.CompletedAt = timePtr(completedAt)
	return job, nil
}

func (s *JobStore) CreateJob(ctx context.Context, job analysisModel.AnalysisJob) error {
	query := `INSERT INTO analysis_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.db.ExecContext(ctx, query,
		job.Id, job.UserId, job.ProjectId, job.TraceId, job.Instruction,
		pq.Array(job.SourceIds), string(job.Status), job.TotalBatches, job.CompletedBatches,
		nullString(job.ResultText), nullString(job.ErrorMessage), job.CreatedAt, job.UpdatedAt,
		nullTime(job.CompletedAt), job.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, jobId string) (analysisModel.AnalysisJob, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, jobId)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, fmt.Errorf("reading job: %w", err)
	}
	return job, true, nil
}

func (s *JobStore) LatestJob(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM analysis_jobs
		WHERE user_id = $1 AND project_id = $2
		ORDER BY created_at DESC, id DESC LIMIT 1`, userId, projectId)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, fmt.Errorf("reading latest job: %w", err)
	}
	return job, true, nil
}

func (s *JobStore) TransitionJob(ctx context.Context, jobId string, t analysisModel.JobTransition) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	var total sql.NullInt64
	if t.TotalBatches != nil {
		total = sql.NullInt64{Int64: int64(*t.TotalBatches), Valid: true}
	}
	var completedAt sql.NullTime
	if t.To.IsTerminal() {
		completedAt = sql.NullTime{Time: t.At, Valid: true}
	}

	// mirrors JobTransition.Apply
	res, err := s.db.ExecContext(ctx, `UPDATE analysis_jobs SET
			status = $3,
			updated_at = $4,
			total_batches = COALESCE($5, total_batches),
			result_text = CASE WHEN $3 = 'completed' THEN $6 WHEN $3 = 'failed' THEN NULL ELSE result_text END,
			error_message = CASE WHEN $3 = 'failed' THEN $7 WHEN $3 = 'completed' THEN NULL ELSE error_message END,
			completed_batches = CASE WHEN $3 = 'completed' THEN COALESCE($5, total_batches) ELSE completed_batches END,
			completed_at = COALESCE($8, completed_at)
		WHERE id = $1 AND status = $2`,
		jobId, string(t.From), string(t.To), t.At, total,
		nullString(t.ResultText), nullString(t.ErrorMessage), completedAt,
	)
	if err != nil {
		return fmt.Errorf("transitioning job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return s.rejection(ctx, jobId, t)
}

// rejection tells a missing job apart from one whose status moved on.
func (s *JobStore) rejection(ctx context.Context, jobId string, t analysisModel.JobTransition) error {
	job, found, err := s.GetJob(ctx, jobId)
	if err != nil {
		return err
	}
	if !found {
		return analysisModel.ErrJobNotFound
	}
	return fmt.Errorf("%w: job %s is %s, expected %s", analysisModel.ErrTransitionRejected, jobId, job.Status, t.From)
}

func (s *JobStore) UpdateProgress(ctx context.Context, jobId string, completedBatches int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE analysis_jobs SET
			completed_batches = LEAST($2, total_batches),
			updated_at = $3
		WHERE id = $1 AND status = 'processing' AND completed_batches < LEAST($2, total_batches)`,
		jobId, completedBatches, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	job, found, err := s.GetJob(ctx, jobId)
	if err != nil {
		return err
	}
	if !found {
		return analysisModel.ErrJobNotFound
	}
	if job.Status != analysisModel.JobStatusProcessing {
		return fmt.Errorf("%w: progress on %s job", analysisModel.ErrTransitionRejected, job.Status)
	}
	return nil
}

func (s *JobStore) DeleteJob(ctx context.Context, jobId string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, jobId); err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// AcquireRun takes a lease row rather than an advisory lock: advisory locks are
// bound to one pooled connection and release may run on another.
func (s *JobStore) AcquireRun(ctx context.Context, jobId string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO analysis_job_runs (job_id, owner, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE analysis_job_runs.expires_at < $4`,
		jobId, s.owner, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("acquire run lease %s: %w", jobId, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *JobStore) ReleaseRun(ctx context.Context, jobId string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analysis_job_runs WHERE job_id = $1 AND owner = $2`, jobId, s.owner)
	if err != nil {
		return fmt.Errorf("release run lease %s: %w", jobId, err)
	}
	return nil
}
