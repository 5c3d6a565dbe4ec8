package analysisModel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var (
	ErrJobNotFound        = errors.New("analysis job not found")
	ErrTransitionRejected = errors.New("job status transition rejected")
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition lists the only legal edges. pending -> failed covers jobs whose
// sources could not be resolved before any batch was scheduled.
func CanTransition(from JobStatus, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	}
	return false
}

type AnalysisJob struct {
	Id               string     `json:"id"`
	ProjectId        string     `json:"project_id"`
	UserId           string     `json:"user_id"`
	TraceId          string     `json:"trace_id,omitempty"`
	Instruction      string     `json:"instruction"`
	SourceIds        []string   `json:"source_ids"`
	Status           JobStatus  `json:"status"`
	TotalBatches     int        `json:"total_batches"`
	CompletedBatches int        `json:"completed_batches"`
	ResultText       *string    `json:"result_text,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

func (j AnalysisJob) IsExpired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && !now.Before(j.ExpiresAt)
}

// JobTransition is a conditional status change: it only applies while the
// stored status still equals From.
type JobTransition struct {
	From         JobStatus
	To           JobStatus
	TotalBatches *int
	ResultText   *string
	ErrorMessage *string
	At           time.Time
}

func (t JobTransition) Validate() error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, t.From, t.To)
	}
	if t.To == JobStatusCompleted && t.ResultText == nil {
		return fmt.Errorf("%w: completed job needs a result", ErrTransitionRejected)
	}
	if t.To == JobStatusFailed && t.ErrorMessage == nil {
		return fmt.Errorf("%w: failed job needs an error message", ErrTransitionRejected)
	}
	return nil
}

// Apply mutates job in place; callers must have checked job.Status == t.From.
func (t JobTransition) Apply(job *AnalysisJob) {
	job.Status = t.To
	job.UpdatedAt = t.At
	if t.TotalBatches != nil {
		job.TotalBatches = *t.TotalBatches
	}
	switch t.To {
	case JobStatusCompleted:
		job.ResultText = t.ResultText
		job.ErrorMessage = nil
		job.CompletedBatches = job.TotalBatches
	case JobStatusFailed:
		job.ErrorMessage = t.ErrorMessage
		job.ResultText = nil
	}
	if t.To.IsTerminal() {
		at := t.At
		job.CompletedAt = &at
	}
}

// ApplyProgress enforces completedBatches being monotonic and bounded by totalBatches.
func ApplyProgress(job *AnalysisJob, completed int, at time.Time) error {
	if job.Status != JobStatusProcessing {
		return fmt.Errorf("%w: progress on %s job", ErrTransitionRejected, job.Status)
	}
	if completed > job.TotalBatches {
		completed = job.TotalBatches
	}
	if completed < job.CompletedBatches {
		return nil
	}
	job.CompletedBatches = completed
	job.UpdatedAt = at
	return nil
}

// JobStore is written only by the analysis engine; pollers read.
type JobStore interface {
	CreateJob(ctx context.Context, job AnalysisJob) error
	GetJob(ctx context.Context, jobId string) (AnalysisJob, bool, error)
	LatestJob(ctx context.Context, userId string, projectId string) (AnalysisJob, bool, error)
	TransitionJob(ctx context.Context, jobId string, transition JobTransition) error
	UpdateProgress(ctx context.Context, jobId string, completedBatches int) error
	DeleteJob(ctx context.Context, jobId string) error
}

type QueryStatus string

const (
	QueryStatusOK        QueryStatus = "ok"
	QueryStatusNoContent QueryStatus = "no_content"
	QueryStatusFailed    QueryStatus = "failed"
)

// QueryRecord is the analytics trail of one synchronous query. Snippet content is never stored.
type QueryRecord struct {
	Id           string      `json:"id"`
	UserId       string      `json:"user_id"`
	ProjectId    string      `json:"project_id"`
	TraceId      string      `json:"trace_id,omitempty"`
	Query        string      `json:"query"`
	SourceCount  int         `json:"source_count"`
	ResultCount  int         `json:"result_count"`
	PromptTokens int         `json:"prompt_tokens"`
	OutputTokens int         `json:"output_tokens"`
	DurationMs   int64       `json:"duration_ms"`
	Status       QueryStatus `json:"status"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type QueryLogStore interface {
	SaveQuery(ctx context.Context, record QueryRecord) error
}

// QueryLogReader lists a user's own recent queries, newest first.
type QueryLogReader interface {
	RecentQueries(ctx context.Context, userId string, limit int) ([]QueryRecord, error)
}

// RunLock guards against two workers running the same job at once. The conditional
// pending -> processing transition already makes runs at-most-once; the lock keeps a
// duplicate delivery from doing any work before it finds that out.
type RunLock interface {
	AcquireRun(ctx context.Context, jobId string, ttl time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, jobId string) error
}
