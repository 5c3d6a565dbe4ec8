package api

import (
	"time"

	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

// JobResponse is the polling shape of an analysis job.
type JobResponse struct {
	JobId               string     `json:"jobId" example:"4f1c2d9e-8a4b-4c7e-9d2a-1b3c5e7f9a0b"`
	ProjectId           string     `json:"projectId" example:"proj_42"`
	Status              string     `json:"status" example:"processing"`
	TotalBatches        int        `json:"totalBatches" example:"4"`
	CompletedBatches    int        `json:"completedBatches" example:"3"`
	ResultText          *string    `json:"resultText,omitempty"`
	ErrorMessage        *string    `json:"errorMessage,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	ExpiresAt           time.Time  `json:"expiresAt"`
	PollIntervalSeconds int        `json:"pollIntervalSeconds" example:"3"`
	PollTimeoutSeconds  int        `json:"pollTimeoutSeconds" example:"480"`
	// Error is set once a job has failed; resubmitting is the retry.
	Error *JobOutgoingError `json:"error,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Reason  string `json:"reason,omitempty" example:"validation"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

// ErrorResponse wraps every non-2xx body.
type ErrorResponse struct {
	Error JobOutgoingError `json:"error"`
}

type InitJobResponse struct {
	JobId               string `json:"jobId"`
	Status              string `json:"status" example:"pending"`
	StatusURL           string `json:"statusUrl" example:"/job/4f1c2d9e-8a4b-4c7e-9d2a-1b3c5e7f9a0b"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds" example:"3"`
}

// QueryResponse is the synchronous answer: verbatim snippets plus an optional summary.
type QueryResponse struct {
	Snippets  []commonModels.Snippet `json:"snippets"`
	Summary   string                 `json:"summary,omitempty"`
	NoResults bool                   `json:"noResults"`
}

type SourceResponse struct {
	SourceId    string    `json:"sourceId"`
	ProjectId   string    `json:"projectId"`
	Title       string    `json:"title"`
	ContentType string    `json:"contentType" example:"markdown"`
	WordCount   int       `json:"wordCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type SourceListResponse struct {
	Sources []SourceResponse `json:"sources"`
}

type QueryRecordResponse struct {
	Id          string    `json:"id"`
	ProjectId   string    `json:"projectId"`
	Query       string    `json:"query"`
	SourceCount int       `json:"sourceCount"`
	ResultCount int       `json:"resultCount"`
	DurationMs  int64     `json:"durationMs"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type QueryLogResponse struct {
	Queries []QueryRecordResponse `json:"queries"`
}

// requests---------------------

type AnalyzeRequest struct {
	ProjectId   string   `json:"projectId" validate:"required,max=128"`
	Instruction string   `json:"instruction" validate:"required,max=4000"`
	SourceIds   []string `json:"sourceIds,omitempty" validate:"max=200,dive,required"`
}

type QueryRequest struct {
	ProjectId string   `json:"projectId" validate:"required,max=128"`
	Query     string   `json:"query" validate:"required,max=1000"`
	SourceIds []string `json:"sourceIds,omitempty" validate:"max=200,dive,required"`
}

type AnalyzeDocumentRequest struct {
	ProjectId   string `json:"projectId" validate:"required,max=128"`
	SourceId    string `json:"sourceId" validate:"required"`
	Instruction string `json:"instruction" validate:"required,max=4000"`
}

type SourceRequest struct {
	ProjectId   string `json:"projectId" validate:"required,max=128"`
	SourceId    string `json:"sourceId,omitempty" validate:"omitempty,max=128"`
	Title       string `json:"title" validate:"required,max=512"`
	ContentType string `json:"contentType" validate:"required,oneof=text markdown html"`
	Content     string `json:"content" validate:"required"`
}
