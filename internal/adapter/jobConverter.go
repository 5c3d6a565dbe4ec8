package adapter

import (
	"fmt"
	"net/http"

	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/api"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
)

var pollIntervalSeconds = int(config.PollInterval.Seconds())

func ToInitJobResponse(job analysisModel.AnalysisJob) api.InitJobResponse {
	return api.InitJobResponse{
		JobId:               job.Id,
		Status:              string(job.Status),
		StatusURL:           fmt.Sprintf("/job/%s", job.Id),
		PollIntervalSeconds: pollIntervalSeconds,
	}
}

// ToJobResponse never exposes the owner or the instruction; pollers only need progress and outcome.
func ToJobResponse(job analysisModel.AnalysisJob) api.JobResponse {
	res := api.JobResponse{
		JobId:               job.Id,
		ProjectId:           job.ProjectId,
		Status:              string(job.Status),
		TotalBatches:        job.TotalBatches,
		CompletedBatches:    job.CompletedBatches,
		ResultText:          job.ResultText,
		ErrorMessage:        job.ErrorMessage,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
		CompletedAt:         job.CompletedAt,
		ExpiresAt:           job.ExpiresAt,
		PollIntervalSeconds: pollIntervalSeconds,
		PollTimeoutSeconds:  int(analysis.PollTimeout(job.TotalBatches).Seconds()),
	}
	if job.Status == analysisModel.JobStatusFailed {
		message := "Analysis failed"
		if job.ErrorMessage != nil {
			message = *job.ErrorMessage
		}
		res.Error = &api.JobOutgoingError{
			Code:    http.StatusInternalServerError,
			Reason:  "job_failed",
			Message: message,
			Retry:   true,
		}
	}
	return res
}

func ToQueryResponse(result commonModels.QueryResult) api.QueryResponse {
	snippets := result.Snippets
	if snippets == nil {
		snippets = []commonModels.Snippet{}
	}
	return api.QueryResponse{
		Snippets:  snippets,
		Summary:   result.Summary,
		NoResults: result.NoResults || len(snippets) == 0,
	}
}

func ToSourceResponse(source commonModels.Source) api.SourceResponse {
	return api.SourceResponse{
		SourceId:    source.Id,
		ProjectId:   source.ProjectId,
		Title:       source.Title,
		ContentType: string(source.ContentType),
		WordCount:   source.WordCount,
		CreatedAt:   source.CreatedAt,
		UpdatedAt:   source.UpdatedAt,
	}
}

func ToSourceListResponse(sources []commonModels.Source) api.SourceListResponse {
	out := api.SourceListResponse{Sources: make([]api.SourceResponse, 0, len(sources))}
	for _, s := range sources {
		out.Sources = append(out.Sources, ToSourceResponse(s))
	}
	return out
}

// ToQueryLogResponse drops the user id and trace id; the caller already is that user.
func ToQueryLogResponse(records []analysisModel.QueryRecord) api.QueryLogResponse {
	out := api.QueryLogResponse{Queries: make([]api.QueryRecordResponse, 0, len(records))}
	for _, r := range records {
		out.Queries = append(out.Queries, api.QueryRecordResponse{
			Id:          r.Id,
			ProjectId:   r.ProjectId,
			Query:       r.Query,
			SourceCount: r.SourceCount,
			ResultCount: r.ResultCount,
			DurationMs:  r.DurationMs,
			Status:      string(r.Status),
			Error:       r.Error,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

func BadRequest(code int, reason string, message string, retry bool) api.ErrorResponse {
	return api.ErrorResponse{
		Error: api.JobOutgoingError{
			Code:    code,
			Reason:  reason,
			Message: message,
			Retry:   retry,
		},
	}
}
