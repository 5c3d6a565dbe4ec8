package mcpserver

import (
	"context"

	"github.com/akolanti/GoAnalyze/internal/analysis"
	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/domain/commonModels"
	"github.com/akolanti/GoAnalyze/internal/rag"
)

type QueryInput struct {
	ProjectId string   `json:"projectId" jsonschema:"the project whose sources are searched"`
	Query     string   `json:"query" jsonschema:"the question, at most 1000 characters"`
	SourceIds []string `json:"sourceIds,omitempty" jsonschema:"restrict the search to these sources"`
}

type QueryOutput struct {
	Snippets  []commonModels.Snippet `json:"snippets"`
	Summary   string                 `json:"summary,omitempty"`
	NoResults bool                   `json:"noResults"`
}

type StatusInput struct {
	JobId string `json:"jobId" jsonschema:"the id returned when the analysis was submitted"`
}

type LatestInput struct {
	ProjectId string `json:"projectId" jsonschema:"the project to look up"`
}

type JobOutput struct {
	JobId              string `json:"jobId"`
	Status             string `json:"status"`
	TotalBatches       int    `json:"totalBatches"`
	CompletedBatches   int    `json:"completedBatches"`
	ResultText         string `json:"resultText,omitempty"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
	PollTimeoutSeconds int    `json:"pollTimeoutSeconds"`
}

func (s *Server) handleQuery(ctx context.Context, userId string, in QueryInput) (QueryOutput, error) {
	if userId == "" {
		return QueryOutput{}, errNoUser
	}
	ctx = context.WithValue(ctx, config.USER_ID_KEY, userId)
	result, err := s.query.Query(ctx, userId, in.ProjectId, rag.QueryRequest{Query: in.Query, SourceIds: in.SourceIds})
	if err != nil {
		s.logger.FromContext(ctx).Warn("query_sources failed", "error", err)
		return QueryOutput{}, err
	}
	out := QueryOutput{Snippets: result.Snippets, Summary: result.Summary, NoResults: result.NoResults}
	if out.Snippets == nil {
		out.Snippets = []commonModels.Snippet{}
	}
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, userId string, in StatusInput) (JobOutput, error) {
	if userId == "" {
		return JobOutput{}, errNoUser
	}
	job, err := s.jobs.Status(ctx, userId, in.JobId)
	if err != nil {
		return JobOutput{}, err
	}
	return toJobOutput(job), nil
}

func (s *Server) handleLatest(ctx context.Context, userId string, in LatestInput) (JobOutput, error) {
	if userId == "" {
		return JobOutput{}, errNoUser
	}
	job, err := s.jobs.Latest(ctx, userId, in.ProjectId)
	if err != nil {
		return JobOutput{}, err
	}
	return toJobOutput(job), nil
}

func toJobOutput(job analysisModel.AnalysisJob) JobOutput {
	out := JobOutput{
		JobId:              job.Id,
		Status:             string(job.Status),
		TotalBatches:       job.TotalBatches,
		CompletedBatches:   job.CompletedBatches,
		PollTimeoutSeconds: int(analysis.PollTimeout(job.TotalBatches).Seconds()),
	}
	if job.ResultText != nil {
		out.ResultText = *job.ResultText
	}
	if job.ErrorMessage != nil {
		out.ErrorMessage = *job.ErrorMessage
	}
	return out
}
