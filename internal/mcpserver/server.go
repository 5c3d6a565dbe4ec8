// Package mcpserver exposes the query and job status operations as MCP tools over streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/GoAnalyze/internal/config"
	"github.com/akolanti/GoAnalyze/internal/domain/analysisModel"
	"github.com/akolanti/GoAnalyze/internal/rag"
	"github.com/akolanti/GoAnalyze/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

var (
	ErrMissingQueryService = errors.New("mcp: query service is required")
	ErrMissingJobs         = errors.New("mcp: job reader is required")
	errNoUser              = errors.New("mcp: request is not authenticated")
)

// JobReader is the read side of the analysis engine.
type JobReader interface {
	Status(ctx context.Context, userId string, jobId string) (analysisModel.AnalysisJob, error)
	Latest(ctx context.Context, userId string, projectId string) (analysisModel.AnalysisJob, error)
}

type Server struct {
	query  rag.Service
	jobs   JobReader
	logger *logger_i.Logger
}

func NewServer(query rag.Service, jobs JobReader) (*Server, error) {
	if query == nil {
		return nil, ErrMissingQueryService
	}
	if jobs == nil {
		return nil, ErrMissingJobs
	}
	return &Server{query: query, jobs: jobs, logger: logger_i.NewLogger("mcp")}, nil
}

// Handler serves MCP over streamable HTTP. It must sit behind the auth middleware:
// every tool runs as the user found on the request that opened the session.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		user, _ := r.Context().Value(config.USER_ID_KEY).(string)
		return s.forUser(user)
	}, nil)
}

func (s *Server) forUser(userId string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "source-analysis", Version: Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_sources",
		Description: "Find verbatim passages in a project's reference sources that answer a question",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		out, err := s.handleQuery(ctx, userId, in)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analysis_status",
		Description: "Report progress and outcome of an analysis job",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in StatusInput) (*mcp.CallToolResult, JobOutput, error) {
		out, err := s.handleStatus(ctx, userId, in)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "latest_analysis",
		Description: "Report the most recent analysis job of a project",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in LatestInput) (*mcp.CallToolResult, JobOutput, error) {
		out, err := s.handleLatest(ctx, userId, in)
		return nil, out, err
	})

	return server
}
